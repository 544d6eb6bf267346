// Package objectstore archives dataset files in an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
)

// Config is read from a JSON file.
type Config struct {
	Endpoint  string `json:"Endpoint"`
	AccessKey string `json:"AccessKey"`
	SecretKey string `json:"SecretKey"`
	Bucket    string `json:"Bucket"`
	Secure    bool   `json:"Secure"`
	// Prefix is the key prefix every dataset file is stored below.
	Prefix string `json:"Prefix"`
}

// ReadConfig loads the bucket settings at configPath.
func ReadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return Config{}, fmt.Errorf("%s: Endpoint and Bucket are required", configPath)
	}
	return cfg, nil
}

// Store keeps each dataset file as one object.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	// RunID is attached to every object as user metadata.
	RunID string
}

// Open creates the client and the bucket when absent.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Key maps a dataset path to its object key.
func Key(prefix, p string) string {
	if prefix == "" {
		return p
	}
	return path.Join(prefix, p)
}

// Path maps an object key back to its dataset path.
func Path(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}

// ContentType guesses the media type from the file extension.
func ContentType(p string) string {
	switch path.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".geojson":
		return "application/geo+json"
	case ".prom":
		return "text/plain; version=0.0.4"
	}
	return "application/octet-stream"
}

func (s *Store) Put(ctx context.Context, p string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: ContentType(p)}
	if s.RunID != "" {
		opts.UserMetadata = map[string]string{"run-id": s.RunID}
	}
	_, err := s.client.PutObject(ctx, s.bucket, Key(s.prefix, p), bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, Key(s.prefix, p), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", datapackage.ErrNotFound, p)
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	key := Key(s.prefix, prefix)
	if prefix == "" && s.prefix != "" {
		key = s.prefix + "/"
	}
	opts := minio.ListObjectsOptions{Prefix: key, Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, Path(s.prefix, obj.Key))
	}
	return out, nil
}

// Clean removes the managed objects below the prefix.
func (s *Store) Clean(ctx context.Context) error {
	all, err := s.List(ctx, "")
	if err != nil {
		return err
	}
	objects := make(chan minio.ObjectInfo, len(all))
	for _, p := range all {
		if datapackage.Managed(p) {
			objects <- minio.ObjectInfo{Key: Key(s.prefix, p)}
		}
	}
	close(objects)
	var first error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if first == nil {
			first = fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return first
}
