// Package sqldb archives dataset files in a MySQL or PostgreSQL table.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Supported drivers.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Config is read from a JSON file.
type Config struct {
	Driver   string `json:"Driver"`
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
	Dataset  string `json:"Dataset"`
}

// ReadConfig loads the connection settings at configPath. The driver
// defaults to MySQL.
func ReadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Driver == "" {
		cfg.Driver = MySQL
	}
	if _, err := dialectOf(cfg.Driver); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DSN is the data source name of cfg for its driver.
func (c Config) DSN() string {
	if c.Driver == Postgres {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Server, c.Port, c.Username, c.Password, c.Database)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.Username, c.Password, c.Server, c.Port, c.Database)
}

// dialect holds the statements that differ between the drivers.
type dialect struct {
	create string
	upsert string
	get    string
	list   string
	clean  string
}

var dialects = map[string]dialect{
	MySQL: {
		create: `CREATE TABLE IF NOT EXISTS dataset_files(
			dataset VARCHAR(128) NOT NULL, path VARCHAR(255) NOT NULL,
			data LONGBLOB, run_id VARCHAR(36), updated DATETIME,
			PRIMARY KEY (dataset, path))`,
		upsert: `INSERT INTO dataset_files(dataset, path, data, run_id, updated) VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data), run_id = VALUES(run_id), updated = VALUES(updated)`,
		get:   `SELECT data FROM dataset_files WHERE dataset = ? AND path = ?`,
		list:  `SELECT path FROM dataset_files WHERE dataset = ? AND path LIKE ? ORDER BY path`,
		clean: `DELETE FROM dataset_files WHERE dataset = ? AND (path = ? OR path LIKE 'data/%' OR path LIKE 'resources/%')`,
	},
	Postgres: {
		create: `CREATE TABLE IF NOT EXISTS dataset_files(
			dataset VARCHAR(128) NOT NULL, path VARCHAR(255) NOT NULL,
			data BYTEA, run_id VARCHAR(36), updated TIMESTAMP,
			PRIMARY KEY (dataset, path))`,
		upsert: `INSERT INTO dataset_files(dataset, path, data, run_id, updated) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (dataset, path) DO UPDATE SET data = EXCLUDED.data, run_id = EXCLUDED.run_id, updated = EXCLUDED.updated`,
		get:   `SELECT data FROM dataset_files WHERE dataset = $1 AND path = $2`,
		list:  `SELECT path FROM dataset_files WHERE dataset = $1 AND path LIKE $2 ORDER BY path`,
		clean: `DELETE FROM dataset_files WHERE dataset = $1 AND (path = $2 OR path LIKE 'data/%' OR path LIKE 'resources/%')`,
	},
}

func dialectOf(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported SQL driver %q", driver)
	}
	return d, nil
}

// Store keeps dataset files as rows keyed by dataset and path.
type Store struct {
	db      *sql.DB
	dialect dialect
	dataset string
	// RunID is stamped into every written row.
	RunID string
}

// Open connects and creates the table when absent.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectOf(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: d, dataset: cfg.Dataset}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.dialect.create)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, p string, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsert, s.dataset, p, data, s.RunID, time.Now().UTC())
	return err
}

func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, s.dataset, p).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", datapackage.ErrNotFound, p)
	}
	return data, err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.list, s.dataset, LikePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Clean(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.clean, s.dataset, datapackage.Descriptor)
	return err
}

// LikePrefix escapes prefix for a LIKE pattern matching everything below it.
func LikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
