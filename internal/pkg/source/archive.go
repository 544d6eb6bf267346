package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// Raw file names below the raw data directory.
const (
	EHighwayWorkbook  = "e-Highway_database_per_country-08022016.xlsx"
	TYNDPInput        = "TYNDP2018_Input_Data.xlsx"
	TYNDPMarket       = "TYNDP2016_market_modelling_data.xlsx"
	PlantRegistry     = "conventional_power_plants_DE.csv"
	PlanList          = "Kraftwerksliste_UNB_Entwurf_Szenariorahmen_2030_V2019.xlsx"
	HydroCapacities   = "hydropower.csv"
	RorShares         = "ror_ENTSOe_Restore2050.csv"
	HydroInflowDir    = "Hydro_Inflow"
	OPSDTimeSeries    = "time_series_60min_singleindex.csv"
	NinjaPV           = "ninja_pv_europe_v1.1_merra2.csv"
	NinjaWindOnshore  = "ninja_wind_europe_v1.1_current_national.csv"
	NinjaWindOffshore = "ninja_wind_europe_v1.1_future_nearterm_on-offshore.csv"
	NUTSShapefile     = "NUTS_2013_10M_SH/data/NUTS_RG_10M_2013.shp"
	ThermalLoad       = "thermal_load_profile.csv"
)

// Remote is a raw file with a public download location.
type Remote struct {
	Name string
	URL  string
}

// Known lists the raw files that can be fetched individually. The remaining
// files ship in the raw data bundle.
var Known = []Remote{
	{TYNDPInput, "https://www.entsoe.eu/Documents/TYNDP%20documents/TYNDP2018/Scenarios%20Data%20Sets/Input%20Data.xlsx"},
	{TYNDPMarket, "https://www.entsoe.eu/Documents/TYNDP%20documents/TYNDP%202016/rgips/TYNDP2016%20market%20modelling%20data.xlsx"},
	{PlantRegistry, "https://data.open-power-system-data.org/conventional_power_plants/2018-12-20/conventional_power_plants_DE.csv"},
	{PlanList, "https://www.netzentwicklungsplan.de/sites/default/files/paragraphs-files/Kraftwerksliste_%C3%9CNB_Entwurf_Szenariorahmen_2030_V2019.xlsx"},
	{HydroCapacities, "https://zenodo.org/record/804244/files/hydropower.csv?download=1"},
	{OPSDTimeSeries, "https://data.open-power-system-data.org/time_series/2018-06-30/time_series_60min_singleindex.csv"},
	{EHighwayWorkbook, "http://www.e-highway2050.eu/fileadmin/documents/e-Highway_database_per_country-08022016.xlsx"},
}

// URL returns the download location of a known raw file.
func URL(name string) string {
	for _, k := range Known {
		if k.Name == name {
			return k.URL
		}
	}
	return ""
}

// Archive is the local raw data directory. Absent files are downloaded on
// demand unless the archive is offline.
type Archive struct {
	Dir      string
	Offline  bool
	Client   *http.Client
	Progress io.Writer
	logger   log.Logger
}

// NewArchive returns an archive rooted at dir.
func NewArchive(dir string, offline bool, logger log.Logger) *Archive {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Archive{Dir: dir, Offline: offline, Client: http.DefaultClient, logger: logger}
}

// Path is the local path of a raw file.
func (a *Archive) Path(name string) string {
	return filepath.Join(a.Dir, filepath.FromSlash(name))
}

// Require returns the local path of name, downloading it from its known
// location when it is absent.
func (a *Archive) Require(ctx context.Context, name string) (string, error) {
	p := a.Path(name)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	url := URL(name)
	if a.Offline || url == "" {
		return "", &MissingRawDataError{Name: name, Path: p}
	}
	level.Info(a.logger).Log("msg", "downloading raw data", "name", name, "url", url)
	if err := a.Download(ctx, url, p); err != nil {
		return "", &MissingRawDataError{Name: name, Path: p, Err: err}
	}
	return p, nil
}

// Download fetches url into dst. The file appears only once complete.
func (a *Archive) Download(ctx context.Context, url, dst string) error {
	if a.Offline {
		return fmt.Errorf("download %s: archive is offline", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	var body io.Reader = resp.Body
	if a.Progress != nil {
		bar := pb.New64(resp.ContentLength).SetUnits(pb.U_BYTES)
		bar.Output = a.Progress
		bar.Start()
		defer bar.Finish()
		body = bar.NewProxyReader(resp.Body)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// FetchBundle downloads the zipped raw data bundle and unpacks it into the
// archive, removing strip from the front of every entry name.
func (a *Archive) FetchBundle(ctx context.Context, url, strip string) error {
	zipPath := a.Path(".bundle.zip")
	if err := a.Download(ctx, url, zipPath); err != nil {
		return err
	}
	defer os.Remove(zipPath)
	return a.Extract(zipPath, strip)
}

// Extract unpacks a zip file into the archive directory.
func (a *Archive) Extract(zipPath, strip string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, strip)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		dst := a.Path(name)
		if !strings.HasPrefix(dst, filepath.Clean(a.Dir)+string(os.PathSeparator)) {
			return fmt.Errorf("bundle entry %q escapes %s", f.Name, a.Dir)
		}
		if err := extractFile(f, dst); err != nil {
			return err
		}
	}
	level.Info(a.logger).Log("msg", "raw data bundle extracted", "files", len(zr.File), "dir", a.Dir)
	return nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
