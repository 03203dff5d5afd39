// Package datasets loads the reference datasets used by the training
// pipeline, in the manner of scikit-learn's bundled and fetched datasets.
package datasets

import (
	"bytes"
	"context"
	"embed"
	"encoding/csv"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

//go:embed data
var bundled embed.FS

const (
	// WineURL is the UCI repository location of the wine data.
	WineURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/wine/wine.data"

	wineFileName   = "wine.data"
	wineSamples    = 178
	wineFeatures   = 13
	wineClasses    = 3
	defaultTimeout = 30 * time.Second
)

// Dataset sources.
const (
	SourceBundled  = "bundled"
	SourceCache    = "cache"
	SourceDownload = "download"
)

// ErrDataUnavailable is returned when no copy of a dataset can be found and
// downloading is disabled.
var ErrDataUnavailable = scierrors.New("dataset not available locally and download disabled")

// WineFeatureNames are the 13 physicochemical measurements of the wine data.
var WineFeatureNames = []string{
	"alcohol", "malic_acid", "ash", "alcalinity_of_ash", "magnesium",
	"total_phenols", "flavanoids", "nonflavanoid_phenols", "proanthocyanins",
	"color_intensity", "hue", "od280/od315_of_diluted_wines", "proline",
}

// WineTargetNames name the three cultivars.
var WineTargetNames = []string{"class_0", "class_1", "class_2"}

// Dataset is a feature matrix with integer class labels.
type Dataset struct {
	Data         *mat.Dense
	Target       []int
	FeatureNames []string
	TargetNames  []string
	// Source tells where the data was read from.
	Source string
}

// Shape returns the number of samples and features.
func (d *Dataset) Shape() (int, int) {
	return d.Data.Dims()
}

type loadConfig struct {
	dataHome string
	url      string
	client   *http.Client
	download bool

	skipBundled bool
}

// Option configures LoadWine.
type Option func(*loadConfig)

// WithDataHome sets the cache directory. Defaults to DataHome("").
func WithDataHome(dir string) Option {
	return func(c *loadConfig) { c.dataHome = dir }
}

// WithURL overrides the download location.
func WithURL(url string) Option {
	return func(c *loadConfig) { c.url = url }
}

// WithHTTPClient sets the client used for downloading.
func WithHTTPClient(client *http.Client) Option {
	return func(c *loadConfig) { c.client = client }
}

// WithDownload enables or disables the download fallback.
func WithDownload(enabled bool) Option {
	return func(c *loadConfig) { c.download = enabled }
}

// DataHome returns dir if set, otherwise a "scigo_data" directory under the
// user cache directory.
func DataHome(dir string) string {
	if dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "scigo_data")
}

// LoadWine loads the wine recognition dataset: 178 samples, 13 features,
// classes 0, 1 and 2. The bundled copy is used when present, then the cached
// copy in the data home, then the UCI repository (the download is cached).
func LoadWine(ctx context.Context, opts ...Option) (*Dataset, error) {
	cfg := &loadConfig{
		url:      WineURL,
		client:   &http.Client{Timeout: defaultTimeout},
		download: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := log.GetLoggerWithName("datasets")

	raw, source, err := resolveWine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ds, err := ParseWine(bytes.NewReader(raw))
	if err != nil {
		return nil, scierrors.Wrapf(err, "load wine from %s", source)
	}
	if n, _ := ds.Shape(); n != wineSamples {
		return nil, scierrors.NewShapeMismatchError("LoadWine", wineSamples, n, 0)
	}
	ds.Source = source

	logger.Info("Dataset loaded",
		log.SourceKey, source,
		log.SamplesKey, wineSamples,
		log.FeaturesKey, wineFeatures,
		log.ClassesKey, wineClasses,
	)
	return ds, nil
}

func resolveWine(ctx context.Context, cfg *loadConfig) ([]byte, string, error) {
	if !cfg.skipBundled {
		if raw, err := bundled.ReadFile("data/" + wineFileName); err == nil {
			return raw, SourceBundled, nil
		}
	}

	cachePath := filepath.Join(DataHome(cfg.dataHome), wineFileName)
	raw, err := os.ReadFile(cachePath)
	if err == nil {
		return raw, SourceCache, nil
	}
	if !scierrors.Is(err, fs.ErrNotExist) {
		return nil, "", scierrors.Wrapf(err, "read cached dataset %s", cachePath)
	}
	if !cfg.download {
		return nil, "", ErrDataUnavailable
	}

	raw, err = fetch(ctx, cfg.client, cfg.url)
	if err != nil {
		return nil, "", err
	}
	if err := writeCache(cachePath, raw); err != nil {
		return nil, "", err
	}
	return raw, SourceDownload, nil
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, scierrors.Wrapf(err, "build request for %s", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, scierrors.NewConnectivityError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, scierrors.NewConnectivityError(url, scierrors.Newf("unexpected status %s", resp.Status))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scierrors.NewConnectivityError(url, err)
	}
	return raw, nil
}

// writeCache writes through a temporary file so that a partial download is
// never picked up as a cached copy.
func writeCache(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return scierrors.Wrapf(err, "create data home %s", filepath.Dir(path))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), wineFileName+".*.tmp")
	if err != nil {
		return scierrors.Wrap(err, "create cache file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return scierrors.Wrap(err, "write cache file")
	}
	if err := tmp.Close(); err != nil {
		return scierrors.Wrap(err, "close cache file")
	}
	return scierrors.Wrap(os.Rename(tmp.Name(), path), "install cache file")
}

// ParseWine parses the UCI wine format: one sample per line, the cultivar
// label 1..3 followed by 13 comma-separated features. Labels are shifted to
// 0..2.
func ParseWine(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		values []float64
		target []int
	)
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, scierrors.NewValueError("ParseWine", err.Error())
		}
		if len(rec) != wineFeatures+1 {
			return nil, scierrors.NewShapeMismatchError("ParseWine", wineFeatures+1, len(rec), 1)
		}

		label, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || label < 1 || label > wineClasses {
			return nil, scierrors.NewValueError("ParseWine",
				"line "+strconv.Itoa(line)+": label must be 1, 2 or 3, got "+strconv.Quote(rec[0]))
		}
		for _, s := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, scierrors.NewValueError("ParseWine",
					"line "+strconv.Itoa(line)+": invalid feature value "+strconv.Quote(s))
			}
			values = append(values, v)
		}
		target = append(target, label-1)
	}

	if len(target) == 0 {
		return nil, scierrors.NewValueError("ParseWine", "no samples")
	}

	return &Dataset{
		Data:         mat.NewDense(len(target), wineFeatures, values),
		Target:       target,
		FeatureNames: append([]string(nil), WineFeatureNames...),
		TargetNames:  append([]string(nil), WineTargetNames...),
	}, nil
}
