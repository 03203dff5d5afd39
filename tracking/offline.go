package tracking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// RunFile is the name of the run record inside an offline run directory.
const RunFile = "run.yaml"

// OfflineRecord is the content of run.yaml.
type OfflineRecord struct {
	ID      string                   `yaml:"id"`
	Name    string                   `yaml:"name"`
	Project string                   `yaml:"project,omitempty"`
	Params  map[string]any           `yaml:"params"`
	Created time.Time                `yaml:"created"`
	Stopped *time.Time               `yaml:"stopped,omitempty"`
	Tags    []string                 `yaml:"tags,omitempty"`
	Metrics map[string][]MetricPoint `yaml:"metrics,omitempty"`
	Images  []ImageRef               `yaml:"images,omitempty"`
}

// MetricPoint is one metric value in run.yaml.
type MetricPoint struct {
	Step  int       `yaml:"step"`
	Value float64   `yaml:"value"`
	Time  time.Time `yaml:"time"`
}

// ImageRef points to an image file relative to the run directory.
type ImageRef struct {
	Channel string `yaml:"channel"`
	Name    string `yaml:"name,omitempty"`
	File    string `yaml:"file"`
}

type offlineSession struct {
	dir     string
	project string
	logger  log.Logger
}

func openOffline(opts Options) (*offlineSession, error) {
	dir := opts.OfflineDir
	if dir == "" {
		dir = ".tracking"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "tracking: create offline directory %s", dir)
	}
	return &offlineSession{dir: dir, project: opts.Project, logger: opts.Logger}, nil
}

func (s *offlineSession) StartRun(_ context.Context, name string, params map[string]any) (Run, error) {
	id := "OFFLINE-" + uuid.NewString()
	run := &offlineRun{
		dir: filepath.Join(s.dir, id),
		record: OfflineRecord{
			ID:      id,
			Name:    name,
			Project: s.project,
			Params:  copyParams(params),
			Created: time.Now().UTC(),
			Metrics: make(map[string][]MetricPoint),
		},
	}
	if err := os.MkdirAll(run.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "tracking: create run directory %s", run.dir)
	}
	if err := run.flush(); err != nil {
		return nil, err
	}
	s.logger.Info("Run started", log.RunIDKey, id, "dir", run.dir)
	return run, nil
}

func (s *offlineSession) Close() error { return nil }

type offlineRun struct {
	mu     sync.Mutex
	dir    string
	record OfflineRecord
}

func (r *offlineRun) ID() string { return r.record.ID }

func (r *offlineRun) LogMetric(_ context.Context, name string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Stopped != nil {
		return errStopped("LogMetric")
	}
	points := r.record.Metrics[name]
	r.record.Metrics[name] = append(points, MetricPoint{Step: len(points), Value: value, Time: time.Now().UTC()})
	return r.flush()
}

func (r *offlineRun) LogImage(_ context.Context, name string, img Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Stopped != nil {
		return errStopped("LogImage")
	}
	format := img.Format
	if format == "" {
		format = "png"
	}
	file := fmt.Sprintf("%s_%d.%s", fileSafe(name), len(r.record.Images), format)
	if err := os.WriteFile(filepath.Join(r.dir, file), img.Data, 0o644); err != nil {
		return errors.Wrapf(err, "tracking: write image %s", file)
	}
	r.record.Images = append(r.record.Images, ImageRef{Channel: name, Name: img.Name, File: file})
	return r.flush()
}

func (r *offlineRun) AddTag(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Stopped != nil {
		return errStopped("AddTag")
	}
	r.record.Tags = append(r.record.Tags, tag)
	return r.flush()
}

func (r *offlineRun) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.record.Stopped = &now
	return r.flush()
}

// flush rewrites run.yaml atomically. Callers hold mu.
func (r *offlineRun) flush() error {
	data, err := yaml.Marshal(&r.record)
	if err != nil {
		return errors.Wrap(err, "tracking: encode run record")
	}
	path := filepath.Join(r.dir, RunFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "tracking: write %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, path), "tracking: replace run record")
}

// ReadOfflineRecord loads run.yaml from an offline run directory.
func ReadOfflineRecord(runDir string) (*OfflineRecord, error) {
	data, err := os.ReadFile(filepath.Join(runDir, RunFile))
	if err != nil {
		return nil, errors.Wrapf(err, "tracking: read run record in %s", runDir)
	}
	var rec OfflineRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "tracking: parse run record in %s", runDir)
	}
	return &rec, nil
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
