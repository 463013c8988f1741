package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/itohio/gotensile/pkg/config"
)

const (
	SamplesFile  = "samples.csv"
	MetadataFile = "session.yaml"
)

var summaryHeader = []string{
	"timestamp", "session_id", "manufacturer", "material", "color", "axis", "trial",
	"area_mm2", "peak_force_n", "strength_mpa", "samples", "stop_reason", "notes",
}

// SummaryRow is one line of the results table.
type SummaryRow struct {
	Timestamp    time.Time
	SessionID    string
	Manufacturer string
	Material     string
	Color        string
	Axis         string
	Trial        int
	Area         float64 // mm²
	PeakForce    float64 // N
	Strength     float64 // MPa
	Samples      int
	Reason       StopReason
	Notes        string
}

func (r SummaryRow) record() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.SessionID,
		r.Manufacturer,
		r.Material,
		r.Color,
		r.Axis,
		strconv.Itoa(r.Trial),
		formatFloat(r.Area),
		strconv.FormatFloat(r.PeakForce, 'f', 3, 64),
		strconv.FormatFloat(r.Strength, 'f', 3, 64),
		strconv.Itoa(r.Samples),
		string(r.Reason),
		r.Notes,
	}
}

// Store lays out session directories under a root and keeps the results
// table.
type Store struct {
	root    string
	results string
}

// NewStore creates a store rooted at cfg.OutputDir. A relative ResultsFile
// is placed inside the root.
func NewStore(cfg config.TestConfig) *Store {
	results := cfg.ResultsFile
	if results != "" && !filepath.IsAbs(results) {
		results = filepath.Join(cfg.OutputDir, results)
	}
	return &Store{root: cfg.OutputDir, results: results}
}

// ResultsPath returns the results table path, empty when disabled.
func (s *Store) ResultsPath() string {
	return s.results
}

// Create makes a fresh directory for the session. The name contains the
// session ID so two sessions never share a directory.
func (s *Store) Create(meta Metadata) (string, error) {
	group := slug.Make(fmt.Sprintf("%s %s %s", meta.Manufacturer, meta.Material, meta.Color))
	if group == "" {
		group = "unnamed"
	}
	id := meta.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s-t%d-%s-%s",
		slug.Make(meta.Axis), meta.Trial, meta.Started.UTC().Format("20060102T150405Z"), id)

	parent := filepath.Join(s.root, group)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", parent, err)
	}

	dir := filepath.Join(parent, name)
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

// WriteSamples writes points as time_ms,force_N.
func (s *Store) WriteSamples(dir string, points []Point) error {
	path := filepath.Join(dir, SamplesFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := writePoints(f, points); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Debug().Str("file", path).Int("samples", len(points)).Msg("samples written")
	return nil
}

func writePoints(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_ms", "force_N"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			strconv.FormatInt(p.Elapsed.Milliseconds(), 10),
			strconv.FormatFloat(p.Force, 'f', 3, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSamples reads a samples file written by WriteSamples.
func ReadSamples(dir string) ([]Point, error) {
	path := filepath.Join(dir, SamplesFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}

	points := make([]Point, 0, len(records)-1)
	for i, rec := range records[1:] {
		ms, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		force, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		points = append(points, Point{Elapsed: time.Duration(ms) * time.Millisecond, Force: force})
	}
	return points, nil
}

// WriteResult writes the session metadata and outcome as YAML.
func (s *Store) WriteResult(dir string, res Result) error {
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadResult reads a session.yaml written by WriteResult.
func ReadResult(dir string) (Result, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var res Result
	if err := yaml.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	res.Dir = dir
	return res, nil
}

// AppendSummary appends row to the results table, writing the header first
// when the table is new.
func (s *Store) AppendSummary(row SummaryRow) error {
	if s.results == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.results), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.results), err)
	}

	f, err := os.OpenFile(s.results, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.results, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", s.results, err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(summaryHeader); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.results, err)
		}
	}
	if err := cw.Write(row.record()); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.results, err)
	}
	cw.Flush()
	if err := errors.Join(cw.Error(), f.Close()); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.results, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
