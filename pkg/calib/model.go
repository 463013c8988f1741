package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when points cannot determine a line:
	// fewer than two points, or all raw readings identical.
	ErrInsufficientData = errors.New("insufficient calibration data")
	// ErrPoorFit is returned when a point lies too far from the fitted line.
	ErrPoorFit = errors.New("calibration point deviates from fit")
)

// Point pairs a known force with the stabilized raw reading it produced.
type Point struct {
	Force float64 `json:"force"` // N
	Raw   float64 `json:"raw"`   // Counts
}

// Model maps raw counts to force: force = Scale*raw + Offset.
type Model struct {
	Scale   float64   `json:"scale"`
	Offset  float64   `json:"offset"`
	Created time.Time `json:"created,omitzero"`
	Points  []Point   `json:"points,omitempty"`
}

// Fit computes the least-squares line through points. With exactly two
// points the line passes through both.
func Fit(points []Point) (Model, error) {
	if len(points) < 2 {
		return Model{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(points))
	}

	raws := make([]float64, len(points))
	forces := make([]float64, len(points))
	distinct := false
	for i, p := range points {
		raws[i] = p.Raw
		forces[i] = p.Force
		if p.Raw != points[0].Raw {
			distinct = true
		}
	}
	if !distinct {
		return Model{}, fmt.Errorf("%w: all raw readings equal %v", ErrInsufficientData, points[0].Raw)
	}

	offset, scale := stat.LinearRegression(raws, forces, nil, false)
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) || math.IsNaN(offset) || math.IsInf(offset, 0) {
		return Model{}, fmt.Errorf("%w: degenerate scale %v", ErrInsufficientData, scale)
	}

	return Model{
		Scale:  scale,
		Offset: offset,
		Points: append([]Point(nil), points...),
	}, nil
}

// Apply converts a raw reading to force.
func (m Model) Apply(raw float64) float64 {
	return m.Scale*raw + m.Offset
}

// Validate checks that every point is within tolerance*max|force| of the
// line. A tolerance of 0 accepts anything.
func (m Model) Validate(points []Point, tolerance float64) error {
	if tolerance <= 0 {
		return nil
	}

	var fullScale float64
	for _, p := range points {
		fullScale = math.Max(fullScale, math.Abs(p.Force))
	}
	limit := tolerance * fullScale

	for _, p := range points {
		if dev := math.Abs(m.Apply(p.Raw) - p.Force); dev > limit {
			return fmt.Errorf("%w: %.2f N point predicted %.2f N (limit ±%.2f N)",
				ErrPoorFit, p.Force, m.Apply(p.Raw), limit)
		}
	}
	return nil
}

// Save writes the model as JSON. The firmware reads the same file.
func (m Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write calibration %s: %w", path, err)
	}
	return nil
}

// Compact returns the single-line form sent to the firmware, scale and
// offset only.
func (m Model) Compact() ([]byte, error) {
	data, err := json.Marshal(struct {
		Scale  float64 `json:"scale"`
		Offset float64 `json:"offset"`
	}{m.Scale, m.Offset})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calibration: %w", err)
	}
	return data, nil
}

// Load reads a model written by Save.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("failed to read calibration %s: %w", path, err)
	}

	var raw struct {
		Model
		Scale *float64 `json:"scale"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Model{}, fmt.Errorf("failed to parse calibration %s: %w", path, err)
	}
	if raw.Scale == nil || *raw.Scale == 0 {
		return Model{}, fmt.Errorf("calibration %s: missing or zero scale", path)
	}

	m := raw.Model
	m.Scale = *raw.Scale
	return m, nil
}
