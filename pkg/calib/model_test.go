package calib

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotensile/pkg/hx711"
)

func TestFit_TwoPointsExact(t *testing.T) {
	points := []Point{
		{Force: 0, Raw: 8000},
		{Force: 100, Raw: 12000},
	}

	m, err := Fit(points)
	require.NoError(t, err)

	assert.InDelta(t, 0.025, m.Scale, 1e-15)
	assert.InDelta(t, -200, m.Offset, 1e-9)
	for _, p := range points {
		assert.InDelta(t, p.Force, m.Apply(p.Raw), 1e-9)
	}
	assert.Equal(t, points, m.Points)
}

func TestFit_TwoPointsRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		raw0 := rng.Float64()*2e6 - 1e6
		raw1 := raw0 + (rng.Float64()+0.01)*1e5
		points := []Point{
			{Force: 0, Raw: raw0},
			{Force: rng.Float64() * 500, Raw: raw1},
		}

		m, err := Fit(points)
		require.NoError(t, err)
		for _, p := range points {
			assert.InDelta(t, p.Force, m.Apply(p.Raw), 1e-6, "case %d", i)
		}
	}
}

func TestFit_LeastSquares(t *testing.T) {
	// force = 1.5*raw - 1/6 is the least-squares line through these
	points := []Point{
		{Force: 0, Raw: 0},
		{Force: 1, Raw: 1},
		{Force: 3, Raw: 2},
	}

	m, err := Fit(points)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, m.Scale, 1e-12)
	assert.InDelta(t, -1.0/6.0, m.Offset, 1e-12)

	var residual float64
	for _, p := range points {
		residual += p.Force - m.Apply(p.Raw)
	}
	assert.InDelta(t, 0, residual, 1e-12)
}

func TestFit_CollinearPoints(t *testing.T) {
	scale, offset := 0.0233, -187.4
	raws := []float64{8043, 11412, 14820, 21551}
	points := make([]Point, len(raws))
	for i, r := range raws {
		points[i] = Point{Force: scale*r + offset, Raw: r}
	}

	m, err := Fit(points)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, p.Force, m.Apply(p.Raw), 1e-9)
	}
}

func TestFit_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{name: "no points", points: nil},
		{name: "one point", points: []Point{{Force: 0, Raw: 8000}}},
		{name: "identical raw readings", points: []Point{
			{Force: 0, Raw: 8000},
			{Force: 77.5, Raw: 8000},
			{Force: 155.9, Raw: 8000},
		}},
		{name: "identical forces", points: []Point{
			{Force: 10, Raw: 8000},
			{Force: 10, Raw: 9000},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.points)
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestModel_Apply(t *testing.T) {
	m := Model{Scale: 0.002, Offset: -16}

	assert.InDelta(t, 0, m.Apply(8000), 1e-12)
	assert.InDelta(t, 4, m.Apply(10000), 1e-12)
	assert.InDelta(t, -16, m.Apply(0), 1e-12)
}

func TestModel_Validate(t *testing.T) {
	points := []Point{
		{Force: 0, Raw: 1000},
		{Force: 10, Raw: 1100},
		{Force: 20, Raw: 1400},
	}
	m, err := Fit(points)
	require.NoError(t, err)

	assert.NoError(t, m.Validate(points, 0))
	assert.NoError(t, m.Validate(points, 0.5))
	assert.ErrorIs(t, m.Validate(points, 0.05), ErrPoorFit)
}

func TestModel_SaveLoad(t *testing.T) {
	m := Model{
		Scale:   1.0 / 420.0,
		Offset:  -8000.0 / 420.0,
		Created: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Points: []Point{
			{Force: 0, Raw: 8000},
			{Force: 77.47, Raw: 40538.4},
		},
	}

	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Scale, loaded.Scale)
	assert.Equal(t, m.Offset, loaded.Offset)
	assert.True(t, m.Created.Equal(loaded.Created))
	assert.Equal(t, m.Points, loaded.Points)
}

func TestModel_SaveLoadRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	dir := t.TempDir()

	for i := 0; i < 50; i++ {
		m := Model{
			Scale:  (rng.Float64() - 0.5) * 1e-2,
			Offset: (rng.Float64() - 0.5) * 1e4,
		}
		if m.Scale == 0 {
			continue
		}
		path := filepath.Join(dir, "cal.json")
		require.NoError(t, m.Save(path))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, m.Scale, loaded.Scale)
		assert.Equal(t, m.Offset, loaded.Offset)
	}
}

func TestLoad_MinimalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scale": 0.5, "offset": -3}`), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Scale)
	assert.Equal(t, float64(-3), m.Offset)
	assert.True(t, m.Created.IsZero())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{"scale": `},
		{name: "missing scale", content: `{"offset": 1}`},
		{name: "zero scale", content: `{"scale": 0, "offset": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestModel_Compact(t *testing.T) {
	m := Model{
		Scale:   0.25,
		Offset:  -2000,
		Created: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Points:  []Point{{Force: 0, Raw: 8000}},
	}

	data, err := m.Compact()
	require.NoError(t, err)
	assert.Equal(t, `{"scale":0.25,"offset":-2000}`, string(data))

	fw, ok := hx711.ParseCalibration(string(data))
	require.True(t, ok)
	assert.Equal(t, m.Apply(8000), fw.Apply(8000))
}
