// Package session records tensile pulls: it samples calibrated force until
// the specimen breaks or the operator stops, then stores the samples, the
// session metadata and a summary row.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/loadcell"
	"github.com/itohio/gotensile/pkg/meter"
	"github.com/itohio/gotensile/pkg/sample"
)

var (
	// ErrInterrupted is returned when the run was canceled before a stop
	// condition fired. Samples recorded so far are still written.
	ErrInterrupted = errors.New("session interrupted")
	// ErrNoSamples is returned when nothing was recorded.
	ErrNoSamples = errors.New("no samples recorded")
)

// StopReason tells why a session ended.
type StopReason string

const (
	StopOperator     StopReason = "stop"
	StopBreak        StopReason = StopReason(meter.ReasonBreak)
	StopDrop         StopReason = StopReason(meter.ReasonDrop)
	StopInterrupted  StopReason = "interrupted"
	StopDisconnected StopReason = "disconnected"
)

// Metadata describes the specimen under test.
type Metadata struct {
	ID             string    `yaml:"id"`
	Material       string    `yaml:"material"`
	Manufacturer   string    `yaml:"manufacturer"`
	Color          string    `yaml:"color"`
	Axis           string    `yaml:"axis"`     // xy or z
	Area           float64   `yaml:"area_mm2"` // Cross-section, 0 picks the axis default
	Printer        string    `yaml:"printer,omitempty"`
	ExtrusionWidth float64   `yaml:"extrusion_width_mm,omitempty"`
	LayerHeight    float64   `yaml:"layer_height_mm,omitempty"`
	Notes          string    `yaml:"notes,omitempty"`
	Trial          int       `yaml:"trial"`
	Started        time.Time `yaml:"started"`
}

// Point is one recorded sample relative to the session start.
type Point struct {
	Elapsed time.Duration
	Force   float64 // N
}

// Result is the outcome of a session.
type Result struct {
	Metadata `yaml:",inline"`

	Finished time.Time     `yaml:"finished"`
	Peak     float64       `yaml:"peak_force_n"`
	PeakAt   time.Duration `yaml:"peak_at"`
	Strength float64       `yaml:"strength_mpa"`
	Samples  int           `yaml:"samples"`
	Reason   StopReason    `yaml:"stop_reason"`

	Dir    string  `yaml:"-"`
	Points []Point `yaml:"-"`
}

// Summary returns the results table row for the session.
func (r Result) Summary() SummaryRow {
	return SummaryRow{
		Timestamp:    r.Started,
		SessionID:    r.ID,
		Manufacturer: r.Manufacturer,
		Material:     r.Material,
		Color:        r.Color,
		Axis:         r.Axis,
		Trial:        r.Trial,
		Area:         r.Area,
		PeakForce:    r.Peak,
		Strength:     r.Strength,
		Samples:      r.Samples,
		Reason:       r.Reason,
		Notes:        r.Notes,
	}
}

// Recorder runs sessions against a calibrated sample source.
type Recorder struct {
	cfg      config.TestConfig
	store    *Store
	detector meter.Detector

	callbacks []func(sample.Sample, meter.State)
}

// NewRecorder creates a recorder writing into store.
func NewRecorder(cfg config.TestConfig, store *Store) *Recorder {
	return &Recorder{cfg: cfg, store: store, detector: meter.New(cfg)}
}

// OnSample registers a callback invoked for every sample consumed, including
// samples seen before the start threshold was reached.
func (r *Recorder) OnSample(cb func(sample.Sample, meter.State)) {
	r.callbacks = append(r.callbacks, cb)
}

// Run records one session. It returns when the specimen breaks, force stays
// low for the drop duration, stop is closed, ctx is canceled or the source
// fails. On cancellation or source failure the samples recorded so far are
// written before the error is returned, and no summary row is added.
// Run must not be called concurrently.
func (r *Recorder) Run(ctx context.Context, meta Metadata, src sample.Source, stop <-chan struct{}) (Result, error) {
	if meta.Area <= 0 {
		meta.Area = r.cfg.Area(meta.Axis)
	}
	if meta.Area <= 0 {
		return Result{}, fmt.Errorf("no cross-section area for axis %q", meta.Axis)
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Started.IsZero() {
		meta.Started = time.Now().UTC()
	}

	if rs, ok := src.(loadcell.Resetter); ok {
		if n := rs.Reset(); n > 0 {
			log.Debug().Int("discarded", n).Msg("dropped stale readings")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stopped atomic.Bool
	go func() {
		select {
		case <-stop:
			stopped.Store(true)
			cancel()
		case <-runCtx.Done():
		}
	}()

	logger := log.With().Str("session", meta.ID).Int("trial", meta.Trial).Logger()
	logger.Info().Str("axis", meta.Axis).Float64("area_mm2", meta.Area).Msg("session started")

	m := r.detector
	m.Reset()
	armed := r.cfg.StartThreshold <= 0
	if !armed {
		logger.Info().Float64("threshold_n", r.cfg.StartThreshold).Msg("waiting for force to reach threshold")
	}

	var (
		points       []Point
		first        time.Time
		lastRecorded time.Time
		reason       StopReason
		runErr       error
	)

	for {
		s, err := src.Next(runCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				reason = StopInterrupted
				runErr = fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
			case stopped.Load():
				reason = StopOperator
			default:
				reason = StopDisconnected
				runErr = err
			}
			break
		}

		if !armed {
			if s.Force < r.cfg.StartThreshold {
				r.notify(s, meter.State{Last: s})
				continue
			}
			armed = true
			logger.Info().Float64("force_n", s.Force).Msg("threshold reached, recording")
		}
		if first.IsZero() {
			first = s.Timestamp
		}

		st := m.Process(s)
		if len(points) == 0 || s.Timestamp.Sub(lastRecorded) >= r.cfg.SampleInterval || st.Done() {
			points = append(points, Point{Elapsed: s.Timestamp.Sub(first), Force: s.Force})
			lastRecorded = s.Timestamp
		}
		r.notify(s, st)

		if st.Done() {
			reason = StopReason(st.Reason)
			break
		}
	}

	res := Result{
		Metadata: meta,
		Finished: time.Now().UTC(),
		Samples:  len(points),
		Reason:   reason,
		Points:   points,
	}
	if len(points) > 0 {
		st := m.State()
		res.Peak = st.Peak
		res.PeakAt = st.PeakTime.Sub(first)
		res.Strength = st.Peak / meta.Area
	}

	if len(points) == 0 {
		if runErr != nil {
			return res, runErr
		}
		return res, ErrNoSamples
	}

	if err := r.save(&res); err != nil {
		return res, errors.Join(runErr, err)
	}

	if runErr != nil {
		logger.Warn().Err(runErr).Int("samples", res.Samples).Str("dir", res.Dir).Msg("session aborted, samples flushed")
		return res, runErr
	}

	if err := r.store.AppendSummary(res.Summary()); err != nil {
		return res, err
	}

	logger.Info().
		Str("reason", string(res.Reason)).
		Float64("peak_n", res.Peak).
		Float64("strength_mpa", res.Strength).
		Int("samples", res.Samples).
		Str("dir", res.Dir).
		Msg("session finished")
	return res, nil
}

func (r *Recorder) save(res *Result) error {
	dir, err := r.store.Create(res.Metadata)
	if err != nil {
		return err
	}
	res.Dir = dir

	if err := r.store.WriteSamples(dir, res.Points); err != nil {
		return err
	}
	return r.store.WriteResult(dir, *res)
}

func (r *Recorder) notify(s sample.Sample, st meter.State) {
	for _, cb := range r.callbacks {
		cb(s, st)
	}
}
