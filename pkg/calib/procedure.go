package calib

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/loadcell"
)

// ErrUnstableReading is returned when a step never produced a quiet window.
var ErrUnstableReading = errors.New("unstable reading")

// State is the calibration procedure state.
type State int

const (
	StateAwaitingBaseline State = iota
	StateAwaitingWeight
	StateFitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingBaseline:
		return "awaiting-baseline"
	case StateAwaitingWeight:
		return "awaiting-weight"
	case StateFitting:
		return "fitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step describes one reference weight placement.
type Step struct {
	Index    int
	WeightKg float64
	Force    float64 // N
}

// Prompt is the instruction shown to the operator for the step.
func (s Step) Prompt() string {
	if s.Index == 0 {
		return "Leave only the empty fixture attached, then press Enter"
	}
	return fmt.Sprintf("Place %g kg, then press Enter", s.WeightKg)
}

// Confirmer blocks until the operator confirms the prompt.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// Window summarizes the readings collected for one step.
type Window struct {
	Values   []float64
	Mean     float64
	Variance float64
}

// Procedure runs the guided calibration.
type Procedure struct {
	cfg     config.CalibrationConfig
	src     loadcell.Source
	confirm Confirmer

	steps  []Step
	points []Point
	state  State
	step   Step

	callbacks []func(State, Step)
	onWindow  []func(Step, Window, int)
}

// NewProcedure creates a procedure for the configured weights. A zero-weight
// tare step is prepended if the first weight is not zero.
func NewProcedure(cfg config.CalibrationConfig, src loadcell.Source, confirm Confirmer) *Procedure {
	weights := cfg.WeightsKg
	if len(weights) == 0 || weights[0] != 0 {
		weights = append([]float64{0}, weights...)
	}
	if cfg.Gravity == 0 {
		cfg.Gravity = config.StandardGravity
	}
	if cfg.WindowSamples <= 0 {
		cfg.WindowSamples = 1
	}

	steps := make([]Step, len(weights))
	for i, w := range weights {
		steps[i] = Step{Index: i, WeightKg: w, Force: w * cfg.Gravity}
	}

	return &Procedure{
		cfg:     cfg,
		src:     src,
		confirm: confirm,
		steps:   steps,
		state:   StateAwaitingBaseline,
	}
}

// Steps returns the weight placements in order.
func (p *Procedure) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// State returns the current state.
func (p *Procedure) State() State {
	return p.state
}

// Points returns the calibration points recorded so far.
func (p *Procedure) Points() []Point {
	return append([]Point(nil), p.points...)
}

// OnState registers a callback invoked on every state transition.
func (p *Procedure) OnState(cb func(State, Step)) {
	p.callbacks = append(p.callbacks, cb)
}

// OnWindow registers a callback invoked after every sampled window with the
// attempt number (0 for the first try).
func (p *Procedure) OnWindow(cb func(Step, Window, int)) {
	p.onWindow = append(p.onWindow, cb)
}

// Run walks through every step, fits the model and saves it to cfg.File
// (when set). Any error leaves the procedure in StateFailed.
func (p *Procedure) Run(ctx context.Context) (Model, error) {
	m, err := p.run(ctx)
	if err != nil {
		p.transition(StateFailed, p.step)
		return Model{}, err
	}
	return m, nil
}

func (p *Procedure) run(ctx context.Context) (Model, error) {
	for _, step := range p.steps {
		if step.Index == 0 {
			p.transition(StateAwaitingBaseline, step)
		} else {
			p.transition(StateAwaitingWeight, step)
		}

		if err := p.confirm.Confirm(ctx, step.Prompt()); err != nil {
			return Model{}, fmt.Errorf("step %d: confirmation: %w", step.Index, err)
		}

		w, err := p.sampleStep(ctx, step)
		if err != nil {
			return Model{}, err
		}

		if err := p.dumpWindow(step, w); err != nil {
			return Model{}, err
		}

		p.points = append(p.points, Point{Force: step.Force, Raw: w.Mean})
		log.Info().
			Int("step", step.Index).
			Float64("weight_kg", step.WeightKg).
			Float64("raw", w.Mean).
			Float64("variance", w.Variance).
			Msg("calibration point recorded")
	}

	p.transition(StateFitting, p.step)

	m, err := Fit(p.points)
	if err != nil {
		return Model{}, err
	}
	if err := m.Validate(p.points, p.cfg.Tolerance); err != nil {
		return Model{}, err
	}
	m.Created = time.Now().UTC()

	if p.cfg.File != "" {
		if err := m.Save(p.cfg.File); err != nil {
			return Model{}, err
		}
		log.Info().Str("file", p.cfg.File).Float64("scale", m.Scale).Float64("offset", m.Offset).Msg("calibration saved")
	}

	p.transition(StateDone, p.step)
	return m, nil
}

// sampleStep collects windows until one is quiet enough or retries run out.
func (p *Procedure) sampleStep(ctx context.Context, step Step) (Window, error) {
	var last Window
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		w, err := p.sampleWindow(ctx)
		if err != nil {
			return Window{}, fmt.Errorf("step %d: %w", step.Index, err)
		}
		for _, cb := range p.onWindow {
			cb(step, w, attempt)
		}

		if p.cfg.MaxVariance <= 0 || w.Variance <= p.cfg.MaxVariance {
			return w, nil
		}

		log.Warn().
			Int("step", step.Index).
			Int("attempt", attempt+1).
			Float64("variance", w.Variance).
			Float64("max_variance", p.cfg.MaxVariance).
			Msg("reading not settled, resampling")
		last = w
	}

	return Window{}, fmt.Errorf("%w: step %d (%g kg) variance %.1f above %.1f after %d attempts",
		ErrUnstableReading, step.Index, step.WeightKg, last.Variance, p.cfg.MaxVariance, p.cfg.MaxRetries+1)
}

// sampleWindow drops stale and settling readings, then collects one window.
func (p *Procedure) sampleWindow(ctx context.Context) (Window, error) {
	if r, ok := p.src.(loadcell.Resetter); ok {
		if n := r.Reset(); n > 0 {
			log.Debug().Int("discarded", n).Msg("dropped buffered readings")
		}
	}

	for i := 0; i < p.cfg.IgnoreSamples; i++ {
		if _, err := p.src.Next(ctx); err != nil {
			return Window{}, err
		}
	}

	values := make([]float64, 0, p.cfg.WindowSamples)
	for len(values) < p.cfg.WindowSamples {
		s, err := p.src.Next(ctx)
		if err != nil {
			return Window{}, err
		}
		values = append(values, s.Value)
	}

	w := Window{Values: values}
	if len(values) > 1 {
		w.Mean, w.Variance = stat.MeanVariance(values, nil)
	} else {
		w.Mean = values[0]
	}
	return w, nil
}

// dumpWindow writes the accepted window to
// DataDir/calibration-<step>-<kg>.csv, step counting from 1.
func (p *Procedure) dumpWindow(step Step, w Window) error {
	if p.cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.cfg.DataDir, err)
	}

	path := filepath.Join(p.cfg.DataDir, fmt.Sprintf("calibration-%d-%g.csv", step.Index+1, step.WeightKg))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	for i, v := range w.Values {
		if err := cw.Write([]string{strconv.Itoa(i + 1), strconv.FormatFloat(v, 'f', -1, 64)}); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func (p *Procedure) transition(s State, step Step) {
	p.state = s
	p.step = step
	log.Debug().Str("state", s.String()).Int("step", step.Index).Msg("calibration state")
	for _, cb := range p.callbacks {
		cb(s, step)
	}
}
