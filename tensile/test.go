package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/gotensile/pkg/calib"
	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/loadcell"
	"github.com/itohio/gotensile/pkg/meter"
	"github.com/itohio/gotensile/pkg/sample"
	"github.com/itohio/gotensile/pkg/session"
	"github.com/itohio/gotensile/pkg/spark"
)

const (
	sparkSpan     = 1500 * time.Millisecond
	sparkWidth    = 60
	statusRefresh = 100 * time.Millisecond
)

type testFlags struct {
	material       string
	manufacturer   string
	color          string
	axis           string
	trials         int
	threshold      float64
	area           float64
	printer        string
	extrusionWidth float64
	layerHeight    float64
	notes          string
	out            string
}

func (f *testFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.material, "type", "", "Material type, e.g. PLA (required)")
	fs.StringVar(&f.manufacturer, "manufacturer", "", "Filament manufacturer (required)")
	fs.StringVar(&f.color, "color", "", "Filament color (required)")
	fs.StringVar(&f.axis, "axis", "", "Print axis under test: xy or z (required)")
	fs.IntVar(&f.trials, "trials", 0, "Number of trials (0 = config)")
	fs.Float64Var(&f.threshold, "threshold", -1, "Force in N that starts recording (-1 = config)")
	fs.Float64Var(&f.area, "cross-section", 0, "Specimen cross-section in mm² (0 = axis default)")
	fs.StringVar(&f.printer, "printer", "", "Printer used for the specimens")
	fs.Float64Var(&f.extrusionWidth, "extrusion-width", 0, "Extrusion width in mm")
	fs.Float64Var(&f.layerHeight, "layer-height", 0, "Layer height in mm")
	fs.StringVar(&f.notes, "notes", "", "Free-form notes")
	fs.StringVar(&f.out, "out", "", "Output directory override")
}

func (f *testFlags) validate() error {
	switch {
	case f.material == "":
		return errors.New("-type is required")
	case f.manufacturer == "":
		return errors.New("-manufacturer is required")
	case f.color == "":
		return errors.New("-color is required")
	case f.axis != "xy" && f.axis != "z":
		return fmt.Errorf("-axis must be xy or z, got %q", f.axis)
	case f.area < 0:
		return errors.New("-cross-section must be positive")
	}
	return nil
}

func (f *testFlags) apply(cfg *config.TestConfig) {
	if f.trials > 0 {
		cfg.Trials = f.trials
	}
	if f.threshold >= 0 {
		cfg.StartThreshold = f.threshold
	}
	if f.out != "" {
		cfg.OutputDir = f.out
	}
}

func (f *testFlags) metadata(trial int) session.Metadata {
	return session.Metadata{
		Material:       f.material,
		Manufacturer:   f.manufacturer,
		Color:          f.color,
		Axis:           f.axis,
		Area:           f.area,
		Printer:        f.printer,
		ExtrusionWidth: f.extrusionWidth,
		LayerHeight:    f.layerHeight,
		Notes:          f.notes,
		Trial:          trial,
	}
}

func runTest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var (
		c  common
		tf testFlags
	)
	c.register(fs)
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := tf.validate(); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	tf.apply(&cfg.Test)

	cal, err := hostCalibration(cfg, c.mock)
	if err != nil {
		return err
	}

	dev, mock, err := c.openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	con := openConsole(cancel)
	defer con.Close()

	stream := sample.NewStream(loadcell.NewReader(dev), sample.NewConverter(cal, cfg.Test.Smoothing))
	rec := session.NewRecorder(cfg.Test, session.NewStore(cfg.Test))

	window := spark.NewWindow(sparkSpan, sparkWidth, spark.Force)
	var lastStatus time.Time
	rec.OnSample(func(s sample.Sample, st meter.State) {
		window.Add(s)
		if now := time.Now(); now.Sub(lastStatus) >= statusRefresh || st.Done() {
			lastStatus = now
			con.Printf("\r%s %8.1f N %+8.1f N/s  peak %8.1f N ", window.Render(), s.Force, st.Rate, st.Peak)
		}
	})

	link := &linkReport{dev: dev}
	var results []session.Result
	for trial := 1; trial <= cfg.Test.Trials; trial++ {
		prompt := fmt.Sprintf("Trial %d/%d: mount the specimen, then press Enter", trial, cfg.Test.Trials)
		if err := con.Confirm(ctx, prompt); err != nil {
			return err
		}

		window.Reset()
		if mock != nil {
			mock.SetLoad(0)
			mock.StartPull()
		}
		if con.Interactive() {
			con.Printf("Pulling, press q or Esc to stop\n")
		}

		res, err := rec.Run(ctx, tf.metadata(trial), stream, con.Stop())
		con.Printf("\n")
		link.report(fmt.Sprintf("trial %d", trial))
		switch {
		case errors.Is(err, session.ErrNoSamples):
			log.Warn().Int("trial", trial).Msg("nothing recorded, force never reached the threshold")
			continue
		case err != nil:
			if len(results) > 0 {
				con.Close()
				printSummary(os.Stdout, results)
			}
			return err
		}

		results = append(results, res)
		con.Printf("Trial %d: peak %.2f N, strength %.2f MPa (%s)\n", trial, res.Peak, res.Strength, res.Reason)
	}

	con.Close()
	printSummary(os.Stdout, results)
	return nil
}

// hostCalibration returns the model applied to raw readings. Without
// ApplyOnHost the firmware is expected to report newtons already.
func hostCalibration(cfg *config.Config, mock bool) (sample.Calibration, error) {
	if !cfg.Calibration.ApplyOnHost {
		return sample.Identity{}, nil
	}

	m, err := calib.Load(cfg.Calibration.File)
	if err == nil {
		log.Info().Str("file", cfg.Calibration.File).Float64("scale", m.Scale).Float64("offset", m.Offset).Msg("calibration loaded")
		return m, nil
	}
	if !mock {
		return nil, fmt.Errorf("%w (run tensile calibrate first)", err)
	}

	log.Warn().Err(err).Msg("using the mock's own calibration")
	return calib.Model{
		Scale:  1 / cfg.Mock.CountsPerNewton,
		Offset: -cfg.Mock.Offset / cfg.Mock.CountsPerNewton,
	}, nil
}

// summary aggregates completed trials.
type summary struct {
	Trials   int
	Peak     float64 // Mean peak force, N
	Strength float64 // Mean strength, MPa
}

func summarize(results []session.Result) summary {
	if len(results) == 0 {
		return summary{}
	}
	peaks := make([]float64, len(results))
	strengths := make([]float64, len(results))
	for i, r := range results {
		peaks[i] = r.Peak
		strengths[i] = r.Strength
	}
	return summary{
		Trials:   len(results),
		Peak:     stat.Mean(peaks, nil),
		Strength: stat.Mean(strengths, nil),
	}
}

func printSummary(w io.Writer, results []session.Result) {
	fmt.Fprintln(w, "\n=== TEST SUMMARY ===")
	if len(results) == 0 {
		fmt.Fprintln(w, "No trials recorded")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "  Trial %d: %.2f N\n", r.Trial, r.Peak)
	}
	s := summarize(results)
	fmt.Fprintf(w, "Average max force: %.2f N\n", s.Peak)
	fmt.Fprintf(w, "Tensile strength: %.2f MPa\n", s.Strength)
}
