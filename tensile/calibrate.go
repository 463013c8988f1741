package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/itohio/gotensile/pkg/calib"
	"github.com/itohio/gotensile/pkg/loadcell"
	"github.com/itohio/gotensile/pkg/spark"
)

func runCalibrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	var c common
	c.register(fs)
	outFlag := fs.String("o", "", "Calibration file override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *outFlag != "" {
		cfg.Calibration.File = *outFlag
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

	proc := calib.NewProcedure(cfg.Calibration, loadcell.NewReader(dev), con)
	proc.OnState(func(s calib.State, step calib.Step) {
		switch s {
		case calib.StateAwaitingBaseline, calib.StateAwaitingWeight:
			con.Printf("\nStep %d/%d (%g kg)\n", step.Index+1, len(proc.Steps()), step.WeightKg)
			if mock != nil {
				mock.SetLoad(step.Force)
			}
		case calib.StateFitting:
			con.Printf("\nFitting...\n")
		}
	})
	proc.OnWindow(func(step calib.Step, w calib.Window, attempt int) {
		con.Printf("  %s  mean %.1f  variance %.1f\n", spark.Line(w.Values), w.Mean, w.Variance)
		if cfg.Calibration.MaxVariance > 0 && w.Variance > cfg.Calibration.MaxVariance && attempt < cfg.Calibration.MaxRetries {
			con.Printf("  reading not settled, keep the weight still\n")
		}
	})

	link := &linkReport{dev: dev}
	m, err := proc.Run(ctx)
	link.report("calibration")
	if err != nil {
		return err
	}

	con.Printf("\nscale  %.9g N/count\noffset %.6g N\n", m.Scale, m.Offset)
	if cfg.Calibration.File != "" {
		con.Printf("saved to %s\n", cfg.Calibration.File)
	}
	log.Info().Int("points", len(m.Points)).Msg("calibration complete")
	return nil
}
