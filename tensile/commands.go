package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/itohio/gotensile/pkg/calib"
	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/loadcell"
)

// calibrationWriter is implemented by devices that accept a calibration.
type calibrationWriter interface {
	WriteCalibration(data []byte) error
}

var _ calibrationWriter = (*loadcell.Serial)(nil)

func runPush(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	var c common
	c.register(fs)
	fileFlag := fs.String("f", "", "Calibration file override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *fileFlag != "" {
		cfg.Calibration.File = *fileFlag
	}

	m, err := calib.Load(cfg.Calibration.File)
	if err != nil {
		return err
	}
	payload, err := m.Compact()
	if err != nil {
		return err
	}

	dev, _, err := c.openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	w, ok := dev.(calibrationWriter)
	if !ok {
		log.Info().Str("payload", string(payload)).Msg("mocked device, calibration not sent")
		return nil
	}
	if err := w.WriteCalibration(payload); err != nil {
		return err
	}

	log.Info().Str("file", cfg.Calibration.File).Str("port", cfg.Serial.Port).Msg("calibration sent")
	return nil
}

func runPorts(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("ports", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ports, err := loadcell.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tDESCRIPTION")
	for _, p := range ports {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
	}
	return tw.Flush()
}

func runInit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configFlag := fs.String("config", "config.yaml", "Configuration file path")
	forceFlag := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*configFlag); err == nil && !*forceFlag {
		return fmt.Errorf("%s already exists, use -force to overwrite", *configFlag)
	}

	if err := config.Default().Save(*configFlag); err != nil {
		return err
	}
	log.Info().Str("file", *configFlag).Msg("default configuration written")
	return nil
}
