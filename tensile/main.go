package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/loadcell"
)

const usage = `Usage: tensile <command> [flags]

Commands:
  calibrate   Fit the load cell against reference weights
  test        Record tensile trials for one material
  push        Send the calibration file to the microcontroller
  ports       List serial ports
  init        Write a default configuration file

Run "tensile <command> -h" for command flags.
`

type command struct {
	name string
	run  func(ctx context.Context, args []string) error
}

var commands = []command{
	{"calibrate", runCalibrate},
	{"test", runTest},
	{"push", runPush},
	{"ports", runPorts},
	{"init", runInit},
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := os.Args[1], os.Args[2:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(0)
			}
			log.Error().Err(err).Str("command", name).Msg("failed")
			stop()
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
	os.Exit(2)
}

// common holds the flags every device command accepts.
type common struct {
	config  string
	port    string
	mock    bool
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "config.yaml", "Configuration file path")
	fs.StringVar(&c.port, "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	fs.BoolVar(&c.mock, "mock", false, "Use mocked device instead of serial port")
	fs.BoolVar(&c.verbose, "v", false, "Debug logging")
}

// load reads the configuration and applies the common overrides.
func (c *common) load() (*config.Config, error) {
	if c.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}
	if c.port != "" {
		cfg.Serial.Port = c.port
	}
	return cfg, nil
}

// openDevice connects to the serial device, or to a simulated one with
// -mock. The returned Mock is nil for real hardware.
func (c *common) openDevice(cfg *config.Config) (loadcell.Device, *loadcell.Mock, error) {
	if c.mock {
		m := loadcell.NewMock(&cfg.Mock)
		if err := m.Connect(); err != nil {
			return nil, nil, err
		}
		log.Info().Msg("using mocked load cell")
		return m, m, nil
	}

	d := loadcell.New(cfg.Serial.Port, cfg.Serial.BaudRate, loadcell.DefaultBufferSize)
	if err := d.Connect(); err != nil {
		return nil, nil, err
	}
	log.Info().Str("port", cfg.Serial.Port).Int("baud", cfg.Serial.BaudRate).Msg("connected")
	return d, nil, nil
}

// linkReport logs readings lost on the serial link since the previous call.
type linkReport struct {
	dev  loadcell.Device
	last loadcell.Stats
}

func (l *linkReport) report(after string) loadcell.Stats {
	sr, ok := l.dev.(loadcell.StatsReporter)
	if !ok {
		return loadcell.Stats{}
	}
	now := sr.Stats()
	delta := loadcell.Stats{
		ParseErrors: now.ParseErrors - l.last.ParseErrors,
		Dropped:     now.Dropped - l.last.Dropped,
	}
	l.last = now

	ev := log.Info()
	if delta.ParseErrors > 0 || delta.Dropped > 0 {
		ev = log.Warn()
	}
	ev.Str("after", after).
		Int("malformed_lines", delta.ParseErrors).
		Int("dropped", delta.Dropped).
		Msg("serial link")
	return delta
}
