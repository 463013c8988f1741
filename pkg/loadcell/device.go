package loadcell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// DefaultBaudRate must match the firmware.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 256
)

// RawSample is a single reading from the MCU stamped with its arrival time.
// Before the firmware is calibrated the value is in raw HX711 counts,
// afterwards it is already in newtons.
type RawSample struct {
	Timestamp time.Time
	Value     float64
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the load cell MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn        serial.Port
	samples     chan RawSample
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	connected   bool
	err         error
	parseErrors int
	dropped     int
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		samples:  make(chan RawSample, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, p := range details {
		desc := p.Name
		if p.IsUSB {
			desc = fmt.Sprintf("%s %s:%s", p.Product, p.VID, p.PID)
		}
		result = append(result, Port{
			Name:        p.Name,
			Description: strings.TrimSpace(desc),
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading samples.
// A Serial can only be connected once.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if d.conn != nil || d.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readSamples(port)

	return nil
}

// Close closes the port. The samples channel is closed once the reader
// goroutine notices.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	d.cancel()

	if err := d.conn.Close(); err != nil {
		log.Warn().Err(err).Str("port", d.port).Msg("error closing serial port")
	}
	d.conn = nil
	d.connected = false

	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// Err returns why the samples channel was closed, nil while it is open.
func (d *Serial) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Stats returns the link counters of this device.
func (d *Serial) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{ParseErrors: d.parseErrors, Dropped: d.dropped}
}

// WriteCalibration pushes calibration file content to the MCU.
func (d *Serial) WriteCalibration(data []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	payload := append([]byte(nil), data...)
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		payload = append(payload, '\n')
	}

	if _, err := d.conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send calibration: %w", err)
	}

	return nil
}

// readSamples owns the samples channel and closes it when the port stops
// producing lines.
func (d *Serial) readSamples(r io.Reader) {
	defer close(d.samples)

	err := d.scan(r)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Err() != nil {
		d.err = fmt.Errorf("port %s closed", d.port)
		return
	}
	d.err = err
	d.connected = false
	log.Error().Err(err).Str("port", d.port).Msg("serial link lost")
}

// scan frames r into readings until it fails. The first line is discarded
// because it may be the tail of a line buffered before we opened the port.
func (d *Serial) scan(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if d.ctx.Err() != nil {
			return d.ctx.Err()
		}
		if first {
			first = false
			continue
		}

		value, err := ParseLine(scanner.Text())
		if err != nil {
			if errors.Is(err, errEmptyLine) {
				continue
			}
			d.mu.Lock()
			d.parseErrors++
			d.mu.Unlock()
			log.Warn().Err(err).Msg("skipping line")
			continue
		}

		select {
		case d.samples <- RawSample{Timestamp: time.Now(), Value: value}:
		case <-d.ctx.Done():
			return d.ctx.Err()
		default:
			d.mu.Lock()
			d.dropped++
			dropped := d.dropped
			d.mu.Unlock()
			log.Debug().Int("dropped", dropped).Msg("samples channel full, dropping sample")
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// ParseLine parses one line of the serial protocol: a single ASCII decimal
// number, integer or float, surrounded by optional whitespace.
func ParseLine(line string) (float64, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return 0, errEmptyLine
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Err: err}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ParseError{Line: line, Err: errNotFinite}
	}

	return value, nil
}
