//go:build tinygo

//go:generate tinygo flash -target=pico

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/itohio/gotensile/pkg/hx711"
)

var (
	cell *hx711.Device
	uart = machine.Serial

	// Calibration pushed by the host, counts are sent as-is until then
	cal        hx711.Calibration
	calibrated bool

	// Serial buffer for reading lines
	serialBuffer [LINE_BUFFER_SIZE]byte
	serialPos    int
	overflow     bool

	lastOutput time.Time
)

func main() {
	PIN_HX711_SCK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HX711_DOUT.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_HX711_SCK.Low()

	cell = hx711.New(PIN_HX711_DOUT, PIN_HX711_SCK, hx711.Gain128)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()

		if time.Since(lastOutput) >= time.Duration(OUTPUT_INTERVAL_MS)*time.Millisecond {
			if counts, ok := cell.Read(); ok {
				output(counts)
				lastOutput = time.Now()
			}
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// output prints one reading per line: raw counts, or newtons once
// calibrated.
func output(counts int32) {
	if calibrated {
		print(strconv.FormatFloat(cal.Apply(counts), 'f', 3, 64))
	} else {
		print(counts)
	}
	print("\n")
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 && !overflow {
				processLine(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			overflow = false
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Too long, drop the whole line
			overflow = true
		}
	}
}

// processLine accepts a calibration object or "raw" to go back to counts.
func processLine(line string) {
	if line == "raw" {
		calibrated = false
		return
	}

	if c, ok := hx711.ParseCalibration(line); ok {
		cal = c
		calibrated = true
	}
}
