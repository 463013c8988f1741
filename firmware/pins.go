//go:build tinygo

package main

import "machine"

const (
	// HX711 runs at 10 Hz with RATE low, 80 Hz with RATE high. Polling
	// faster only returns readings as they become ready.
	OUTPUT_INTERVAL_MS = 10

	// HX711 pins
	PIN_HX711_DOUT = machine.GP0
	PIN_HX711_SCK  = machine.GP1

	// Serial configuration
	// Format "-8388608\n" = 9 bytes max per line at up to 100 lines/sec.
	// UART 8N1: 10 bits/byte = 9,000 baud minimum, 115200 leaves ample headroom.
	UART_BAUD_RATE = 115200

	// Longest accepted host line (calibration object)
	LINE_BUFFER_SIZE = 128
)
