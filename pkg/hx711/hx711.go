// Package hx711 reads the HX711 24-bit load cell ADC over its two-wire
// interface. It only uses the standard library so the firmware can share it
// with the host.
package hx711

const (
	MaxCode = 0x7FFFFF
	MinCode = -0x800000

	frameBits = 24
)

// Gain selects the channel and gain for the next conversion by the number of
// extra clock pulses after a frame.
type Gain int

const (
	Gain128 Gain = 1 // Channel A
	Gain32  Gain = 2 // Channel B
	Gain64  Gain = 3 // Channel A
)

// Pin is the part of a GPIO pin the reader needs. TinyGo's machine.Pin
// satisfies it.
type Pin interface {
	High()
	Low()
	Get() bool
}

// Device is a bit-banged HX711.
type Device struct {
	dout Pin
	sck  Pin
	gain Gain
}

// New creates a reader. dout must be configured as input and sck as output.
func New(dout, sck Pin, gain Gain) *Device {
	if gain < Gain128 || gain > Gain64 {
		gain = Gain128
	}
	return &Device{dout: dout, sck: sck, gain: gain}
}

// Ready reports whether a conversion is waiting (DOUT pulled low).
func (d *Device) Ready() bool {
	return !d.dout.Get()
}

// Read clocks out one conversion. It returns false without clocking when no
// conversion is ready.
func (d *Device) Read() (int32, bool) {
	if !d.Ready() {
		return 0, false
	}

	var raw uint32
	for i := 0; i < frameBits; i++ {
		d.sck.High()
		raw <<= 1
		d.sck.Low()
		if d.dout.Get() {
			raw |= 1
		}
	}
	for i := 0; i < int(d.gain); i++ {
		d.sck.High()
		d.sck.Low()
	}

	return Decode(raw), true
}

// Decode sign-extends a 24-bit two's complement frame.
func Decode(raw uint32) int32 {
	raw &= 0xFFFFFF
	if raw&0x800000 != 0 {
		return int32(raw) - 0x1000000
	}
	return int32(raw)
}

// Clamp limits v to the codes the converter can report.
func Clamp(v float64) float64 {
	switch {
	case v > MaxCode:
		return MaxCode
	case v < MinCode:
		return MinCode
	}
	return v
}
