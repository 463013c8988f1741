package hx711

import (
	"strconv"
	"strings"
)

// Calibration converts counts to newtons on the microcontroller.
type Calibration struct {
	Scale  float64
	Offset float64
}

// Apply converts counts to force.
func (c Calibration) Apply(counts int32) float64 {
	return c.Scale*float64(counts) + c.Offset
}

// ParseCalibration reads a one-line {"scale":..,"offset":..} object, looking
// only for those two keys. A missing or zero scale is rejected, a missing
// offset is zero.
func ParseCalibration(line string) (Calibration, bool) {
	scale, ok := field(line, "scale")
	if !ok || scale == 0 {
		return Calibration{}, false
	}
	offset, ok := field(line, "offset")
	if !ok {
		offset = 0
	}
	return Calibration{Scale: scale, Offset: offset}, true
}

func field(line, name string) (float64, bool) {
	key := `"` + name + `"`
	i := strings.Index(line, key)
	if i < 0 {
		return 0, false
	}

	rest := strings.TrimLeft(line[i+len(key):], " \t")
	if !strings.HasPrefix(rest, ":") {
		return 0, false
	}
	rest = strings.TrimLeft(rest[1:], " \t")

	end := strings.IndexAny(rest, ",} \t\r\n")
	if end < 0 {
		end = len(rest)
	}
	v, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
