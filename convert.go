// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package clickadc

// Voltage ranges of the supported chips, in volts.
const (
	ADC20VoltageRange = 3.3
	ADC24VoltageRange = 2.5
)

// ToMillivolts converts a raw code to millivolts given the full scale code
// and the voltage range, in volts, that full scale corresponds to.
//
// The result is truncated toward zero, not rounded.
func ToMillivolts(code, fullScale int32, vrange float64) int {
	if fullScale == 0 {
		return 0
	}
	return int(float64(code) / float64(fullScale) * vrange * 1000)
}

// SampleMillivolts converts a sample using the full scale of its resolution.
func SampleMillivolts(s RawSample, vrange float64) int {
	return ToMillivolts(s.Code, s.Resolution.FullScale(), vrange)
}
