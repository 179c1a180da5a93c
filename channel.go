// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package clickadc

// CheckChannel returns ErrInvalidArgument if ch is not in [0,maxCh].
func CheckChannel(ch, maxCh int) error {
	if ch < 0 || ch > maxCh {
		return InvalidArgument("channel %d out of range [0,%d]", ch, maxCh)
	}
	return nil
}

// CheckSequence returns ErrInvalidArgument if stop is not in [1,maxStop] or count
// is not positive.
func CheckSequence(stop, count, maxStop int) error {
	if stop < 1 || stop > maxStop {
		return InvalidArgument("stop channel %d out of range [1,%d]", stop, maxStop)
	}
	if count < 1 {
		return InvalidArgument("count %d must be positive", count)
	}
	return nil
}

// CheckChannelID returns a *DesyncError if the sample carries a channel
// identifier that doesn't match expected.
// Samples without an identifier always pass.
func CheckChannelID(expected int, s RawSample) error {
	if !s.HasChannelID() || s.ChannelID == expected {
		return nil
	}
	return &DesyncError{Expected: expected, Got: s.ChannelID}
}
