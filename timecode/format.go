// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timecode

import (
	"math"
	"time"

	"golang.org/x/xerrors"
)

// ErrOutOfRange is returned for timecode fields outside of their range.
var ErrOutOfRange = xerrors.New("timecode: value out of range")

// TVStandard selects the position of the binary group flags
// and of the parity bit in an LTC frame.
type TVStandard uint8

const (
	TV525_60 TVStandard = iota // 30, 29.97 and 24 fps family
	TV625_50                   // 25 fps family
)

func (std TVStandard) String() string {
	switch std {
	case TV525_60:
		return "525/60"
	case TV625_50:
		return "625/50"
	}
	return "invalid"
}

// StandardFor returns the TV standard matching the given frame rate.
func StandardFor(fps float64) TVStandard {
	if math.Abs(fps-25) < 1e-6 {
		return TV625_50
	}
	return TV525_60
}

// BGFMode describes how the binary group flags and the user bits
// are handled.
type BGFMode uint8

const (
	// UseDate stores the date and timezone in the user bits and
	// flags it in the binary group flags.
	UseDate BGFMode = iota
	// DontTouch leaves the binary group flags and the user bits
	// under the control of the caller.
	DontTouch
)

func (m BGFMode) String() string {
	switch m {
	case UseDate:
		return "use-date"
	case DontTouch:
		return "dont-touch"
	}
	return "invalid"
}

// Format describes how frames are stepped and converted.
type Format struct {
	FPS      float64    // frames per second
	Standard TVStandard // TV standard
	Mode     BGFMode    // binary group flags mode
	NoParity bool       // leave the parity bit untouched
}

// NewFormat returns the format for the given frame rate and mode,
// deriving the TV standard from the frame rate.
func NewFormat(fps float64, mode BGFMode) Format {
	return Format{
		FPS:      fps,
		Standard: StandardFor(fps),
		Mode:     mode,
	}
}

// IsDropFrame reports whether fps is a drop-frame rate (29.97 or 30000/1001).
func IsDropFrame(fps float64) bool {
	return math.Round(fps*100) == 2997
}

// DropFrame reports whether frames are numbered with the drop-frame rule.
func (ft Format) DropFrame() bool { return IsDropFrame(ft.FPS) }

// FramesPerSecond returns the number of frame labels in one second.
func (ft Format) FramesPerSecond() int {
	return int(math.Ceil(ft.FPS - 1e-6))
}

// dropped reports whether the frame label is skipped by the drop-frame rule.
func (ft Format) dropped(m, s, n int) bool {
	return ft.DropFrame() && s == 0 && n < 2 && m%10 != 0
}

// InitFlags initializes the flag bits of f: the drop-frame flag
// always follows the frame rate. Under UseDate, the colour-frame flag
// is cleared, the clock flag (BGF1) is set to clock and the date flag
// is raised.
func (ft Format) InitFlags(f *Frame, clock bool) {
	f.setBool(DropFrame, ft.DropFrame())
	if ft.Mode == UseDate {
		f.SetColorFrame(false)
		f.setBool(Flag58, clock)
		switch ft.Standard {
		case TV625_50:
			f.Set(Flag27, 0)
			f.Set(Flag43, 1)
		default:
			f.Set(Flag43, 0)
			f.Set(Flag59, 1)
		}
	}
	ft.finish(f)
}

func (ft Format) finish(f *Frame) {
	if !ft.NoParity {
		f.SetParity(ft.Standard)
	}
}

// Increment advances f by one frame.
// Increment returns true when the timecode wrapped around at 24h.
func (ft Format) Increment(f *Frame) bool {
	var (
		fps        = ft.FramesPerSecond()
		h, m, s, n = f.hmsf()
		wrap       = false
	)
	for {
		n++
		if n >= fps {
			n = 0
			s++
			if s >= 60 {
				s = 0
				m++
				if m >= 60 {
					m = 0
					h++
					if h >= 24 {
						h = 0
						wrap = true
					}
				}
			}
		}
		if !ft.dropped(m, s, n) {
			break
		}
	}
	f.setHMSF(h, m, s, n)
	if wrap && ft.Mode == UseDate {
		shiftDate(f, +1)
	}
	ft.finish(f)
	return wrap
}

// Decrement moves f back by one frame.
// Decrement returns true when the timecode wrapped around at 24h.
func (ft Format) Decrement(f *Frame) bool {
	var (
		fps        = ft.FramesPerSecond()
		h, m, s, n = f.hmsf()
		wrap       = false
	)
	for {
		n--
		if n < 0 {
			n = fps - 1
			s--
			if s < 0 {
				s = 59
				m--
				if m < 0 {
					m = 59
					h--
					if h < 0 {
						h = 23
						wrap = true
					}
				}
			}
		}
		if !ft.dropped(m, s, n) {
			break
		}
	}
	f.setHMSF(h, m, s, n)
	if wrap && ft.Mode == UseDate {
		shiftDate(f, -1)
	}
	ft.finish(f)
	return wrap
}

// FrameToTimecode converts f to its symbolic representation.
// The date and timezone are only decoded under UseDate.
func (ft Format) FrameToTimecode(f *Frame) Timecode {
	h, m, s, n := f.hmsf()
	tc := Timecode{
		Hours: uint8(h),
		Mins:  uint8(m),
		Secs:  uint8(s),
		Frame: uint8(n),
	}
	if ft.Mode == UseDate {
		tc.Zone = zoneName(f.Get(User8)<<4 | f.Get(User7))
		tc.Years = f.Get(User6)*10 + f.Get(User5)
		tc.Months = f.Get(User4)*10 + f.Get(User3)
		tc.Days = f.Get(User2)*10 + f.Get(User1)
	}
	return tc
}

// Validate checks the hours, minutes, seconds and frame fields of tc
// against the frame rate.
func (ft Format) Validate(tc Timecode) error {
	switch {
	case tc.Hours > 23, tc.Mins > 59, tc.Secs > 59:
		return xerrors.Errorf("timecode: invalid time %v: %w", tc, ErrOutOfRange)
	case int(tc.Frame) >= ft.FramesPerSecond():
		return xerrors.Errorf(
			"timecode: invalid frame %d at %v fps: %w",
			tc.Frame, ft.FPS, ErrOutOfRange,
		)
	}
	return nil
}

// TimecodeToFrame stores tc into f.
// The date and timezone are only encoded under UseDate.
// Under drop-frame, labels skipped by the drop-frame rule are moved
// forward to frame 2.
// TimecodeToFrame fails with ErrOutOfRange and leaves f untouched when
// tc does not pass Validate.
func (ft Format) TimecodeToFrame(f *Frame, tc Timecode) error {
	err := ft.Validate(tc)
	if err != nil {
		return err
	}

	if ft.Mode == UseDate {
		code := zoneCode(tc.Zone)
		f.Set(User7, code&0xf)
		f.Set(User8, code>>4)
		f.Set(User6, tc.Years/10)
		f.Set(User5, tc.Years%10)
		f.Set(User4, tc.Months/10)
		f.Set(User3, tc.Months%10)
		f.Set(User2, tc.Days/10)
		f.Set(User1, tc.Days%10)
	}

	h, m, s, n := int(tc.Hours), int(tc.Mins), int(tc.Secs), int(tc.Frame)
	if ft.dropped(m, s, n) {
		n = 2
	}
	f.setHMSF(h, m, s, n)
	f.setBool(DropFrame, ft.DropFrame())
	ft.finish(f)
	return nil
}

// shiftDate moves the date stored in the user bits by delta days.
func shiftDate(f *Frame, delta int) {
	var (
		yy = int(f.Get(User6))*10 + int(f.Get(User5))
		mm = int(f.Get(User4))*10 + int(f.Get(User3))
		dd = int(f.Get(User2))*10 + int(f.Get(User1))
	)
	t := time.Date(2000+yy, time.Month(mm), dd+delta, 0, 0, 0, 0, time.UTC)
	yy = t.Year() % 100
	mm = int(t.Month())
	dd = t.Day()

	f.Set(User6, uint8(yy/10))
	f.Set(User5, uint8(yy%10))
	f.Set(User4, uint8(mm/10))
	f.Set(User3, uint8(mm%10))
	f.Set(User2, uint8(dd/10))
	f.Set(User1, uint8(dd%10))
}
