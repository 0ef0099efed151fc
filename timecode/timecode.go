// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Timecode is the symbolic representation of an LTC frame.
type Timecode struct {
	Zone   string // timezone offset, e.g. "+0100"
	Years  uint8  // last two digits of the year
	Months uint8  // 1-12
	Days   uint8  // 1-31
	Hours  uint8  // 0-23
	Mins   uint8  // 0-59
	Secs   uint8  // 0-59
	Frame  uint8  // 0 to fps-1
}

// String returns the HH:MM:SS:FF representation of the timecode.
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Mins, tc.Secs, tc.Frame)
}

// Date returns the YYYY-MM-DD representation of the date.
// Years are counted from 2000.
func (tc Timecode) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", 2000+int(tc.Years), tc.Months, tc.Days)
}

// Parse parses a HH:MM:SS:FF timecode.
// A semicolon may be used as the last separator (drop-frame notation).
// Frame numbers are bounded by the LTC frame field (0-39); use
// Format.Validate to check them against a frame rate.
func Parse(s string) (Timecode, error) {
	var tc Timecode
	toks := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ';' || r == '.'
	})
	if len(toks) != 4 {
		return tc, xerrors.Errorf("timecode: invalid timecode %q", s)
	}

	var (
		vs   [4]uint8
		maxs = [4]uint64{23, 59, 59, 39}
	)
	for i, tok := range toks {
		v, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return tc, xerrors.Errorf("timecode: could not parse %q in %q: %w", tok, s, err)
		}
		if v > maxs[i] {
			return tc, xerrors.Errorf("timecode: value %d out of range in %q", v, s)
		}
		vs[i] = uint8(v)
	}
	tc.Hours = vs[0]
	tc.Mins = vs[1]
	tc.Secs = vs[2]
	tc.Frame = vs[3]
	return tc, nil
}
