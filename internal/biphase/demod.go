// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biphase

import "math"

// Demodulator recovers bits from a biphase-mark modulated signal.
//
// The demodulator tracks the envelope of the signal to detect level
// transitions with hysteresis, and classifies the interval between
// two transitions as a full cell (a zero) or a half cell (half of a
// one) against a running estimate of the cell period.
// The estimate is updated at every transition.
type Demodulator struct {
	period float64 // estimated samples per cell

	min, max byte // decaying signal envelope
	high     bool // current signal level
	started  bool // first transition seen

	pos  int64 // number of samples processed
	edge int64 // position of the last transition
	half bool  // inside a one, after its mid-cell transition

	start int64 // start position of the last decoded cell

	pkmin, pkmax byte // peak values since the last ResetPeaks
}

// NewDemodulator returns a demodulator expecting period samples per
// cell.
func NewDemodulator(period float64) *Demodulator {
	d := &Demodulator{period: period}
	d.Reset()
	return d
}

// ResetPeriod resets the demodulator state and its cell period estimate.
func (d *Demodulator) ResetPeriod(period float64) {
	d.period = period
	d.Reset()
}

// Reset resets the demodulator state, keeping the current period
// estimate.
func (d *Demodulator) Reset() {
	d.min = Center
	d.max = Center
	d.high = false
	d.started = false
	d.pos = 0
	d.edge = 0
	d.half = false
	d.start = 0
	d.ResetPeaks()
}

// Period returns the current estimate of the number of samples per cell.
func (d *Demodulator) Period() float64 { return d.period }

// Pos returns the number of samples processed so far.
func (d *Demodulator) Pos() int64 { return d.pos }

// Start returns the position of the first sample of the last decoded cell.
func (d *Demodulator) Start() int64 { return d.start }

// ResetPeaks resets the peak tracking used by Volume.
func (d *Demodulator) ResetPeaks() {
	d.pkmin = 255
	d.pkmax = 0
}

// Volume returns the peak-to-peak level of the signal since the last
// call to ResetPeaks, in dBFS.
func (d *Demodulator) Volume() float64 {
	if d.pkmax <= d.pkmin {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(d.pkmax-d.pkmin)/255)
}

// Feed processes one sample.
// Feed returns the value of a decoded bit and true when the sample
// completes the decoding of a bit.
func (d *Demodulator) Feed(s byte) (uint8, bool) {
	pos := d.pos
	d.pos++

	if s < d.pkmin {
		d.pkmin = s
	}
	if s > d.pkmax {
		d.pkmax = s
	}

	d.min = Center - byte((int(Center-d.min)*15)/16)
	d.max = Center + byte((int(d.max-Center)*15)/16)
	if s < d.min {
		d.min = s
	}
	if s > d.max {
		d.max = s
	}
	var (
		lo = Center - byte(int(Center-d.min)/2)
		hi = Center + byte(int(d.max-Center)/2)
	)

	switch {
	case d.high && s < lo:
		d.high = false
	case !d.high && s > hi:
		d.high = true
	default:
		return 0, false
	}

	cnt := float64(pos - d.edge)
	start := d.edge
	d.edge = pos
	if !d.started {
		d.started = true
		return 0, false
	}

	if cnt > d.period*3/4 {
		// full cell.
		d.period = (3*d.period + cnt) / 4
		d.half = false
		d.start = start
		return 0, true
	}

	// half cell.
	d.period = (3*d.period + 2*cnt) / 4
	if d.half {
		// closing half of a one: a cell boundary.
		d.half = false
		return 0, false
	}
	d.half = true
	d.start = start
	return 1, true
}
