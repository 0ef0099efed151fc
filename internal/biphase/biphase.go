// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package biphase implements biphase-mark modulation of bit cells into
// unsigned 8-bit audio samples, and its demodulation.
//
// A transition occurs at every cell boundary. A one additionally
// transitions at the middle of its cell.
package biphase // import "github.com/go-lpc/ltc/internal/biphase"

import (
	"errors"
	"math"
)

// Center is the sample value of a silent signal.
const Center = 128

// ErrShortBuffer is returned when a cell does not fit in the
// destination buffer.
var ErrShortBuffer = errors.New("biphase: short buffer")

// Modulator writes biphase-mark cells as unsigned 8-bit samples.
//
// The modulator keeps the output polarity and the fractional sample
// remainder across calls so consecutive cells splice without
// discontinuity.
type Modulator struct {
	lo, hi byte    // sample values of the low and high levels
	coef   float64 // low-pass filter coefficient, 0 for a square wave
	spc    float64 // samples per cell at nominal speed

	high bool    // current output level
	rem  float64 // fractional sample carried to the next half-cell
}

// Reset resets the polarity and phase of the modulator.
func (m *Modulator) Reset() {
	m.high = false
	m.rem = 0.5
}

// SetRate sets the number of samples per cell for the given sample
// rate and frame rate, with cells bits per frame.
func (m *Modulator) SetRate(sampleRate, fps float64, cells int) {
	m.spc = sampleRate / (fps * float64(cells))
}

// SetLevels sets the sample values of the low and high levels.
func (m *Modulator) SetLevels(lo, hi byte) {
	m.lo = lo
	m.hi = hi
}

// SetFilter sets the low-pass filter coefficient, in [0, 1).
// A zero coefficient yields a square wave.
func (m *Modulator) SetFilter(coef float64) {
	m.coef = coef
}

// FilterCoef returns the first-order low-pass coefficient emulating the
// given rise time (10% to 90%, in seconds) at the given sample rate.
// Each transition starts from the center, so only half of the rise
// time is spent reaching the target level.
func FilterCoef(sampleRate, riseTime float64) float64 {
	if riseTime <= 0 {
		return 0
	}
	return 1 - math.Exp(-1/(sampleRate*riseTime/2/math.E))
}

// Byte modulates the 8 bits of c into dst, at the given speed.
// A negative speed emits the bits from the most significant one.
// Byte returns the number of samples written to dst.
func (m *Modulator) Byte(dst []byte, c byte, speed float64) (int, error) {
	var (
		n    = 0
		spc  = m.spc * math.Abs(speed)
		sph  = spc / 2
		mask = byte(0x01)
	)
	if speed < 0 {
		mask = 0x80
	}

	for mask != 0 {
		switch {
		case c&mask == 0:
			k, err := m.cell(dst[n:], spc)
			n += k
			if err != nil {
				return n, err
			}
		default:
			for i := 0; i < 2; i++ {
				k, err := m.cell(dst[n:], sph)
				n += k
				if err != nil {
					return n, err
				}
			}
		}
		if speed < 0 {
			mask >>= 1
		} else {
			mask <<= 1
		}
	}
	return n, nil
}

// cell toggles the output level and holds it for width samples.
func (m *Modulator) cell(dst []byte, width float64) (int, error) {
	w := width + m.rem
	if !(w < float64(len(dst)+1)) {
		return 0, ErrShortBuffer
	}
	n := int(w)
	m.rem = w - float64(n)
	m.high = !m.high
	m.fill(dst[:n])
	return n, nil
}

func (m *Modulator) fill(dst []byte) {
	tgt := m.lo
	if m.high {
		tgt = m.hi
	}

	if m.coef <= 0 {
		for i := range dst {
			dst[i] = tgt
		}
		return
	}

	var (
		n = len(dst)
		v = float64(Center)
		t = float64(tgt)
	)
	for i := 0; i < (n+1)/2; i++ {
		v += m.coef * (t - v)
		s := byte(math.Round(v))
		dst[i] = s
		dst[n-1-i] = s
	}
}
