// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import "math"

// maxCapacity is the largest sample buffer an encoder may allocate.
const maxCapacity = 1 << 26

// sbuf is a fixed-capacity buffer of audio samples.
type sbuf struct {
	p []byte
	c int
}

// alloc replaces the storage with n fresh bytes.
func (b *sbuf) alloc(n int) bool {
	if n < 1 || n > maxCapacity {
		return false
	}
	b.p = make([]byte, n)
	b.c = 0
	return true
}

// free returns the unused part of the buffer.
func (b *sbuf) free() []byte { return b.p[b.c:] }

func (b *sbuf) bytes() []byte { return b.p[:b.c] }
func (b *sbuf) flush()        { b.c = 0 }

// bufferSize returns the number of bytes needed to hold one frame of
// audio samples.
func bufferSize(sampleRate int, fps float64) int {
	return 1 + int(math.Floor(float64(sampleRate)/fps))
}
