// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/go-lpc/ltc/internal/biphase"
	"github.com/go-lpc/ltc/timecode"
	"golang.org/x/xerrors"
)

// syncReversed is the sync word as read from reverse playback.
const syncReversed = 0x3ffd

// maxQueueSize is the largest frame queue a decoder may allocate.
const maxQueueSize = 1 << 20

// State is the synchronization state of a decoder.
type State uint8

const (
	SeekingSync State = iota // looking for a sync word
	Tracking                 // locked on the frame boundaries
)

func (s State) String() string {
	switch s {
	case SeekingSync:
		return "seeking-sync"
	case Tracking:
		return "tracking"
	}
	return "invalid"
}

// FrameExt is a decoded LTC frame with its position in the audio stream.
type FrameExt struct {
	Frame    timecode.Frame
	OffStart int64   // position of the first sample of the frame
	OffEnd   int64   // position of the sample completing the frame
	Reverse  bool    // frame was read from reverse playback
	Volume   float64 // peak-to-peak level of the frame, in dBFS
}

// Decoder recovers LTC frames from unsigned 8-bit audio samples.
//
// Completed frames are stored in a bounded queue. When the queue is
// full, the oldest frame is discarded to make room for the new one.
type Decoder struct {
	// IgnoreParity disables the parity check of decoded frames.
	IgnoreParity bool

	apv   float64 // audio samples per video frame
	demod *biphase.Demodulator
	state State
	win   window
	queue queue

	dropped  int
	desyncs  int
	rejected int
}

// NewDecoder returns a new decoder expecting apv audio samples per video
// frame, holding at most queueSize decoded frames.
func NewDecoder(apv float64, queueSize int) (*Decoder, error) {
	if !(apv > 0) || queueSize <= 0 {
		return nil, xerrors.Errorf(
			"codec: invalid decoder configuration (apv=%v, queue=%d): %w",
			apv, queueSize, ErrValueOutOfRange,
		)
	}
	if queueSize > maxQueueSize {
		return nil, xerrors.Errorf(
			"codec: could not allocate queue of %d frames: %w",
			queueSize, ErrAllocationFailed,
		)
	}
	dec := &Decoder{
		apv:   apv,
		demod: biphase.NewDemodulator(apv / timecode.FrameBits),
		queue: queue{buf: make([]FrameExt, queueSize)},
	}
	return dec, nil
}

// AudioFramesPerVideoFrame returns the number of audio samples per
// video frame the decoder was configured with.
func (dec *Decoder) AudioFramesPerVideoFrame() float64 { return dec.apv }

// State returns the synchronization state of the decoder.
func (dec *Decoder) State() State { return dec.state }

// Len returns the number of decoded frames waiting in the queue.
func (dec *Decoder) Len() int { return dec.queue.n }

// Dropped returns the number of decoded frames discarded because the
// queue was full.
func (dec *Decoder) Dropped() int { return dec.dropped }

// Desyncs returns the number of times the decoder lost the frame
// boundaries.
func (dec *Decoder) Desyncs() int { return dec.desyncs }

// Rejected returns the number of frames discarded because of a parity
// error.
func (dec *Decoder) Rejected() int { return dec.rejected }

// Read pops the oldest decoded frame from the queue.
// Read returns false if the queue is empty.
func (dec *Decoder) Read() (FrameExt, bool) {
	return dec.queue.pop()
}

// Flush discards all the decoded frames.
func (dec *Decoder) Flush() {
	dec.queue.head = 0
	dec.queue.n = 0
}

// Reset resets the decoder to its initial state: the demodulator
// tracking, the frame window, the queue and the counters.
func (dec *Decoder) Reset() {
	dec.demod.ResetPeriod(dec.apv / timecode.FrameBits)
	dec.state = SeekingSync
	dec.win = window{}
	dec.Flush()
	dec.dropped = 0
	dec.desyncs = 0
	dec.rejected = 0
}

// Write decodes the unsigned 8-bit samples of p.
// Write always consumes all of p.
func (dec *Decoder) Write(p []byte) (int, error) {
	for _, s := range p {
		dec.feed(s)
	}
	return len(p), nil
}

// WriteS16 decodes signed 16-bit samples.
func (dec *Decoder) WriteS16(p []int16) {
	for _, s := range p {
		dec.feed(byte((s >> 8) + 128))
	}
}

// WriteFloat32 decodes floating point samples in [-1, 1].
// Samples outside that range are clipped.
func (dec *Decoder) WriteFloat32(p []float32) {
	for _, s := range p {
		v := math.Round(128 + 127*float64(s))
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		dec.feed(byte(v))
	}
}

func (dec *Decoder) feed(s byte) {
	bit, ok := dec.demod.Feed(s)
	if !ok {
		return
	}
	dec.win.push(bit, dec.demod.Start())

	switch dec.win.hi {
	case timecode.SyncWord:
		dec.sync(false)
	case syncReversed:
		dec.sync(true)
	default:
		if dec.win.n <= timecode.FrameBits {
			return
		}
		dec.win.n = timecode.FrameBits
		if dec.state == Tracking {
			dec.desyncs++
			dec.state = SeekingSync
		}
	}
}

// sync handles a sync word at the end of the window.
// A full window is emitted, also right after a desync.
func (dec *Decoder) sync(rev bool) {
	if dec.state == Tracking && dec.win.n != timecode.FrameBits {
		dec.desyncs++
	}
	if dec.win.n >= timecode.FrameBits {
		dec.emit(rev)
	}
	dec.win.n = 0
	dec.state = Tracking
}

func (dec *Decoder) emit(rev bool) {
	f := dec.win.frame(rev)
	if !dec.IgnoreParity && !f.ParityOK() {
		dec.rejected++
		return
	}
	if dec.queue.push(FrameExt{
		Frame:    f,
		OffStart: dec.win.first(),
		OffEnd:   dec.demod.Pos() - 1,
		Reverse:  rev,
		Volume:   dec.demod.Volume(),
	}) {
		dec.dropped++
	}
	dec.demod.ResetPeaks()
}

// window holds the last 80 decoded bits, the most recent one at the top.
type window struct {
	lo uint64 // bits 0-63
	hi uint16 // bits 64-79

	n      int // number of bits since the last sync word
	starts [timecode.FrameBits]int64
	i      int // index of the oldest start position
}

func (w *window) push(bit uint8, start int64) {
	w.lo = w.lo>>1 | uint64(w.hi&1)<<63
	w.hi = w.hi>>1 | uint16(bit)<<15
	w.starts[w.i] = start
	w.i = (w.i + 1) % timecode.FrameBits
	w.n++
}

// first returns the start position of the oldest bit of the window.
func (w *window) first() int64 { return w.starts[w.i] }

func (w *window) frame(rev bool) timecode.Frame {
	var (
		f  timecode.Frame
		lo = w.lo
	)
	if rev {
		lo = bits.Reverse64(lo)
	}
	binary.LittleEndian.PutUint64(f[:8], lo)
	binary.LittleEndian.PutUint16(f[8:], timecode.SyncWord)
	return f
}

// queue is a fixed-capacity FIFO of decoded frames.
type queue struct {
	buf  []FrameExt
	head int
	n    int
}

// push appends v to the queue, overwriting the oldest frame when the
// queue is full. push returns true when a frame was overwritten.
func (q *queue) push(v FrameExt) bool {
	if q.n == len(q.buf) {
		q.buf[q.head] = v
		q.head = (q.head + 1) % len(q.buf)
		return true
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	return false
}

func (q *queue) pop() (FrameExt, bool) {
	if q.n == 0 {
		return FrameExt{}, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, true
}
