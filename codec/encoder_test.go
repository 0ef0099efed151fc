// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/go-lpc/ltc/timecode"
)

func newEncoder(t *testing.T, cfg Config) *Encoder {
	t.Helper()
	enc, err := NewEncoder(cfg)
	if err != nil {
		t.Fatalf("could not create encoder: %+v", err)
	}
	return enc
}

func TestNewEncoder(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "48k-25", cfg: Config{SampleRate: 48000, FPS: 25}},
		{name: "44k1-29.97", cfg: Config{SampleRate: 44100, FPS: 29.97}},
		{name: "zero-sr", cfg: Config{SampleRate: 0, FPS: 25}, err: ErrValueOutOfRange},
		{name: "neg-fps", cfg: Config{SampleRate: 48000, FPS: -25}, err: ErrValueOutOfRange},
		{name: "nan-fps", cfg: Config{SampleRate: 48000, FPS: math.NaN()}, err: ErrValueOutOfRange},
		{name: "huge", cfg: Config{SampleRate: 1 << 30, FPS: 1}, err: ErrAllocationFailed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := NewEncoder(tc.cfg)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
				}
				if enc != nil {
					t.Fatalf("expected a nil encoder")
				}
				return
			case err != nil:
				t.Fatalf("could not create encoder: %+v", err)
			}

			if got, want := enc.Volume(), DefaultVolume; got != want {
				t.Fatalf("invalid volume: got=%v, want=%v", got, want)
			}
			if got, want := enc.Filter(), DefaultRiseTime; got != want {
				t.Fatalf("invalid rise time: got=%v, want=%v", got, want)
			}
			if got, want := enc.Capacity(), enc.BufferSize(); got != want {
				t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
			}
			f := enc.Frame()
			if got, want := f.Sync(), timecode.SyncWord; got != want {
				t.Fatalf("invalid sync word: got=0x%x, want=0x%x", got, want)
			}
			if got, want := enc.Timecode().String(), "00:00:00:00"; got != want {
				t.Fatalf("invalid timecode: got=%q, want=%q", got, want)
			}
		})
	}
}

func TestEncodeTenFrames(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	enc.SetUserBits(123)

	if got, want := enc.BufferSize(), 1921; got != want {
		t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
	}

	for i := 0; i < 10; i++ {
		err := enc.EncodeFrame()
		if err != nil {
			t.Fatalf("could not encode frame %d: %+v", i, err)
		}
		if got, want := enc.BufferSize(), 1921; got != want {
			t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
		}
		buf := enc.Buffer()
		if got, want := len(buf), 1920; got != want {
			t.Fatalf("invalid number of samples for frame %d: got=%d, want=%d", i, got, want)
		}
		if got, want := enc.BufferedLen(), 0; got != want {
			t.Fatalf("buffer not flushed: got=%d, want=%d", got, want)
		}
		if got, want := enc.UserBits(), uint32(123); got != want {
			t.Fatalf("invalid user bits: got=%d, want=%d", got, want)
		}
		if f := enc.Frame(); !f.ParityOK() {
			t.Fatalf("invalid parity for frame %d", i)
		}
		enc.IncreaseTimecode()
	}

	if got, want := enc.Timecode().String(), "00:00:00:10"; got != want {
		t.Fatalf("invalid timecode: got=%q, want=%q", got, want)
	}
}

func TestReinitialize(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	tc, err := timecode.Parse("10:20:30:12")
	if err != nil {
		t.Fatalf("could not parse timecode: %+v", err)
	}
	err = enc.SetTimecode(tc)
	if err != nil {
		t.Fatalf("could not set timecode: %+v", err)
	}

	err = enc.Reinitialize(192000, 25)
	if !errors.Is(err, ErrReinitializationFailed) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrReinitializationFailed)
	}
	if got, want := enc.SampleRate(), 48000; got != want {
		t.Fatalf("invalid sample rate: got=%d, want=%d", got, want)
	}
	if got, want := enc.BufferSize(), 1921; got != want {
		t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
	}

	err = enc.SetBufferSize(192000, 25)
	if err != nil {
		t.Fatalf("could not resize buffer: %+v", err)
	}
	if got, want := enc.Capacity(), 7681; got != want {
		t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
	}

	err = enc.Reinitialize(192000, 25)
	if err != nil {
		t.Fatalf("could not reinitialize encoder: %+v", err)
	}
	if got, want := enc.BufferSize(), 7681; got != want {
		t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
	}
	if got, want := enc.Timecode().String(), tc.String(); got != want {
		t.Fatalf("invalid timecode: got=%q, want=%q", got, want)
	}

	err = enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	if got, want := enc.BufferedLen(), 7680; got != want {
		t.Fatalf("invalid number of samples: got=%d, want=%d", got, want)
	}
}

func TestReinitializeCapacity(t *testing.T) {
	for _, tc := range []struct {
		sr   int
		fps  float64
		size int
		err  error
	}{
		{sr: 48000, fps: 25, size: 1921},
		{sr: 44100, fps: 25, size: 1765},
		{sr: 48000, fps: 30, size: 1601},
		{sr: 48000, fps: 29.97, size: 1602},
		{sr: 48000, fps: 24, err: ErrReinitializationFailed},
		{sr: 96000, fps: 30, err: ErrReinitializationFailed},
		{sr: 0, fps: 30, err: ErrValueOutOfRange},
		{sr: 48000, fps: 0, err: ErrValueOutOfRange},
	} {
		t.Run("", func(t *testing.T) {
			enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
			err := enc.Reinitialize(tc.sr, tc.fps)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
				}
				if got, want := enc.BufferSize(), 1921; got != want {
					t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
				}
				return
			}
			if err != nil {
				t.Fatalf("could not reinitialize (sr=%d, fps=%v): %+v", tc.sr, tc.fps, err)
			}
			if got, want := enc.BufferSize(), tc.size; got != want {
				t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
			}
			if got, want := enc.Capacity(), 1921; got != want {
				t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestReinitializeFlags(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	enc.SetFilter(0)
	enc.SetUserBits(0x1234)
	if got, want := enc.Standard(), timecode.TV625_50; got != want {
		t.Fatalf("invalid standard: got=%v, want=%v", got, want)
	}

	err := enc.Reinitialize(48000, 30000.0/1001)
	if err != nil {
		t.Fatalf("could not reinitialize encoder: %+v", err)
	}
	if got, want := enc.Standard(), timecode.TV525_60; got != want {
		t.Fatalf("invalid standard: got=%v, want=%v", got, want)
	}
	if f := enc.Frame(); !f.IsDropFrame() {
		t.Fatalf("drop-frame flag not set")
	}
	if got, want := enc.Filter(), DefaultRiseTime; got != want {
		t.Fatalf("invalid rise time: got=%v, want=%v", got, want)
	}
	if got, want := enc.UserBits(), uint32(0x1234); got != want {
		t.Fatalf("invalid user bits: got=0x%x, want=0x%x", got, want)
	}

	err = enc.Reinitialize(48000, 30)
	if err != nil {
		t.Fatalf("could not reinitialize encoder: %+v", err)
	}
	if f := enc.Frame(); f.IsDropFrame() {
		t.Fatalf("drop-frame flag set")
	}
}

func TestSetCapacity(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	for _, n := range []int{0, -1, maxCapacity + 1} {
		err := enc.SetCapacity(n)
		if !errors.Is(err, ErrAllocationFailed) {
			t.Fatalf("invalid error for n=%d: got=%v, want=%v", n, err, ErrAllocationFailed)
		}
		if got, want := enc.Capacity(), 1921; got != want {
			t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
		}
	}

	err := enc.EncodeByte(0, 1)
	if err != nil {
		t.Fatalf("could not encode byte: %+v", err)
	}
	err = enc.SetCapacity(4000)
	if err != nil {
		t.Fatalf("could not set capacity: %+v", err)
	}
	if got, want := enc.BufferedLen(), 0; got != want {
		t.Fatalf("buffer not flushed: got=%d, want=%d", got, want)
	}
	if got, want := enc.BufferSize(), 1921; got != want {
		t.Fatalf("invalid buffer size: got=%d, want=%d", got, want)
	}
}

func TestSetVolume(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	enc.SetFilter(0)

	for _, v := range []float64{0.5, 1e-9, 3, -60, math.NaN()} {
		err := enc.SetVolume(v)
		if !errors.Is(err, ErrValueOutOfRange) {
			t.Fatalf("invalid error for %v dBFS: got=%v, want=%v", v, err, ErrValueOutOfRange)
		}
		if got, want := enc.Volume(), DefaultVolume; got != want {
			t.Fatalf("invalid volume: got=%v, want=%v", got, want)
		}
	}

	for _, tc := range []struct {
		vol    float64
		lo, hi byte
	}{
		{vol: 0, lo: 1, hi: 255},
		{vol: -3, lo: 38, hi: 218},
		{vol: -6, lo: 64, hi: 192},
		{vol: -40, lo: 127, hi: 129},
	} {
		err := enc.SetVolume(tc.vol)
		if err != nil {
			t.Fatalf("could not set volume %v: %+v", tc.vol, err)
		}
		enc.Reset()
		err = enc.EncodeFrame()
		if err != nil {
			t.Fatalf("could not encode frame: %+v", err)
		}
		buf := enc.Buffer()
		if got, want := buf[0], tc.hi; got != want {
			t.Fatalf("invalid first sample at %v dBFS: got=%d, want=%d", tc.vol, got, want)
		}
		for i, v := range buf {
			if v != tc.lo && v != tc.hi {
				t.Fatalf("invalid sample[%d] at %v dBFS: got=%d, want=%d|%d", i, tc.vol, v, tc.lo, tc.hi)
			}
		}
	}
}

func TestSetFilter(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	enc.SetFilter(-1)
	if got, want := enc.Filter(), 0.0; got != want {
		t.Fatalf("invalid rise time: got=%v, want=%v", got, want)
	}

	enc.SetFilter(200e-6)
	err := enc.EncodeByte(0, 1)
	if err != nil {
		t.Fatalf("could not encode byte: %+v", err)
	}
	buf := enc.Buffer()
	if got := buf[0]; got <= 128 || got >= 218 {
		t.Fatalf("invalid first sample: got=%d", got)
	}
}

func TestEncodeByteErrors(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	for _, tc := range []struct {
		i     int
		speed float64
	}{
		{i: -1, speed: 1},
		{i: 10, speed: 1},
		{i: 0, speed: 0},
		{i: 0, speed: math.NaN()},
		{i: 0, speed: math.Inf(+1)},
		{i: 0, speed: math.Inf(-1)},
	} {
		err := enc.EncodeByte(tc.i, tc.speed)
		if !errors.Is(err, ErrValueOutOfRange) {
			t.Fatalf("invalid error for (%d, %v): got=%v, want=%v", tc.i, tc.speed, err, ErrValueOutOfRange)
		}
	}
	if got, want := enc.BufferedLen(), 0; got != want {
		t.Fatalf("invalid buffered length: got=%d, want=%d", got, want)
	}

	for _, speed := range []float64{1e30, -1e30, math.MaxFloat64} {
		err := enc.EncodeByte(0, speed)
		if !errors.Is(err, ErrBufferFull) {
			t.Fatalf("invalid error for speed %v: got=%v, want=%v", speed, err, ErrBufferFull)
		}
	}
	if got, want := enc.BufferedLen(), 0; got != want {
		t.Fatalf("invalid buffered length: got=%d, want=%d", got, want)
	}

	err := enc.SetCapacity(500)
	if err != nil {
		t.Fatalf("could not set capacity: %+v", err)
	}
	err = enc.EncodeFrame()
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrBufferFull)
	}
	if got := enc.BufferedLen(); got > 500 {
		t.Fatalf("buffer overflow: got=%d", got)
	}
}

func TestEncodeSplice(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 44100, FPS: 30})
	err := enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	want := append([]byte(nil), enc.Buffer()...)

	enc.Reset()
	var got []byte
	for i := 0; i < timecode.FrameBytes; i++ {
		err := enc.EncodeByte(i, 1)
		if err != nil {
			t.Fatalf("could not encode byte %d: %+v", i, err)
		}
		got = append(got, enc.Buffer()...)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("byte-wise encoding differs from frame encoding")
	}

	// flushing keeps the phase, resetting does not.
	enc.Reset()
	_ = enc.EncodeByte(0, 1)
	enc.FlushBuffer()
	_ = enc.EncodeByte(1, 1)
	if got, want := enc.Buffer()[0], want[len(want)/10]; got != want {
		t.Fatalf("invalid sample after flush: got=%d, want=%d", got, want)
	}
}

func TestDrainBuffer(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})

	err := enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	want := append([]byte(nil), enc.Buffer()...)

	enc.Reset()
	err = enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	dst := make([]byte, enc.BufferSize())
	n := enc.CopyBuffer(dst)
	if got, want := n, len(want); got != want {
		t.Fatalf("invalid copy length: got=%d, want=%d", got, want)
	}
	if !bytes.Equal(dst[:n], want) {
		t.Fatalf("invalid copied samples")
	}
	if got, want := enc.BufferedLen(), 0; got != want {
		t.Fatalf("buffer not flushed: got=%d, want=%d", got, want)
	}

	enc.Reset()
	err = enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	out := new(bytes.Buffer)
	nn, err := enc.WriteTo(out)
	if err != nil {
		t.Fatalf("could not write samples: %+v", err)
	}
	if got, want := nn, int64(len(want)); got != want {
		t.Fatalf("invalid write length: got=%d, want=%d", got, want)
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("invalid written samples")
	}

	enc.Reset()
	err = enc.EncodeFrame()
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	defer func() {
		e := recover()
		if e == nil {
			t.Fatalf("expected a panic")
		}
	}()
	enc.CopyBuffer(make([]byte, 10))
}

func TestSetTimecodeRange(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	err := enc.SetTimecode(timecode.Timecode{Hours: 1, Frame: 24})
	if err != nil {
		t.Fatalf("could not set timecode: %+v", err)
	}

	for _, tc := range []timecode.Timecode{
		{Frame: 25},
		{Frame: 30},
		{Frame: 99},
		{Hours: 24},
		{Mins: 60},
		{Secs: 60},
	} {
		err := enc.SetTimecode(tc)
		if !errors.Is(err, ErrValueOutOfRange) {
			t.Fatalf("invalid error for %v: got=%v, want=%v", tc, err, ErrValueOutOfRange)
		}
		if got, want := enc.Timecode().String(), "01:00:00:24"; got != want {
			t.Fatalf("timecode modified by %v: got=%q, want=%q", tc, got, want)
		}
	}
}

func TestSetFrameSync(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25})
	enc.SetFrame(timecode.Frame{0x12, 0x34})

	f := enc.Frame()
	if got, want := f.Sync(), timecode.SyncWord; got != want {
		t.Fatalf("invalid sync word: got=0x%x, want=0x%x", got, want)
	}
	if got, want := f[0], byte(0x12); got != want {
		t.Fatalf("invalid byte 0: got=0x%x, want=0x%x", got, want)
	}
}

func TestReinitializeParity(t *testing.T) {
	enc := newEncoder(t, Config{SampleRate: 48000, FPS: 25, Mode: timecode.DontTouch})

	f := enc.Frame()
	if got, want := f.Get(timecode.Flag59), uint8(1); got != want {
		t.Fatalf("invalid 625/50 parity bit: got=%d, want=%d", got, want)
	}

	err := enc.Reinitialize(48000, 30)
	if err != nil {
		t.Fatalf("could not reinitialize encoder: %+v", err)
	}
	f = enc.Frame()
	if got, want := f.Get(timecode.Flag59), uint8(0); got != want {
		t.Fatalf("stale 625/50 parity bit: got=%d, want=%d", got, want)
	}
	if got, want := f.Get(timecode.Flag27), uint8(1); got != want {
		t.Fatalf("invalid 525/60 parity bit: got=%d, want=%d", got, want)
	}
	if !f.ParityOK() {
		t.Fatalf("invalid parity: %x", f)
	}
}
