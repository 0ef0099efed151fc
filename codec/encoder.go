// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec encodes LTC frames into unsigned 8-bit audio samples
// and decodes LTC frames out of captured audio samples.
//
// Encoders and decoders do not allocate once configured and hold no
// internal lock: an instance may be handed over to another goroutine
// but must not be used by two goroutines at the same time.
package codec // import "github.com/go-lpc/ltc/codec"

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-lpc/ltc/internal/biphase"
	"github.com/go-lpc/ltc/timecode"
	"golang.org/x/xerrors"
)

const (
	// DefaultVolume is the default signal level, in dBFS.
	DefaultVolume = -3.0

	// DefaultRiseTime is the default rise time of the signal edges,
	// in seconds.
	DefaultRiseTime = 40e-6
)

// Config holds the configuration of an encoder.
type Config struct {
	SampleRate int              // audio samples per second
	FPS        float64          // video frames per second
	Mode       timecode.BGFMode // binary group flags mode
	Clock      bool             // timecode is wall-clock time
	NoParity   bool             // do not maintain the parity bit
}

// Encoder modulates an LTC frame into a buffer of audio samples.
type Encoder struct {
	cfg   Config
	ft    timecode.Format
	frame timecode.Frame
	mod   biphase.Modulator
	buf   sbuf

	vol  float64 // dBFS
	rise float64 // seconds
}

// NewEncoder returns a new encoder for the given configuration, with a
// sample buffer large enough for one frame.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.SampleRate <= 0 || !(cfg.FPS > 0) {
		return nil, xerrors.Errorf(
			"codec: invalid encoder configuration (sr=%d, fps=%v): %w",
			cfg.SampleRate, cfg.FPS, ErrValueOutOfRange,
		)
	}

	enc := &Encoder{cfg: cfg}
	err := enc.SetBufferSize(cfg.SampleRate, cfg.FPS)
	if err != nil {
		return nil, xerrors.Errorf("codec: could not create encoder: %w", err)
	}

	enc.frame.Reset()
	enc.apply(cfg.SampleRate, cfg.FPS)
	enc.ft.InitFlags(&enc.frame, cfg.Clock)

	err = enc.SetVolume(DefaultVolume)
	if err != nil {
		return nil, xerrors.Errorf("codec: could not set default volume: %w", err)
	}
	return enc, nil
}

// apply switches the encoder to the given sample rate and frame rate.
func (enc *Encoder) apply(sr int, fps float64) {
	enc.cfg.SampleRate = sr
	enc.cfg.FPS = fps
	enc.ft = timecode.Format{
		FPS:      fps,
		Standard: timecode.StandardFor(fps),
		Mode:     enc.cfg.Mode,
		NoParity: enc.cfg.NoParity,
	}
	enc.mod.Reset()
	enc.mod.SetRate(float64(sr), fps, timecode.FrameBits)
	enc.buf.flush()
	enc.SetFilter(DefaultRiseTime)
}

// Reinitialize switches the encoder to a new sample rate and frame rate.
//
// The modulator phase is reset, the sample buffer is flushed, the rise
// time is reset to DefaultRiseTime and the flag bits are updated for the
// new frame rate. Timecode and user bits are left untouched.
//
// Reinitialize fails with ErrReinitializationFailed and leaves the
// encoder unchanged when the allocated capacity is too small for the new
// configuration. See SetBufferSize.
func (enc *Encoder) Reinitialize(sr int, fps float64) error {
	if sr <= 0 || !(fps > 0) {
		return xerrors.Errorf(
			"codec: invalid reinitialization parameters (sr=%d, fps=%v): %w",
			sr, fps, ErrValueOutOfRange,
		)
	}
	if need := bufferSize(sr, fps); need > len(enc.buf.p) {
		return xerrors.Errorf(
			"codec: could not reinitialize encoder (sr=%d, fps=%v, need=%d, capacity=%d): %w",
			sr, fps, need, len(enc.buf.p), ErrReinitializationFailed,
		)
	}

	prev := enc.ft.Standard
	enc.apply(sr, fps)
	if std := enc.ft.Standard; std != prev && !enc.cfg.NoParity {
		// the previous parity bit is a binary group flag of the new standard.
		enc.frame.Set(timecode.ParityField(prev), 0)
	}
	enc.ft.InitFlags(&enc.frame, enc.cfg.Clock)
	return nil
}

// SetCapacity reallocates the sample buffer to hold n bytes.
// The buffer is flushed.
// SetCapacity fails with ErrAllocationFailed and leaves the encoder
// unchanged when n bytes could not be allocated.
func (enc *Encoder) SetCapacity(n int) error {
	if !enc.buf.alloc(n) {
		return xerrors.Errorf("codec: could not allocate %d bytes: %w", n, ErrAllocationFailed)
	}
	return nil
}

// SetBufferSize reallocates the sample buffer to hold one frame at the
// given sample rate and frame rate.
func (enc *Encoder) SetBufferSize(sr int, fps float64) error {
	if sr <= 0 || !(fps > 0) {
		return xerrors.Errorf(
			"codec: invalid buffer size parameters (sr=%d, fps=%v): %w",
			sr, fps, ErrValueOutOfRange,
		)
	}
	return enc.SetCapacity(bufferSize(sr, fps))
}

// BufferSize returns the number of bytes needed to hold one frame at the
// current sample rate and frame rate: 1 + floor(sr/fps).
func (enc *Encoder) BufferSize() int {
	return bufferSize(enc.cfg.SampleRate, enc.cfg.FPS)
}

// Capacity returns the allocated size of the sample buffer.
func (enc *Encoder) Capacity() int { return len(enc.buf.p) }

// BufferedLen returns the number of samples waiting in the buffer.
func (enc *Encoder) BufferedLen() int { return enc.buf.c }

// SampleRate returns the current sample rate.
func (enc *Encoder) SampleRate() int { return enc.cfg.SampleRate }

// FPS returns the current frame rate.
func (enc *Encoder) FPS() float64 { return enc.cfg.FPS }

// Standard returns the TV standard derived from the current frame rate.
func (enc *Encoder) Standard() timecode.TVStandard { return enc.ft.Standard }

// Format returns the frame format used to step timecodes.
func (enc *Encoder) Format() timecode.Format { return enc.ft }

// SetVolume sets the signal level, in dBFS.
// 0 dBFS spans samples 1 to 255.
// SetVolume fails with ErrValueOutOfRange and leaves the volume
// unchanged for positive values or values too low to be represented.
func (enc *Encoder) SetVolume(dBFS float64) error {
	if math.IsNaN(dBFS) || dBFS > 0 {
		return xerrors.Errorf("codec: invalid volume %v dBFS: %w", dBFS, ErrValueOutOfRange)
	}
	pp := math.Round(127 * math.Pow(10, dBFS/20))
	if pp < 1 {
		return xerrors.Errorf("codec: volume %v dBFS too low: %w", dBFS, ErrValueOutOfRange)
	}
	enc.mod.SetLevels(byte(biphase.Center-pp), byte(biphase.Center+pp))
	enc.vol = dBFS
	return nil
}

// Volume returns the signal level, in dBFS.
func (enc *Encoder) Volume() float64 { return enc.vol }

// SetFilter sets the rise time of the signal edges, in seconds.
// A zero rise time generates a square wave.
func (enc *Encoder) SetFilter(rise float64) {
	if !(rise > 0) {
		rise = 0
	}
	enc.rise = rise
	enc.mod.SetFilter(biphase.FilterCoef(float64(enc.cfg.SampleRate), rise))
}

// Filter returns the rise time of the signal edges, in seconds.
func (enc *Encoder) Filter() float64 { return enc.rise }

// SetTimecode sets the timecode of the current frame.
// SetTimecode fails with ErrValueOutOfRange and leaves the frame
// unchanged when a field of tc is out of range for the frame rate.
func (enc *Encoder) SetTimecode(tc timecode.Timecode) error {
	err := enc.ft.TimecodeToFrame(&enc.frame, tc)
	if err != nil {
		return xerrors.Errorf("codec: could not set timecode (%v): %w", err, ErrValueOutOfRange)
	}
	return nil
}

// Timecode returns the timecode of the current frame.
func (enc *Encoder) Timecode() timecode.Timecode {
	return enc.ft.FrameToTimecode(&enc.frame)
}

// SetFrame replaces the current frame.
// The sync word of f is ignored.
func (enc *Encoder) SetFrame(f timecode.Frame) {
	enc.frame = f
	binary.LittleEndian.PutUint16(enc.frame[8:], timecode.SyncWord)
}

// Frame returns a copy of the current frame.
func (enc *Encoder) Frame() timecode.Frame { return enc.frame }

// SetUserBits stores v into the user bits of the current frame.
func (enc *Encoder) SetUserBits(v uint32) { enc.frame.SetUserBits(v) }

// UserBits returns the user bits of the current frame.
func (enc *Encoder) UserBits() uint32 { return enc.frame.UserBits() }

// IncreaseTimecode advances the current frame by one frame.
// It returns true when the timecode wrapped around at midnight.
func (enc *Encoder) IncreaseTimecode() bool { return enc.ft.Increment(&enc.frame) }

// DecreaseTimecode moves the current frame back by one frame.
// It returns true when the timecode wrapped around at midnight.
func (enc *Encoder) DecreaseTimecode() bool { return enc.ft.Decrement(&enc.frame) }

// EncodeByte modulates byte i (0 to 9) of the current frame into the
// sample buffer, at the given speed.
// The speed must be finite and non-zero.
// A negative speed generates reverse playback: the bits of the byte are
// emitted from the most significant one.
func (enc *Encoder) EncodeByte(i int, speed float64) error {
	if i < 0 || i >= timecode.FrameBytes || speed == 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return ErrValueOutOfRange
	}
	if !enc.cfg.NoParity {
		enc.frame.SetParity(enc.ft.Standard)
	}
	n, err := enc.mod.Byte(enc.buf.free(), enc.frame[i], speed)
	enc.buf.c += n
	if err != nil {
		return ErrBufferFull
	}
	return nil
}

// EncodeFrame modulates the current frame at nominal speed into the
// sample buffer.
// The buffer should be drained before each call.
func (enc *Encoder) EncodeFrame() error {
	for i := 0; i < timecode.FrameBytes; i++ {
		err := enc.EncodeByte(i, 1)
		if err != nil {
			return err
		}
	}
	return nil
}

// EncodeReversedFrame modulates the current frame at nominal speed, as
// it would be heard when played backwards.
func (enc *Encoder) EncodeReversedFrame() error {
	for i := timecode.FrameBytes - 1; i >= 0; i-- {
		err := enc.EncodeByte(i, -1)
		if err != nil {
			return err
		}
	}
	return nil
}

// Buffer returns the buffered samples and flushes the buffer.
// The returned slice aliases the encoder storage and is only valid
// until the next encoding call.
func (enc *Encoder) Buffer() []byte {
	p := enc.buf.bytes()
	enc.buf.flush()
	return p
}

// CopyBuffer copies the buffered samples into dst, flushes the buffer
// and returns the number of copied samples.
// dst must have a capacity of at least BufferedLen bytes: CopyBuffer
// panics otherwise.
func (enc *Encoder) CopyBuffer(dst []byte) int {
	n := copy(dst[:enc.buf.c], enc.buf.p)
	enc.buf.flush()
	return n
}

// WriteTo writes the buffered samples to w and flushes the buffer.
func (enc *Encoder) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(enc.buf.bytes())
	enc.buf.flush()
	return int64(n), err
}

// FlushBuffer discards the buffered samples.
// The modulator phase is preserved.
func (enc *Encoder) FlushBuffer() { enc.buf.flush() }

// Reset resets the modulator phase and flushes the buffer.
func (enc *Encoder) Reset() {
	enc.mod.Reset()
	enc.buf.flush()
}
