// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timecode describes SMPTE/EBU linear timecode (LTC) frames
// and implements timecode arithmetic on them.
//
// An LTC frame is 80 bits long. Bit k of a frame is stored in bit k%8
// of byte k/8, i.e. bytes and bits are laid out in transmission order,
// least significant bit first.
package timecode // import "github.com/go-lpc/ltc/timecode"

import (
	"encoding/binary"
	"math/bits"
)

const (
	FrameBits  = 80             // number of bits in an LTC frame
	FrameBytes = FrameBits / 8  // number of bytes in an LTC frame
	SyncWord   = uint16(0xbffc) // sync word, as stored in bytes 8-9
)

// Field describes the position of a bit field inside an LTC frame.
// Fields never straddle a byte boundary.
type Field struct {
	Off   uint8 // offset of the first bit
	Width uint8 // number of bits
}

// Layout of an LTC frame.
//
//  bits   field
//  00-03  frame units
//  04-07  user bits field 1
//  08-09  frame tens
//  10     drop-frame flag
//  11     colour-frame flag
//  12-15  user bits field 2
//  16-19  seconds units
//  20-23  user bits field 3
//  24-26  seconds tens
//  27     polarity correction (525/60) or BGF0 (625/50)
//  28-31  user bits field 4
//  32-35  minutes units
//  36-39  user bits field 5
//  40-42  minutes tens
//  43     BGF0 (525/60) or BGF2 (625/50)
//  44-47  user bits field 6
//  48-51  hours units
//  52-55  user bits field 7
//  56-57  hours tens
//  58     BGF1
//  59     BGF2 (525/60) or polarity correction (625/50)
//  60-63  user bits field 8
//  64-79  sync word
var (
	FrameUnits = Field{0, 4}
	User1      = Field{4, 4}
	FrameTens  = Field{8, 2}
	DropFrame  = Field{10, 1}
	ColorFrame = Field{11, 1}
	User2      = Field{12, 4}
	SecsUnits  = Field{16, 4}
	User3      = Field{20, 4}
	SecsTens   = Field{24, 3}
	Flag27     = Field{27, 1}
	User4      = Field{28, 4}
	MinsUnits  = Field{32, 4}
	User5      = Field{36, 4}
	MinsTens   = Field{40, 3}
	Flag43     = Field{43, 1}
	User6      = Field{44, 4}
	HoursUnits = Field{48, 4}
	User7      = Field{52, 4}
	HoursTens  = Field{56, 2}
	Flag58     = Field{58, 1}
	Flag59     = Field{59, 1}
	User8      = Field{60, 4}
)

var userFields = [8]Field{User1, User2, User3, User4, User5, User6, User7, User8}

// Frame is an 80-bit LTC frame.
type Frame [FrameBytes]byte

// Reset clears all the fields of the frame and sets the sync word.
func (f *Frame) Reset() {
	*f = Frame{}
	binary.LittleEndian.PutUint16(f[8:], SyncWord)
}

// Get returns the value of the field fd.
func (f *Frame) Get(fd Field) uint8 {
	mask := uint8(1)<<fd.Width - 1
	return (f[fd.Off/8] >> (fd.Off % 8)) & mask
}

// Set sets the field fd to v.
// Bits of v that do not fit into the field are discarded.
func (f *Frame) Set(fd Field, v uint8) {
	var (
		i     = fd.Off / 8
		shift = fd.Off % 8
		mask  = (uint8(1)<<fd.Width - 1) << shift
	)
	f[i] = f[i]&^mask | (v<<shift)&mask
}

func (f *Frame) setBool(fd Field, v bool) {
	var u uint8
	if v {
		u = 1
	}
	f.Set(fd, u)
}

// Sync returns the sync word of the frame.
func (f *Frame) Sync() uint16 {
	return binary.LittleEndian.Uint16(f[8:])
}

// IsDropFrame returns whether the drop-frame flag is set.
func (f *Frame) IsDropFrame() bool { return f.Get(DropFrame) == 1 }

// IsColorFrame returns whether the colour-frame flag is set.
func (f *Frame) IsColorFrame() bool { return f.Get(ColorFrame) == 1 }

// SetColorFrame sets the colour-frame flag.
func (f *Frame) SetColorFrame(v bool) { f.setBool(ColorFrame, v) }

// ParityField returns the field holding the parity bit for the
// given TV standard.
func ParityField(std TVStandard) Field {
	if std == TV625_50 {
		return Flag59
	}
	return Flag27
}

// SetParity sets the parity bit of the frame so the total number of
// ones in the frame is even.
func (f *Frame) SetParity(std TVStandard) {
	pf := ParityField(std)
	f.Set(pf, 0)
	var p byte
	for _, v := range f {
		p ^= v
	}
	f.Set(pf, uint8(bits.OnesCount8(p)&1))
}

// ParityOK reports whether the frame holds an even number of ones.
func (f *Frame) ParityOK() bool {
	var p byte
	for _, v := range f {
		p ^= v
	}
	return bits.OnesCount8(p)&1 == 0
}

// UserBits returns the 32 bits stored in the eight user-bits fields.
// User field 1 holds the least significant nibble.
func (f *Frame) UserBits() uint32 {
	var v uint32
	for i := len(userFields) - 1; i >= 0; i-- {
		v = v<<4 | uint32(f.Get(userFields[i]))
	}
	return v
}

// SetUserBits stores v into the eight user-bits fields, least
// significant nibble first.
func (f *Frame) SetUserBits(v uint32) {
	for _, fd := range userFields {
		f.Set(fd, uint8(v&0xf))
		v >>= 4
	}
}

func (f *Frame) hmsf() (h, m, s, n int) {
	h = int(f.Get(HoursTens))*10 + int(f.Get(HoursUnits))
	m = int(f.Get(MinsTens))*10 + int(f.Get(MinsUnits))
	s = int(f.Get(SecsTens))*10 + int(f.Get(SecsUnits))
	n = int(f.Get(FrameTens))*10 + int(f.Get(FrameUnits))
	return h, m, s, n
}

func (f *Frame) setHMSF(h, m, s, n int) {
	f.Set(HoursTens, uint8(h/10))
	f.Set(HoursUnits, uint8(h%10))
	f.Set(MinsTens, uint8(m/10))
	f.Set(MinsUnits, uint8(m%10))
	f.Set(SecsTens, uint8(s/10))
	f.Set(SecsUnits, uint8(s%10))
	f.Set(FrameTens, uint8(n/10))
	f.Set(FrameUnits, uint8(n%10))
}
