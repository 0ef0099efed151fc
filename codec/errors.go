// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import "golang.org/x/xerrors"

var (
	// ErrAllocationFailed is returned when the storage for a sample
	// buffer or a frame queue could not be obtained.
	ErrAllocationFailed = xerrors.New("codec: allocation failed")

	// ErrReinitializationFailed is returned when a new sample rate and
	// frame rate combination needs more buffer capacity than allocated.
	ErrReinitializationFailed = xerrors.New("codec: reinitialization failed")

	// ErrValueOutOfRange is returned for out of range parameters.
	ErrValueOutOfRange = xerrors.New("codec: value out of range")

	// ErrBufferFull is returned when encoded samples do not fit in the
	// remaining space of the sample buffer.
	ErrBufferFull = xerrors.New("codec: sample buffer full")
)
