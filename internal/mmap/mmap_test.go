// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	tmp, err := os.MkdirTemp("", "ltc-mmap-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	want := make([]byte, 4096+17)
	for i := range want {
		want[i] = byte(i % 251)
	}
	fname := filepath.Join(tmp, "capture.raw")
	err = os.WriteFile(fname, want, 0644)
	if err != nil {
		t.Fatalf("could not create capture file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not map file: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), len(want); got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	p := make([]byte, 10)
	n, err := h.ReadAt(p, 4096+10)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid read-at error: %+v", err)
	}
	if got, want := p[:n], want[4096+10:]; !bytes.Equal(got, want) {
		t.Fatalf("invalid read-at content:\ngot= %v\nwant=%v", got, want)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	got, err := io.ReadAll(h.Reader())
	if err != nil {
		t.Fatalf("could not read mapped file: %+v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("invalid content")
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not unmap file: %+v", err)
	}
	_, err = h.ReadAt(p, 0)
	if !errors.Is(err, errClosed) {
		t.Fatalf("invalid read-at error after close: %+v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	tmp, err := os.MkdirTemp("", "ltc-mmap-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	_, err = Open(filepath.Join(tmp, "not-there.raw"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("invalid error: %+v", err)
	}

	empty := filepath.Join(tmp, "empty.raw")
	err = os.WriteFile(empty, nil, 0644)
	if err != nil {
		t.Fatalf("could not create empty file: %+v", err)
	}
	_, err = Open(empty)
	if !errors.Is(err, errEmpty) {
		t.Fatalf("invalid error: %+v", err)
	}
}
