// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ltc-dump decodes and displays linear timecode frames from raw unsigned
// 8-bit mono audio captures.
//
// Usage: ltc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> ltc-dump -apv 1920 ./testdata/ltc-25fps.raw
//  === file ./testdata/ltc-25fps.raw ===
//  01:00:00:00 ub=00000123 samples=[       0,     1908] vol=-3.0 dBFS
//  01:00:00:01 ub=00000123 samples=[    1920,     3828] vol=-3.0 dBFS
//  [...]
//  frames: 250, desyncs: 0, rejected: 0, dropped: 0
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/ltc/codec"
	"github.com/go-lpc/ltc/internal/mmap"
	"github.com/go-lpc/ltc/timecode"
	"golang.org/x/sync/errgroup"
)

const usage = `ltc-dump decodes and displays linear timecode frames from raw audio captures.

Usage: ltc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> ltc-dump -apv 1920 ./testdata/ltc-25fps.raw
 === file ./testdata/ltc-25fps.raw ===
 01:00:00:00 ub=00000123 samples=[       0,     1908] vol=-3.0 dBFS
 01:00:00:01 ub=00000123 samples=[    1920,     3828] vol=-3.0 dBFS
 [...]
 frames: 250, desyncs: 0, rejected: 0, dropped: 0

`

func main() {
	xmain(os.Stdout, os.Args[1:])
}

type config struct {
	apv    float64 // audio samples per video frame
	queue  int     // size of the decoder queue
	date   bool    // decode the user bits as a date
	parity bool    // check the parity of frames
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("ltc-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("ltc-dump", flag.ExitOnError)
		cfg  config
	)
	fset.Float64Var(&cfg.apv, "apv", 1920, "audio samples per video frame (sample rate / fps)")
	fset.IntVar(&cfg.queue, "q", 32, "size of the decoded frames queue")
	fset.BoolVar(&cfg.date, "date", false, "decode the user bits as a date and timezone")
	fset.BoolVar(&cfg.parity, "parity", true, "discard frames with a parity error")

	fset.Usage = func() {
		fmt.Print(usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input raw audio file")
	}

	err = run(w, cfg, fset.Args())
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// run decodes all the files concurrently and displays the results in
// the order of the command line.
func run(w io.Writer, cfg config, fnames []string) error {
	var (
		grp  errgroup.Group
		outs = make([]bytes.Buffer, len(fnames))
	)
	for i := range fnames {
		i := i
		grp.Go(func() error {
			err := process(&outs[i], cfg, fnames[i])
			if err != nil {
				return fmt.Errorf("could not dump file %q: %w", fnames[i], err)
			}
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return err
	}

	for i := range outs {
		_, err = outs[i].WriteTo(w)
		if err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}
	}
	return nil
}

func process(w io.Writer, cfg config, fname string) error {
	h, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open raw audio file: %w", err)
	}
	defer h.Close()

	dec, err := codec.NewDecoder(cfg.apv, cfg.queue)
	if err != nil {
		return fmt.Errorf("could not create LTC decoder: %w", err)
	}
	dec.IgnoreParity = !cfg.parity

	mode := timecode.DontTouch
	if cfg.date {
		mode = timecode.UseDate
	}
	ft := timecode.Format{Mode: mode}

	fmt.Fprintf(w, "=== file %s ===\n", fname)

	var (
		r   = h.Reader()
		buf = make([]byte, 4096)
		n   = 0
	)
loop:
	for {
		nn, err := r.Read(buf)
		if nn > 0 {
			_, _ = dec.Write(buf[:nn])
			n += display(w, dec, ft)
		}
		switch err {
		case nil:
		case io.EOF:
			break loop
		default:
			return fmt.Errorf("could not read raw audio samples: %w", err)
		}
	}

	fmt.Fprintf(w, "frames: %d, desyncs: %d, rejected: %d, dropped: %d\n",
		n, dec.Desyncs(), dec.Rejected(), dec.Dropped(),
	)
	return nil
}

// display prints and pops all the frames queued in dec.
func display(w io.Writer, dec *codec.Decoder, ft timecode.Format) int {
	n := 0
	for {
		f, ok := dec.Read()
		if !ok {
			return n
		}
		n++
		tc := ft.FrameToTimecode(&f.Frame)
		fmt.Fprintf(w, "%v ub=%08x", tc, f.Frame.UserBits())
		if ft.Mode == timecode.UseDate {
			fmt.Fprintf(w, " date=%s tz=%s", tc.Date(), tc.Zone)
		}
		fmt.Fprintf(w, " samples=[%8d, %8d] vol=%.1f dBFS", f.OffStart, f.OffEnd, f.Volume)
		if f.Reverse {
			fmt.Fprintf(w, " (reverse)")
		}
		fmt.Fprintf(w, "\n")
	}
}
