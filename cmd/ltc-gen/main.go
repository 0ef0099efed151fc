// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ltc-gen generates linear timecode as raw unsigned 8-bit mono
// audio samples.
//
// Usage: ltc-gen [OPTIONS]
//
// Example:
//
//  $> ltc-gen -sr 48000 -fps 25 -d 10s -ub 123 -o ltc.raw
//  ltc-gen: writing 250 frames (48000 Hz, 25 fps) to "ltc.raw"...
//  ltc-gen: last timecode: 00:00:09:24
//
// Generation parameters may also be read from a YAML file with -cfg.
// Values found in that file take precedence over the command-line flags:
//
//  sample_rate: 44100
//  fps: 29.97
//  duration: 1m
//  user_bits: 20210706
//  start: "10:00:00:00"
//  volume: -6
//  rise_time: 25us
//  reverse: false
package main // import "github.com/go-lpc/ltc/cmd/ltc-gen"

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-lpc/ltc/codec"
	"github.com/go-lpc/ltc/timecode"
	"gopkg.in/yaml.v3"
)

var (
	msg = log.New(os.Stdout, "ltc-gen: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

type config struct {
	SampleRate int           `yaml:"sample_rate"`
	FPS        float64       `yaml:"fps"`
	Duration   time.Duration `yaml:"duration"`
	UserBits   uint          `yaml:"user_bits"`
	Start      string        `yaml:"start"`
	Volume     float64       `yaml:"volume"`
	RiseTime   time.Duration `yaml:"rise_time"`
	Reverse    bool          `yaml:"reverse"`
}

// loadConfig overlays the values of the YAML file fname onto cfg.
func loadConfig(fname string, cfg *config) error {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("could not read config file %q: %w", fname, err)
	}

	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		return fmt.Errorf("could not decode config file %q: %w", fname, err)
	}
	return nil
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("ltc-gen", flag.ExitOnError)

		oname = fset.String("o", "ltc.raw", "path to output raw audio file")
		fcfg  = fset.String("cfg", "", "path to a YAML file with generation parameters")
		cfg   config
	)
	fset.IntVar(&cfg.SampleRate, "sr", 48000, "sample rate (Hz)")
	fset.Float64Var(&cfg.FPS, "fps", 25, "frame rate (frames/s)")
	fset.DurationVar(&cfg.Duration, "d", 10*time.Second, "duration of the generated signal")
	fset.UintVar(&cfg.UserBits, "ub", 0, "identifier stored as BCD in the user bits (at most 8 digits)")
	fset.StringVar(&cfg.Start, "start", "00:00:00:00", "first timecode")
	fset.Float64Var(&cfg.Volume, "vol", codec.DefaultVolume, "signal level (dBFS)")
	fset.DurationVar(&cfg.RiseTime, "rise", 40*time.Microsecond, "rise time of the signal edges")
	fset.BoolVar(&cfg.Reverse, "reverse", false, "generate timecode for reverse playback")

	fset.Usage = func() {
		fmt.Printf(`Usage: ltc-gen [OPTIONS]

ex:
 $> ltc-gen -sr 48000 -fps 25 -d 10s -ub 123 -o ltc.raw

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if *fcfg != "" {
		err = loadConfig(*fcfg, &cfg)
		if err != nil {
			msg.Fatalf("could not load configuration: %+v", err)
		}
	}

	if *oname == "" {
		fset.Usage()
		msg.Fatalf("invalid output raw file")
	}

	err = process(*oname, cfg)
	if err != nil {
		msg.Fatalf("could not generate LTC file %q: %+v", *oname, err)
	}
}

func process(oname string, cfg config) error {
	ub, err := bcd(cfg.UserBits)
	if err != nil {
		return fmt.Errorf("could not encode user bits: %w", err)
	}

	tc, err := timecode.Parse(cfg.Start)
	if err != nil {
		return fmt.Errorf("could not parse start timecode: %w", err)
	}

	enc, err := codec.NewEncoder(codec.Config{
		SampleRate: cfg.SampleRate,
		FPS:        cfg.FPS,
		Mode:       timecode.DontTouch,
	})
	if err != nil {
		return fmt.Errorf("could not create LTC encoder: %w", err)
	}

	err = enc.SetVolume(cfg.Volume)
	if err != nil {
		return fmt.Errorf("could not set volume: %w", err)
	}
	enc.SetFilter(cfg.RiseTime.Seconds())
	err = enc.SetTimecode(tc)
	if err != nil {
		return fmt.Errorf("invalid start timecode: %w", err)
	}
	enc.SetUserBits(ub)

	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n := int(math.Ceil(cfg.Duration.Seconds() * cfg.FPS))
	msg.Printf("writing %d frames (%d Hz, %v fps) to %q...", n, cfg.SampleRate, cfg.FPS, oname)

	for i := 0; i < n; i++ {
		switch {
		case cfg.Reverse:
			err = enc.EncodeReversedFrame()
		default:
			err = enc.EncodeFrame()
		}
		if err != nil {
			return fmt.Errorf("could not encode frame %d: %w", i, err)
		}

		_, err = enc.WriteTo(w)
		if err != nil {
			return fmt.Errorf("could not write frame %d: %w", i, err)
		}

		if i == n-1 {
			break
		}
		switch {
		case cfg.Reverse:
			enc.DecreaseTimecode()
		default:
			enc.IncreaseTimecode()
		}
	}
	msg.Printf("last timecode: %v", enc.Timecode())

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("could not flush output file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}

	return nil
}

// bcd packs the decimal digits of v into nibbles, least significant
// digit first.
func bcd(v uint) (uint32, error) {
	if v > 99999999 {
		return 0, fmt.Errorf("value %d does not fit into 8 BCD digits", v)
	}
	var o uint32
	for i := 0; v > 0; i++ {
		o |= uint32(v%10) << (4 * i)
		v /= 10
	}
	return o, nil
}
