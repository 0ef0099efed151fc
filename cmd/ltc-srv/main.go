// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ltc-srv starts a TDAQ server streaming linear timecode audio
// frames.
//
// The /config command takes the sample rate (u32), the frame rate as a
// u32 numerator and a u32 denominator, and the first timecode (str).
// Between /start and /stop, one LTC frame is generated per video frame
// period and published on the /ltc output end-point as:
//   - the frame counter (u32),
//   - the 10 bytes of the LTC frame,
//   - the number of audio samples (u32), followed by the samples (u8).
//
// The configuration used before the first /config command is read from
// the environment:
//   - LTC_SRV_SAMPLE_RATE: sample rate in Hz (default: 48000),
//   - LTC_SRV_FPS: frame rate (default: 25),
//   - LTC_SRV_START: first timecode (default: 00:00:00:00),
//   - LTC_SRV_METRICS_ADDR: address of the Prometheus /metrics end-point
//     (disabled when empty).
package main // import "github.com/go-lpc/ltc/cmd/ltc-srv"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/ltc"
	"github.com/go-lpc/ltc/codec"
	"github.com/go-lpc/ltc/timecode"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cmd := flags.New()

	var env settings
	err := envconfig.Process("ltc_srv", &env)
	if err != nil {
		log.Fatalf("could not read environment: %+v", err)
	}

	reg := prometheus.NewRegistry()
	dev, err := newGenerator(env, reg)
	if err != nil {
		log.Fatalf("could not create LTC generator: %+v", err)
	}

	if env.MetricsAddr != "" {
		go serveMetrics(env.MetricsAddr, reg)
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/ltc", dev.ltc)

	srv.RunHandle(dev.run)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type settings struct {
	SampleRate  int     `envconfig:"SAMPLE_RATE" default:"48000"`
	FPS         float64 `envconfig:"FPS" default:"25"`
	Start       string  `envconfig:"START" default:"00:00:00:00"`
	MetricsAddr string  `envconfig:"METRICS_ADDR"`
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	err := http.ListenAndServe(addr, mux)
	if err != nil {
		log.Printf("could not serve metrics on %q: %+v", addr, err)
	}
}

type metrics struct {
	frames  prometheus.Counter
	samples prometheus.Counter
	dropped prometheus.Counter
	configs prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "ltc_frames_generated_total",
			Help: "Total number of LTC frames generated",
		}),
		samples: f.NewCounter(prometheus.CounterOpts{
			Name: "ltc_samples_generated_total",
			Help: "Total number of audio samples generated",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ltc_frames_dropped_total",
			Help: "Total number of LTC frames dropped on a full output queue",
		}),
		configs: f.NewCounter(prometheus.CounterOpts{
			Name: "ltc_configurations_total",
			Help: "Total number of applied /config requests",
		}),
	}
}

type generator struct {
	mu sync.Mutex

	sr    int
	fps   float64
	start timecode.Timecode

	enc  *codec.Encoder
	n    uint32
	data chan []byte

	stats *metrics
}

func newGenerator(env settings, reg prometheus.Registerer) (*generator, error) {
	if env.SampleRate <= 0 || !(env.FPS > 0) {
		return nil, fmt.Errorf("invalid configuration (sr=%d, fps=%v)", env.SampleRate, env.FPS)
	}
	start, err := parseStart(env.Start, env.FPS)
	if err != nil {
		return nil, err
	}

	return &generator{
		sr:    env.SampleRate,
		fps:   env.FPS,
		start: start,
		data:  make(chan []byte, 64),
		stats: newMetrics(reg),
	}, nil
}

func (dev *generator) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	err := dev.configure(req.Body)
	if err != nil {
		ctx.Msg.Errorf("could not configure LTC generator: %+v", err)
		return fmt.Errorf("could not configure LTC generator: %w", err)
	}
	ctx.Msg.Infof("LTC generator: sr=%d Hz, fps=%v, start=%v", dev.sr, dev.fps, dev.start)
	return nil
}

func (dev *generator) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	version, _ := ltc.Version()
	ctx.Msg.Debugf("received /init command... (ltc=%q)", version)
	err := dev.init()
	if err != nil {
		ctx.Msg.Errorf("could not initialize LTC generator: %+v", err)
		return fmt.Errorf("could not initialize LTC generator: %w", err)
	}
	return nil
}

func (dev *generator) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	err := dev.reset()
	if err != nil {
		ctx.Msg.Errorf("could not reset LTC generator: %+v", err)
		return fmt.Errorf("could not reset LTC generator: %w", err)
	}
	return nil
}

func (dev *generator) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (dev *generator) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	n := dev.n
	dev.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return nil
}

func (dev *generator) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (dev *generator) ltc(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *generator) run(ctx tdaq.Context) error {
	dev.mu.Lock()
	tick := time.NewTicker(dev.period())
	dev.mu.Unlock()
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tick.C:
			raw, err := dev.next()
			if err != nil {
				ctx.Msg.Errorf("could not generate LTC frame: %+v", err)
				return fmt.Errorf("could not generate LTC frame: %w", err)
			}
			select {
			case dev.data <- raw:
			default:
				dev.stats.dropped.Inc()
				ctx.Msg.Debugf("output queue full: dropping LTC frame")
			}
		}
	}
}

// configure decodes a /config request body.
// An empty body keeps the current configuration.
func (dev *generator) configure(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	dec := tdaq.NewDecoder(bytes.NewReader(body))
	var (
		sr    = dec.ReadU32()
		num   = dec.ReadU32()
		den   = dec.ReadU32()
		start = dec.ReadStr()
	)
	if err := dec.Err(); err != nil {
		return fmt.Errorf("could not decode /config request: %w", err)
	}
	if sr == 0 || num == 0 || den == 0 {
		return fmt.Errorf("invalid configuration (sr=%d, fps=%d/%d)", sr, num, den)
	}

	fps := float64(num) / float64(den)
	tc, err := parseStart(start, fps)
	if err != nil {
		return err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.enc != nil {
		err = dev.enc.Reinitialize(int(sr), fps)
		if errors.Is(err, codec.ErrReinitializationFailed) {
			err = dev.enc.SetBufferSize(int(sr), fps)
			if err != nil {
				return fmt.Errorf("could not resize LTC buffer: %w", err)
			}
			err = dev.enc.Reinitialize(int(sr), fps)
		}
		if err != nil {
			return fmt.Errorf("could not reinitialize LTC encoder: %w", err)
		}
		err = dev.enc.SetTimecode(tc)
		if err != nil {
			return fmt.Errorf("could not set start timecode: %w", err)
		}
		dev.n = 0
	}

	dev.sr = int(sr)
	dev.fps = fps
	dev.start = tc
	dev.stats.configs.Inc()
	return nil
}

// parseStart parses a start timecode and checks it against the frame rate.
func parseStart(s string, fps float64) (timecode.Timecode, error) {
	tc, err := timecode.Parse(s)
	if err != nil {
		return tc, fmt.Errorf("could not parse start timecode: %w", err)
	}
	err = timecode.NewFormat(fps, timecode.DontTouch).Validate(tc)
	if err != nil {
		return tc, fmt.Errorf("invalid start timecode: %w", err)
	}
	return tc, nil
}

func (dev *generator) init() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	enc, err := codec.NewEncoder(codec.Config{
		SampleRate: dev.sr,
		FPS:        dev.fps,
		Mode:       timecode.DontTouch,
	})
	if err != nil {
		return fmt.Errorf("could not create LTC encoder: %w", err)
	}
	err = enc.SetTimecode(dev.start)
	if err != nil {
		return fmt.Errorf("could not set start timecode: %w", err)
	}

	dev.enc = enc
	dev.n = 0
	dev.drain()
	return nil
}

func (dev *generator) reset() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.n = 0
	dev.drain()
	if dev.enc == nil {
		return nil
	}
	dev.enc.Reset()
	err := dev.enc.SetTimecode(dev.start)
	if err != nil {
		return fmt.Errorf("could not set start timecode: %w", err)
	}
	return nil
}

func (dev *generator) drain() {
	for {
		select {
		case <-dev.data:
		default:
			return
		}
	}
}

func (dev *generator) period() time.Duration {
	return time.Duration(float64(time.Second) / dev.fps)
}

// next encodes the current frame, steps the timecode and returns the
// /ltc output body.
func (dev *generator) next() ([]byte, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.enc == nil {
		return nil, fmt.Errorf("LTC generator not initialized")
	}

	err := dev.enc.EncodeFrame()
	if err != nil {
		return nil, fmt.Errorf("could not encode LTC frame %d: %w", dev.n, err)
	}

	var (
		frame   = dev.enc.Frame()
		samples = dev.enc.Buffer()
		buf     = new(bytes.Buffer)
		enc     = tdaq.NewEncoder(buf)
	)
	buf.Grow(4 + len(frame) + 4 + len(samples))

	enc.WriteU32(dev.n)
	for _, v := range frame {
		enc.WriteU8(v)
	}
	enc.WriteU32(uint32(len(samples)))
	for _, v := range samples {
		enc.WriteU8(v)
	}
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("could not encode /ltc output frame: %w", err)
	}

	dev.n++
	dev.enc.IncreaseTimecode()
	dev.stats.frames.Inc()
	dev.stats.samples.Add(float64(len(samples)))
	return buf.Bytes(), nil
}
