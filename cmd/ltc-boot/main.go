// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ltc-boot (re)starts the LTC TDAQ processes.
//
// Each positional argument is the command line of a process to boot.
// When none is given, a single ltc-srv process is started.
// The output of each process is redirected to $LTC_LOGDIR/<name>.log
// (default: /var/log/ltc).
//
// Example:
//
//  $> ltc-boot -pmon "ltc-srv -id ltc-01" "ltc-srv -id ltc-02"
package main // import "github.com/go-lpc/ltc/cmd/ltc-boot"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

var (
	doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")

	stop = make(chan os.Signal, 1)
)

func main() {
	flag.Parse()

	log.SetPrefix("ltc-boot: ")
	log.SetFlags(0)

	cmds, err := commands(flag.Args())
	if err != nil {
		log.Fatalf("%+v", err)
	}

	err = run(*doMon, *doFreq, cmds, os.Getenv("LTC_LOGDIR"), stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// commands builds the processes to boot from their command lines.
func commands(args []string) ([]*exec.Cmd, error) {
	if len(args) == 0 {
		args = []string{"ltc-srv"}
	}

	cmds := make([]*exec.Cmd, 0, len(args))
	names := make(map[string]int, len(args))
	for _, arg := range args {
		argv := strings.Fields(arg)
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty command line")
		}
		cmd := exec.Command(argv[0], argv[1:]...)
		cmds = append(cmds, cmd)
		names[logName(cmd)]++
	}
	for name, n := range names {
		if n > 1 {
			return nil, fmt.Errorf("duplicate process name %q (x%d)", name, n)
		}
	}
	return cmds, nil
}

// logName returns the name used for the log files of cmd.
// Processes sharing an executable are told apart by their arguments.
func logName(cmd *exec.Cmd) string {
	name := filepath.Base(cmd.Path)
	if len(cmd.Args) > 1 {
		name += "-" + strings.Join(cmd.Args[1:], "_")
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ' ', '=':
			return '_'
		}
		return r
	}, name)
}

func run(doMon bool, freq time.Duration, cmds []*exec.Cmd, dir string, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	killed := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		name := filepath.Base(cmd.Path)
		if killed[name] {
			continue
		}
		killed[name] = true
		kill := exec.Command("killall", name)
		kill.Stderr = os.Stderr
		kill.Stdout = os.Stdout
		err := kill.Run()
		if err != nil {
			log.Printf("could not kill %q: %+v", name, err)
		}
	}

	if dir == "" {
		dir = "/var/log/ltc"
	}

	var (
		grp  errgroup.Group
		kill = make(chan int)
	)
	for i := range cmds {
		cmd := cmds[i]
		grp.Go(func() error {
			return start(cmd, dir, kill, doMon, freq)
		})
	}

	go func() {
		<-stop
		close(kill)
	}()

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not boot LTC processes: %w", err)
	}
	return nil
}

func start(cmd *exec.Cmd, dir string, kill chan int, doMon bool, freq time.Duration) error {
	name := logName(cmd)
	out, err := os.Create(filepath.Join(dir, name+".log"))
	if err != nil {
		return fmt.Errorf("could not create output log file for %q: %w", name, err)
	}
	defer out.Close()

	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", name)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", name, err)
	}

	if doMon {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			return fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		f, err := os.Create(filepath.Join(dir, name+"-pmon.log"))
		if err != nil {
			return fmt.Errorf("could not create pmon log file for command %q: %w", name, err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			log.Printf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	errch := make(chan error, 1)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-kill:
		err = cmd.Process.Kill()
		if err != nil {
			return fmt.Errorf("could not kill %q: %+v", name, err)
		}
		<-errch
	case err = <-errch:
		if err != nil {
			return fmt.Errorf("could not run %q: %w", name, err)
		}
	}

	return nil
}
