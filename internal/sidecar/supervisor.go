// Package sidecar starts and stops the helper processes voice mode relies
// on: the speech synthesizer, the recognizer and optionally llama-server.
package sidecar

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duetvoice/duet/internal/config"
)

const defaultReadyTimeout = 60 * time.Second

// Supervisor runs sidecars in order. A sidecar with a ready marker must
// print it before the next one starts.
type Supervisor struct {
	specs []config.SidecarConfig
}

// NewSupervisor keeps the enabled specs.
func NewSupervisor(specs []config.SidecarConfig) *Supervisor {
	s := &Supervisor{}
	for _, spec := range specs {
		if spec.Enabled {
			s.specs = append(s.specs, spec)
		}
	}
	return s
}

func (s *Supervisor) Len() int { return len(s.specs) }

// Start launches every sidecar and blocks until ctx is cancelled and all of
// them have exited. A sidecar that fails to start stops the ones already
// running.
func (s *Supervisor) Start(ctx context.Context) error {
	if len(s.specs) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	for _, spec := range s.specs {
		p, err := start(gctx, spec)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(p.wait)

		if err := p.waitReady(gctx); err != nil {
			p.log.Warn("Sidecar not ready", "err", err)
		}
	}

	<-ctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

type process struct {
	spec  config.SidecarConfig
	cmd   *exec.Cmd
	log   *slog.Logger
	out   *io.PipeWriter
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

func start(ctx context.Context, spec config.SidecarConfig) (*process, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 5 * time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	p := &process{
		spec:  spec,
		cmd:   cmd,
		log:   slog.With("sidecar", spec.Name),
		out:   pw,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	if spec.ReadyMarker == "" {
		p.markReady()
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("start sidecar %s: %w", spec.Name, err)
	}
	p.log.Info("Sidecar started", "pid", cmd.Process.Pid, "command", spec.Command)

	go p.scan(pr)
	return p, nil
}

func (p *process) markReady() { p.once.Do(func() { close(p.ready) }) }

func (p *process) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		p.log.Info(line)
		if p.spec.ReadyMarker != "" && strings.Contains(line, p.spec.ReadyMarker) {
			p.markReady()
		}
	}
	// Drain so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// wait returns when the process exits. An exit caused by cancellation is
// not an error; any other exit is logged and ignored so one crashed sidecar
// does not take the others down.
func (p *process) wait() error {
	err := p.cmd.Wait()
	p.out.Close()
	close(p.done)
	switch {
	case err == nil:
		p.log.Info("Sidecar exited")
	case p.cmd.ProcessState != nil && !p.cmd.ProcessState.Exited():
		p.log.Info("Sidecar stopped", "state", p.cmd.ProcessState.String())
	default:
		p.log.Error("Sidecar exited", "err", err)
	}
	return nil
}

func (p *process) waitReady(ctx context.Context) error {
	timeout := time.Duration(p.spec.ReadyTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.ready:
		p.log.Info("Sidecar ready")
		return nil
	case <-p.done:
		return fmt.Errorf("exited before printing %q", p.spec.ReadyMarker)
	case <-timer.C:
		return fmt.Errorf("no %q after %s", p.spec.ReadyMarker, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
