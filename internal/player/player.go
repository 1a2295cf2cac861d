// Package player wraps a sandboxed bot process in the line-based protocol
// the Game Loop speaks: send a prompt, receive a move, notice when the bot
// stops responding.
package player

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/axeltournament/judge/internal/game"
	"github.com/axeltournament/judge/internal/sandbox"
)

// ErrTimeout is returned by ReceiveMessage when the per-turn timeout elapses
// before a full line arrives. Callers distinguish this from a generic I/O
// error to produce TLE rather than RE; it wraps game.ErrBotTimeout so the
// Game Loop's errors.Is check recognises it.
var ErrTimeout = fmt.Errorf("player: receive timed out: %w", game.ErrBotTimeout)

// Player is a single bot's live process plus its line-buffered stdout
// reader. Zero value is not usable; construct with New.
type Player struct {
	proc    *sandbox.Process
	reader  *bufio.Reader
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// New spawns playerID's submissionBinary under limits and wraps it.
func New(rootBase, playerID, submissionBinary string, limits sandbox.ResourceLimits, allowNetwork bool, defaultTimeout time.Duration) (*Player, error) {
	proc, err := sandbox.Spawn(rootBase, playerID, submissionBinary, limits, allowNetwork)
	if err != nil {
		return nil, fmt.Errorf("player: spawn %s: %w", playerID, err)
	}
	return &Player{
		proc:    proc,
		reader:  bufio.NewReader(proc.Stdout),
		timeout: defaultTimeout,
	}, nil
}

// SetTimeout changes the per-turn receive timeout applied to subsequent
// ReceiveMessage calls.
func (p *Player) SetTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

// SendMessage writes line terminated by \n to the bot's stdin.
func (p *Player) SendMessage(line string) error {
	if _, err := fmt.Fprintf(p.proc.Stdin, "%s\n", line); err != nil {
		return fmt.Errorf("player: send: %w", err)
	}
	return nil
}

// ReceiveMessage reads one newline-terminated line from the bot's stdout,
// tolerating a trailing \r, bounded by the current timeout. A timeout
// yields ErrTimeout; any other failure is returned unwrapped-comparable via
// errors.Is against io.EOF/os.ErrClosed as appropriate.
func (p *Player) ReceiveMessage(ctx context.Context) (string, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("player: receive: %w", r.err)
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// IsAlive probes the process non-destructively via a zero signal.
func (p *Player) IsAlive() bool {
	return p.proc.Signal(syscall.Signal(0)) == nil
}

// Close tears the bot down: SIGTERM, a brief grace period, then SIGKILL,
// then releases the cgroup and staged rootfs. Idempotent and safe to call
// from a deferred panic-recovery path — a dropped Player must never leave a
// running process or a leaked cgroup node behind.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.proc.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		p.proc.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		p.proc.Signal(syscall.SIGKILL)
		<-done
	}

	return p.proc.Release()
}
