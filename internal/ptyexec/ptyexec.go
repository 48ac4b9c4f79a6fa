// Package ptyexec implements the PTY executor (C6): it forks the
// admitted invocation onto a pseudo-terminal, relays stdin/stdout
// against the PTY master, enforces a wall-clock timeout, and
// forwards operator signals to the child. Ported from
// execute_command and its surrounding select loop in the original
// secure_shell.cpp, using github.com/creack/pty in place of forkpty
// and a goroutine-plus-channel relay in place of select(2).
package ptyexec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"secureshell/internal/apperror"
	"secureshell/internal/procstate"
)

const relayBufferSize = 4096

// Result reports how a command's PTY session ended.
type Result struct {
	TimedOut bool
	ExitCode int
}

// chunk carries one bounded read's outcome from a relayReader
// goroutine back to Run's select loop.
type chunk struct {
	data []byte
	err  error
}

// executorMu enforces the single-child invariant: the executor is not
// re-entrant, and only one PTY session may be live in this process at
// a time.
var executorMu sync.Mutex

// deadlineSetter is the capability Run needs to force its stdin relay
// goroutine to return once a command ends: SetReadDeadline on the
// underlying file makes any Read currently blocked on it return
// immediately, the same way it would for a timed-out net.Conn. os.File
// satisfies this for pipes, sockets, and terminals (the shapes stdin
// actually takes here); it is not required to work for every
// io.Reader, which is why callers pass nil when it doesn't apply.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// Run execs verb with args attached to a new PTY, relays stdin/stdout
// against it, and enforces timeout as a wall-clock bound from fork to
// either completion or SIGTERM. It installs its own SIGINT/SIGTERM/
// SIGQUIT handling for the duration of the call and forwards any of
// those to the child as SIGINT, restoring the previous disposition
// before returning. End of input on stdin, or the child closing the
// PTY, also ends the relay; Run then waits for the child to exit and
// the timeout no longer applies.
//
// stdin must be the single buffered reader the session loop also uses
// to read the next command line: Run only ever drains it for the
// lifetime of this call, and never builds a reader of its own, so no
// byte typed ahead by the operator is ever silently lost to a second,
// independent buffer. stdinDeadline is the same underlying file,
// passed separately so Run can force a pending Read to return when
// the command ends instead of leaving a goroutine blocked on stdin
// past the point where the session loop resumes reading it; it may be
// nil if the underlying reader doesn't support deadlines.
func Run(ctx context.Context, logger *slog.Logger, stdin *bufio.Reader, stdinDeadline deadlineSetter, verb string, args []string, timeout time.Duration) (Result, error) {
	executorMu.Lock()
	defer executorMu.Unlock()

	stdinFd := int(os.Stdin.Fd())
	size := ptySizeFromTerminal(stdinFd)

	cmd := exec.Command(verb, args...)
	master, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return Result{}, apperror.New(apperror.Execution, fmt.Sprintf("fork failed for %q", verb), err)
	}
	defer master.Close()

	procstate.SetChildPID(cmd.Process.Pid)
	defer procstate.SetChildPID(-1)

	if term.IsTerminal(stdinFd) {
		rawState, rerr := term.MakeRaw(stdinFd)
		if rerr == nil {
			defer term.Restore(stdinFd, rawState)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	stdinCh := make(chan chunk, 1)
	stdinDone := make(chan struct{})
	go relayStdin(stdin, stdinCh, stdinDone)
	defer func() {
		if stdinDeadline != nil {
			_ = stdinDeadline.SetReadDeadline(time.Now())
		}
		<-stdinDone
		if stdinDeadline != nil {
			_ = stdinDeadline.SetReadDeadline(time.Time{})
		}
	}()

	masterCh := make(chan chunk, 1)
	go relayReader(master, masterCh)

	start := time.Now()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	result := Result{}
loop:
	for {
		select {
		case sig := <-sigCh:
			logger.Warn("forwarding signal to child", "signal", sig, "pid", cmd.Process.Pid)
			_ = cmd.Process.Signal(syscall.SIGINT)

		case <-ticker.C:
			if time.Since(start) > timeout {
				logger.Warn("command timed out, sending SIGTERM", "verb", verb, "timeout", timeout)
				_ = cmd.Process.Signal(syscall.SIGTERM)
				result.TimedOut = true
				break loop
			}

		case c := <-stdinCh:
			if c.err != nil || len(c.data) == 0 {
				break loop
			}
			if _, err := master.Write(c.data); err != nil {
				break loop
			}

		case c := <-masterCh:
			if c.err != nil || len(c.data) == 0 {
				break loop
			}
			if _, err := os.Stdout.Write(c.data); err != nil {
				break loop
			}
			go relayReader(master, masterCh)

		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			break loop
		}
	}

	err = cmd.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if err == nil {
		result.ExitCode = 0
	}

	return result, nil
}

// relayStdin repeatedly reads from the session loop's shared buffered
// reader and reports each read on ch, stopping as soon as a Read
// returns an error — including the deadline-exceeded error Run's
// cleanup forces once the command ends. It always closes done on
// return, which Run waits on before releasing stdin back to the
// session loop, so there is never a moment where two goroutines read
// from the same *bufio.Reader concurrently.
func relayStdin(in *bufio.Reader, ch chan<- chunk, done chan<- struct{}) {
	defer close(done)
	for {
		buf := make([]byte, relayBufferSize)
		n, err := in.Read(buf)
		ch <- chunk{data: buf[:n], err: err}
		if err != nil {
			return
		}
	}
}

// relayReader performs a single bounded read and reports it on ch.
// Each successful iteration of the main loop spawns a fresh reader
// rather than looping internally, so the select in Run always
// observes one in-flight read per descriptor — the Go equivalent of
// re-arming a descriptor in a select(2) set. Unlike relayStdin, the
// PTY master is owned exclusively by this invocation of Run, so a
// reader left blocked on it past loop exit is unblocked by the
// deferred master.Close() rather than a deadline.
func relayReader(r io.Reader, ch chan<- chunk) {
	buf := make([]byte, relayBufferSize)
	n, err := r.Read(buf)
	ch <- chunk{data: buf[:n], err: err}
}

// ptySizeFromTerminal mirrors NewSSHSession's term.GetSize fallback:
// when stdin isn't a terminal (piped input, a test harness), the
// child still gets a usable fixed-size PTY instead of a zero-sized
// one.
func ptySizeFromTerminal(fd int) *pty.Winsize {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		cols, rows = 80, 24
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
}
