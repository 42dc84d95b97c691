package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/wagiedev/rpcstream/internal/errors"
)

// maxStderrBufferSize is the maximum size for the stderr buffer.
// Stderr reading continues indefinitely (callback receives all lines),
// but the buffer stops growing after this limit to prevent unbounded memory usage.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// Config describes the server process to spawn.
type Config struct {
	// Command is the executable to run.
	Command string

	// Args are passed to Command.
	Args []string

	// Env entries are appended to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stderr receives each line the process writes to stderr.
	Stderr func(string)
}

// Process is a running JSON-RPC server process. Writes go to its stdin;
// frames are read from Stdout.
type Process struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu          sync.Mutex // Protects stdin writes
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool

	stderrMu  sync.Mutex
	stderrBuf strings.Builder
	stderrWg  sync.WaitGroup
}

// Compile-time verification that Process can serve as the outbound side.
var _ io.Writer = (*Process)(nil)

// Start spawns the process described by cfg.
//
// Returns a wrapped exec error if the command cannot be started. The process
// is bound to ctx: cancelling it kills the process.
func Start(ctx context.Context, log *slog.Logger, cfg Config) (*Process, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("start server process: missing command")
	}

	log = log.With("component", "subprocess", "command", cfg.Command)

	//nolint:gosec // G204: Subprocess launching with caller-supplied args is the point of this package
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir

	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		log.Error("Failed to start server process", "error", err)

		return nil, fmt.Errorf("start server process: %w", err)
	}

	p := &Process{
		log:    log,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}

	// Stderr must be fully read before cmd.Wait; see os/exec.Cmd.StderrPipe.
	p.stderrWg.Go(func() {
		p.drainStderr(stderr, cfg.Stderr)
	})

	log.Info("Server process started", "pid", cmd.Process.Pid)

	return p, nil
}

func (p *Process) drainStderr(r io.Reader, callback func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		p.stderrMu.Lock()

		if p.stderrBuf.Len() < maxStderrBufferSize {
			if p.stderrBuf.Len() > 0 {
				p.stderrBuf.WriteString("\n")
			}

			p.stderrBuf.WriteString(line)
		}

		p.stderrMu.Unlock()

		if callback != nil {
			callback(line)
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr scanner error", "error", err)
	}
}

// Stdout returns the process output, carrying inbound frames.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Write sends data to the process stdin. It is safe for concurrent use.
func (p *Process) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil {
		return 0, errors.ErrTransportNotConnected
	}

	if p.stdinClosed {
		return 0, errors.ErrClosed
	}

	n, err := p.stdin.Write(data)
	if err != nil {
		p.log.Error("Failed to write to server stdin", "error", err)

		return n, fmt.Errorf("write to stdin: %w", err)
	}

	return n, nil
}

// CloseStdin signals end of input. The process may still write responses.
func (p *Process) CloseStdin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil || p.stdinClosed {
		return nil
	}

	p.log.Debug("Closing stdin pipe")

	p.stdinClosed = true

	return p.stdin.Close()
}

// Wait waits for the process to exit after its stdout has been consumed.
//
// It returns nil for a clean exit or one caused by Close, and a
// *errors.ProcessError carrying the exit code and buffered stderr otherwise.
func (p *Process) Wait() error {
	p.stderrWg.Wait()

	err := p.cmd.Wait()
	if err == nil {
		p.log.Info("Server process exited successfully")

		return nil
	}

	p.mu.Lock()
	closing := p.closing
	p.mu.Unlock()

	if closing {
		p.log.Debug("Server process terminated during shutdown")

		return nil
	}

	p.stderrMu.Lock()
	stderr := strings.TrimSpace(p.stderrBuf.String())
	p.stderrMu.Unlock()

	exitCode := -1

	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		exitCode = exitErr.ExitCode()
	}

	p.log.Error("Server process exited with error", "exit_code", exitCode, "stderr", stderr)

	return &errors.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// Close terminates the process. It's safe to call Close multiple times.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return nil
	}

	p.closing = true

	if !p.stdinClosed && p.stdin != nil {
		p.stdinClosed = true
		_ = p.stdin.Close()
	}

	if p.cmd != nil && p.cmd.Process != nil {
		p.log.Debug("Killing server process", "pid", p.cmd.Process.Pid)

		if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill server process (pid %d): %w", p.cmd.Process.Pid, err)
		}
	}

	return nil
}
