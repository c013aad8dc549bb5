package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// ProcessBackend spawns an interactive shell process per invocation and
// writes the script to its standard input, followed by an instruction
// that makes the shell exit.
type ProcessBackend struct {
	Program string   // resolved via PATH
	Args    []string // passed before any input is written
	Exit    string   // e.g. "Exit" for pwsh, "exit" for POSIX shells
	Dir     string   // working directory; empty means the server's
}

// Name returns the shell program.
func (b *ProcessBackend) Name() string { return b.Program }

// Exec runs one shell session. Both output pipes are drained concurrently
// so a chatty stream cannot fill its pipe buffer and stall the other.
// Once the process has started it is always reaped before Exec returns.
func (b *ProcessBackend) Exec(ctx context.Context, inv *Invocation, stdout, stderr io.Writer) (int, error) {
	inv.Enter(StateSpawning)

	cmd := exec.CommandContext(ctx, b.Program, b.Args...)
	cmd.Dir = b.Dir
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, &SpawnError{Shell: b.Program, Err: err}
	}
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 0, &SpawnError{Shell: b.Program, Err: err}
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return 0, &SpawnError{Shell: b.Program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Shell: b.Program, Err: err}
	}

	var g errgroup.Group
	reaped := false
	defer func() {
		if reaped {
			return
		}
		// Fault path: kill the shell, then Wait closes our pipe ends so
		// the drains unblock even if a grandchild still holds them.
		_ = stdin.Close()
		_ = killProcess(cmd)
		_ = cmd.Wait()
		_ = g.Wait()
	}()

	stdoutDone := make(chan struct{})
	g.Go(func() error {
		defer close(stdoutDone)
		if _, err := io.Copy(stdout, outPipe); err != nil {
			return fmt.Errorf("reading stdout: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(stderr, errPipe); err != nil {
			return fmt.Errorf("reading stderr: %w", err)
		}
		return nil
	})

	inv.Enter(StateWritingInput)
	if err := writeInput(stdin, inv.Command, b.Exit); err != nil {
		return 0, err
	}

	inv.Enter(StateReadingOutput)
	<-stdoutDone
	inv.Enter(StateReadingError)
	if err := g.Wait(); err != nil {
		return 0, err
	}

	reaped = true
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("%s: %w", b.Program, ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			inv.Enter(StateTerminated)
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("waiting for %s: %w", b.Program, waitErr)
	}
	inv.Enter(StateTerminated)
	return 0, nil
}

// writeInput sends the script as a line, then the exit instruction, and
// closes stdin. A shell that already exited (for example because the
// script itself called exit) is not an error.
func writeInput(stdin io.WriteCloser, script, exit string) error {
	input := script + "\n"
	if exit != "" {
		input += exit + "\n"
	}
	_, werr := io.WriteString(stdin, input)
	cerr := stdin.Close()
	for _, err := range []error{werr, cerr} {
		if err == nil || errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
			continue
		}
		return fmt.Errorf("writing script: %w", err)
	}
	return nil
}
