package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualBackend interprets scripts with an in-process POSIX shell instead
// of spawning a shell binary. External commands the script calls are
// still executed through PATH.
type VirtualBackend struct {
	Exit string // defaults to "exit"
	Dir  string
}

// Name returns "virtual".
func (b *VirtualBackend) Name() string { return "virtual" }

// Exec parses the script plus the exit instruction as one program and runs
// it. A syntax error is reported on stderr with exit code 2, the way sh
// reports it.
func (b *VirtualBackend) Exec(ctx context.Context, inv *Invocation, stdout, stderr io.Writer) (int, error) {
	inv.Enter(StateSpawning)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, stdout, stderr),
	}
	if b.Dir != "" {
		opts = append(opts, interp.Dir(b.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return 0, &SpawnError{Shell: b.Name(), Err: err}
	}

	inv.Enter(StateWritingInput)
	exit := b.Exit
	if exit == "" {
		exit = "exit"
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(inv.Command+"\n"+exit+"\n"), "script")
	if err != nil {
		inv.Enter(StateReadingOutput)
		inv.Enter(StateReadingError)
		fmt.Fprintln(stderr, err)
		inv.Enter(StateTerminated)
		return 2, nil
	}

	inv.Enter(StateReadingOutput)
	err = runner.Run(ctx, prog)
	inv.Enter(StateReadingError)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("virtual shell: %w", ctxErr)
	}
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			inv.Enter(StateTerminated)
			return int(status), nil
		}
		return 0, fmt.Errorf("virtual shell: %w", err)
	}
	inv.Enter(StateTerminated)
	return 0, nil
}
