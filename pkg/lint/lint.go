// Package lint runs the configured linter against freshly injected code.
// Validation is fire-and-forget: it must never block or fail the apply
// path, only report back through its callback.
package lint

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/utils"
)

// Result is what the callback receives once the linter finishes.
type Result struct {
	HasErrors bool
	Output    string
}

// Validator shells out to a user-configured lint command. A nil or
// commandless validator is a no-op.
type Validator struct {
	Command []string
	Logger  *utils.Logger
}

// New creates a validator for the given command line.
func New(command []string, logger *utils.Logger) *Validator {
	return &Validator{Command: command, Logger: logger}
}

// ValidateAfterInjection lints the buffer region in the background and
// invokes cb with the outcome. The buffer text is captured synchronously so
// later edits cannot race the goroutine.
func (v *Validator) ValidateAfterInjection(buf *buffer.Buffer, startLine, endLine int, cb func(Result)) {
	if v == nil || len(v.Command) == 0 || cb == nil {
		return
	}
	text := buf.Text()
	name := filepath.Base(buf.Name())

	go func() {
		res := v.run(text, name)
		if res.HasErrors {
			v.Logger.Logf("lint reported errors for %s lines %d-%d", name, startLine, endLine)
		}
		cb(res)
	}()
}

func (v *Validator) run(text, name string) Result {
	tmp, err := os.CreateTemp("", "inlay-lint-*-"+name)
	if err != nil {
		v.Logger.LogError(err)
		return Result{}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		v.Logger.LogError(err)
		return Result{}
	}
	tmp.Close()

	args := append(append([]string{}, v.Command[1:]...), tmp.Name())
	out, err := exec.Command(v.Command[0], args...).CombinedOutput()
	return Result{HasErrors: err != nil, Output: string(out)}
}
