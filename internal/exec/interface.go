// Package exec abstracts running external tools so callers can be tested
// without them installed.
package exec

import (
	"context"
)

// CommandRunner runs external commands.
type CommandRunner interface {
	// Run executes name with args in workDir (the current directory when
	// empty) and returns combined stdout/stderr output.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// LookPath reports the resolved path of an executable, or an error if
	// it is not installed.
	LookPath(name string) (string, error)
}
