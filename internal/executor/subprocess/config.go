package subprocess

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the knobs for the subprocess runner.
type Config struct {
	// Root is the directory under which per-run workspaces are created.
	// It is the only resource shared between concurrent executions;
	// workspace names are collision-resistant so no coordination is needed.
	Root string

	// Timeout is the hard wall-clock deadline per execution.
	Timeout time.Duration

	// MaxOutputBytes caps stdout and stderr independently. Bytes past the
	// cap are dropped as they arrive, so a child printing in a tight loop
	// cannot grow the server's memory.
	MaxOutputBytes int64

	// KillGrace bounds how long Execute waits to reap the child after
	// sending SIGKILL on timeout. If the grace period also elapses the
	// timeout is still reported; the reap finishes in the background.
	KillGrace time.Duration
}

// DefaultConfig returns the standard limits: 30s deadline, 1 MiB per stream.
func DefaultConfig() Config {
	return Config{
		Root:           filepath.Join(os.TempDir(), "codebench"),
		Timeout:        30 * time.Second,
		MaxOutputBytes: 1 << 20,
		KillGrace:      2 * time.Second,
	}
}
