package docker

import "time"

// Config holds the configuration for containerized execution.
type Config struct {
	// Image is the container image used for execution. It must carry every
	// interpreter in the dispatch table (python3, node, bash).
	Image string
	// MemoryLimit is the maximum memory per container, in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// Timeout is the hard wall-clock deadline per execution.
	Timeout time.Duration
	// MaxOutputBytes bounds how much of the container's combined output is
	// read before the rest is discarded.
	MaxOutputBytes int64
	// PoolSize is the number of pre-warmed containers to keep ready.
	PoolSize int
}

// DefaultConfig provides sensible defaults for a multi-language sandbox.
func DefaultConfig() Config {
	return Config{
		// python + node in one image; bash comes with the base OS
		Image: "nikolaik/python-nodejs:python3.12-nodejs22-slim",
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		// half a CPU
		CPULimit: 0.5,
		// match the subprocess runner's deadline
		Timeout:        30 * time.Second,
		MaxOutputBytes: 1 << 20,
		PoolSize:       3,
	}
}
