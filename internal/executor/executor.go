// Package executor defines the contract for running untrusted code snippets.
//
// The package holds the request/result types, the failure taxonomy, and the
// language dispatch table. Implementations live in subpackages:
//
//   - subprocess: runs the snippet as a child process in a throwaway
//     workspace directory on the host (no OS-level sandboxing)
//   - docker: runs the snippet inside a pooled container (resource limits,
//     no network)
//
// Expected failures — unknown language, missing interpreter, timeout,
// non-zero exit — are all reported inside Result, never as a Go error.
// The error return from Execute is reserved for conditions the executor
// itself cannot recover from (e.g. the workspace root cannot be created)
// and for caller-side context cancellation.
package executor

import (
	"context"
	"time"
)

// Language identifies which interpreter runs the snippet.
// The set of valid values is the dispatch table in language.go.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangBash       Language = "bash"
)

// FailureKind is a closed tag describing why an execution did not succeed.
//
// A run that started, finished, and exited non-zero is NOT a failure kind —
// it is an ordinary result (Succeeded=false, FailureKind=FailureNone) with
// its output and exit code intact. The kinds below cover the cases where no
// meaningful program outcome exists.
type FailureKind string

const (
	// FailureNone: the program ran to completion (its exit code may still
	// be non-zero).
	FailureNone FailureKind = "none"

	// FailureUnsupportedLanguage: the requested language is not in the
	// dispatch table. No workspace is created, no process is spawned.
	FailureUnsupportedLanguage FailureKind = "unsupported_language"

	// FailureSpawn: the OS could not start the interpreter (binary missing
	// from PATH, permission denied). The OS error text is in Diagnostic.
	FailureSpawn FailureKind = "spawn_error"

	// FailureTimeout: the deadline elapsed and the process was killed.
	FailureTimeout FailureKind = "timeout"

	// FailureInternal: workspace setup broke after the language was
	// validated (mkdir or file write failed — e.g. disk full).
	FailureInternal FailureKind = "internal_error"
)

// Request describes one snippet to execute.
//
// Source is untrusted input. It is never parsed or interpreted by the
// executor itself — it is written to a file byte-for-byte (no re-encoding,
// no line-ending translation) and handed to the declared interpreter.
type Request struct {
	// Source is the program text, written to disk unmodified.
	Source string `json:"source"`

	// Language selects the interpreter via the dispatch table.
	Language Language `json:"language"`

	// Filename optionally names the source file inside the workspace.
	// Empty means "main" + the language's extension. Only the base name
	// is used — callers cannot point outside the workspace.
	Filename string `json:"filename,omitempty"`

	// CallerID is an opaque token used purely to namespace workspace
	// directories (root/<caller>/<run>). It carries no authorization
	// meaning and may be empty.
	CallerID string `json:"-"`
}

// Result is the structured outcome of one execution attempt.
//
// Invariant: Succeeded=true implies FailureKind=FailureNone and ExitCode=0;
// any non-none FailureKind implies Succeeded=false.
type Result struct {
	Succeeded bool `json:"succeeded"`

	// Stdout and Stderr are capped at the configured ceiling; bytes past
	// the cap were dropped at write time, not buffered.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// ExitCode is nil when no process produced an exit status (unsupported
	// language, spawn failure, killed on timeout).
	ExitCode *int `json:"exitCode,omitempty"`

	FailureKind FailureKind `json:"failureKind"`

	// Diagnostic holds executor-side error text (the OS spawn error, the
	// setup failure). It is distinct from Stderr, which only ever contains
	// bytes the child process wrote.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Duration is the wall-clock time of the attempt.
	Duration time.Duration `json:"duration"`
}

// Executor is the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}
