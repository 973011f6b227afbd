package executor

import "os/exec"

// Interpreter describes how to invoke one language's runtime on a source
// file. Adding a language means adding one table row below — no control
// flow elsewhere branches on the language.
type Interpreter struct {
	// DisplayName is the human-readable name ("Python", not "python").
	DisplayName string

	// Binary is the interpreter executable, resolved against PATH.
	Binary string

	// Extension is the source file suffix, including the dot.
	Extension string

	// InlineFlag is the interpreter flag that takes program text as an
	// argument instead of a file ("-c", "-e"). Used by the docker executor,
	// which passes the source inline rather than materializing a file in
	// the container.
	InlineFlag string

	// MarkExecutable requests chmod +x on the source file before spawning.
	// bash refuses scripts in some configurations without it, and it is a
	// historically easy step to forget — so it is data, not code.
	MarkExecutable bool
}

// DefaultFilename returns the workspace filename used when the request does
// not name one, e.g. "main.py".
func (i Interpreter) DefaultFilename() string {
	return "main" + i.Extension
}

// Available reports whether the interpreter binary can be found on PATH.
// Used both for fail-fast spawn diagnostics and the /api/languages probe.
func (i Interpreter) Available() bool {
	_, err := exec.LookPath(i.Binary)
	return err == nil
}

// interpreters is the fixed dispatch table. The map is never mutated after
// init, so concurrent reads from many executions are safe.
var interpreters = map[Language]Interpreter{
	LangPython: {
		DisplayName: "Python",
		Binary:      "python3",
		Extension:   ".py",
		InlineFlag:  "-c",
	},
	LangJavaScript: {
		DisplayName: "JavaScript",
		Binary:      "node",
		Extension:   ".js",
		InlineFlag:  "-e",
	},
	LangBash: {
		DisplayName:    "Bash",
		Binary:         "bash",
		Extension:      ".sh",
		InlineFlag:     "-c",
		MarkExecutable: true,
	},
}

// Lookup returns the interpreter descriptor for a language.
// ok=false means the language is not supported — callers must not spawn
// anything in that case.
func Lookup(lang Language) (Interpreter, bool) {
	i, ok := interpreters[lang]
	return i, ok
}

// Supported returns the supported language keys in a stable order.
func Supported() []Language {
	return []Language{LangPython, LangJavaScript, LangBash}
}
