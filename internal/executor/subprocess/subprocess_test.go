package subprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahmid/codebench/internal/executor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRunner builds a Runner rooted in a per-test temp directory so tests
// can observe workspace creation and cleanup directly on the filesystem.
func newTestRunner(t *testing.T, mutate func(*Config)) (*Runner, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Root = filepath.Join(t.TempDir(), "workspaces")
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := New(cfg, testLogger())
	require.NoError(t, err)
	return r, cfg.Root
}

// skipUnlessAvailable skips the test when the language's interpreter is not
// installed on the host running the tests.
func skipUnlessAvailable(t *testing.T, lang executor.Language) {
	t.Helper()
	interp, ok := executor.Lookup(lang)
	require.True(t, ok)
	if !interp.Available() {
		t.Skipf("%s not installed, skipping", interp.Binary)
	}
}

// workspaceEntries returns how many execution directories currently exist
// under the root (recursively counting exec-* dirs).
func workspaceEntries(t *testing.T, root string) int {
	t.Helper()
	count := 0
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "exec-") {
			count++
		}
		return nil
	})
	return count
}

func TestExecute_SuccessPerLanguage(t *testing.T) {
	tests := []struct {
		lang   executor.Language
		source string
	}{
		{executor.LangPython, "print('hi')"},
		{executor.LangJavaScript, "console.log('hi')"},
		{executor.LangBash, "echo hi"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			skipUnlessAvailable(t, tt.lang)
			r, root := newTestRunner(t, nil)

			res, err := r.Execute(context.Background(), executor.Request{
				Source:   tt.source,
				Language: tt.lang,
			})
			require.NoError(t, err)

			assert.True(t, res.Succeeded)
			assert.Equal(t, executor.FailureNone, res.FailureKind)
			require.NotNil(t, res.ExitCode)
			assert.Equal(t, 0, *res.ExitCode)
			assert.Equal(t, "hi\n", res.Stdout)
			assert.Empty(t, res.Stderr)
			assert.Greater(t, res.Duration, time.Duration(0))

			// The workspace must be gone after the call returns.
			assert.Equal(t, 0, workspaceEntries(t, root))
		})
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	tests := []struct {
		lang   executor.Language
		source string
	}{
		{executor.LangPython, "import sys\nprint('before exit')\nsys.exit(3)"},
		{executor.LangJavaScript, "console.log('before exit'); process.exit(3)"},
		{executor.LangBash, "echo 'before exit'\nexit 3"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			skipUnlessAvailable(t, tt.lang)
			r, _ := newTestRunner(t, nil)

			res, err := r.Execute(context.Background(), executor.Request{
				Source:   tt.source,
				Language: tt.lang,
			})
			require.NoError(t, err)

			// Non-zero exit is a result state, not a failure kind.
			assert.False(t, res.Succeeded)
			assert.Equal(t, executor.FailureNone, res.FailureKind)
			require.NotNil(t, res.ExitCode)
			assert.Equal(t, 3, *res.ExitCode)
			assert.Contains(t, res.Stdout, "before exit")
		})
	}
}

func TestExecute_StderrCaptured(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, _ := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "import sys\nsys.stderr.write('warning: something\\n')",
		Language: executor.LangPython,
	})
	require.NoError(t, err)

	// Writing to stderr alone is not a failure.
	assert.True(t, res.Succeeded)
	assert.Equal(t, "warning: something\n", res.Stderr)
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	r, root := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "puts 'hi'",
		Language: "ruby",
	})
	require.NoError(t, err)

	assert.False(t, res.Succeeded)
	assert.Equal(t, executor.FailureUnsupportedLanguage, res.FailureKind)
	assert.Nil(t, res.ExitCode)

	// No side effects: the root must contain no workspace at all.
	entries, readErr := os.ReadDir(root)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestExecute_Timeout(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, root := newTestRunner(t, func(cfg *Config) {
		cfg.Timeout = 1 * time.Second
	})

	start := time.Now()
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "while True: pass",
		Language: executor.LangPython,
	})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.False(t, res.Succeeded)
	assert.Equal(t, executor.FailureTimeout, res.FailureKind)
	assert.Nil(t, res.ExitCode)
	// Deadline 1s + kill/reap overhead should stay well under 3s.
	assert.Less(t, elapsed, 3*time.Second)

	// The workspace must not survive a timeout.
	assert.Equal(t, 0, workspaceEntries(t, root))
}

func TestExecute_TimeoutPreservesPartialOutput(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, _ := newTestRunner(t, func(cfg *Config) {
		cfg.Timeout = 1 * time.Second
	})

	// Print, flush, then hang. The pre-timeout output must survive the kill.
	res, err := r.Execute(context.Background(), executor.Request{
		Source: strings.Join([]string{
			"import sys, time",
			"print('partial output')",
			"sys.stdout.flush()",
			"time.sleep(60)",
		}, "\n"),
		Language: executor.LangPython,
	})
	require.NoError(t, err)

	assert.Equal(t, executor.FailureTimeout, res.FailureKind)
	assert.Contains(t, res.Stdout, "partial output")
}

func TestExecute_TimeoutKillsProcessGroup(t *testing.T) {
	skipUnlessAvailable(t, executor.LangBash)
	r, root := newTestRunner(t, func(cfg *Config) {
		cfg.Timeout = 1 * time.Second
	})

	// The script forks a sleeping child; the group kill must take both down
	// without the call hanging on the grandchild.
	start := time.Now()
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "sleep 60 &\nsleep 60",
		Language: executor.LangBash,
	})
	require.NoError(t, err)

	assert.Equal(t, executor.FailureTimeout, res.FailureKind)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, workspaceEntries(t, root))
}

func TestExecute_OutputCapped(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	const capBytes = 4096
	r, _ := newTestRunner(t, func(cfg *Config) {
		cfg.MaxOutputBytes = capBytes
		cfg.Timeout = 10 * time.Second
	})

	// ~1 MB of output against a 4 KiB cap. The call must complete and the
	// captured stream must not exceed the ceiling.
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "print('x' * (1024 * 1024))",
		Language: executor.LangPython,
	})
	require.NoError(t, err)

	assert.True(t, res.Succeeded)
	assert.LessOrEqual(t, len(res.Stdout), capBytes)
	assert.Equal(t, strings.Repeat("x", capBytes), res.Stdout)
}

func TestExecute_BashExecutableBit(t *testing.T) {
	skipUnlessAvailable(t, executor.LangBash)
	r, _ := newTestRunner(t, nil)

	// Confirms the pre-spawn chmod path works end to end.
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "echo hi",
		Language: executor.LangBash,
	})
	require.NoError(t, err)

	assert.True(t, res.Succeeded)
	assert.Equal(t, "hi\n", res.Stdout)
}

func TestExecute_SourceWrittenVerbatim(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, _ := newTestRunner(t, nil)

	// CRLF line endings and non-ASCII text must reach the interpreter
	// untouched; the program proves it by measuring its own file.
	source := "with open('main.py', 'rb') as f:\r\n    print(len(f.read()))\r\n"
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   source,
		Language: executor.LangPython,
	})
	require.NoError(t, err)

	require.True(t, res.Succeeded, "stderr: %s", res.Stderr)
	assert.Equal(t, fmt.Sprintf("%d\n", len(source)), res.Stdout)
}

func TestExecute_ConcurrentRunsAreIndependent(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, _ := newTestRunner(t, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*executor.Result, n)
	errs := make([]error, n)

	// Identical source and language on purpose: each call must still get
	// its own workspace and its own process.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Execute(context.Background(), executor.Request{
				Source:   "print('hi')",
				Language: executor.LangPython,
				CallerID: "user-42",
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Succeeded, "run %d failed: %+v", i, results[i])
		assert.Equal(t, "hi\n", results[i].Stdout)
	}
}

func TestExecute_CallerIDNamespacesWorkspace(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, root := newTestRunner(t, nil)

	// The running program reports its own working directory so we can
	// verify the namespacing without racing the cleanup.
	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "import os\nprint(os.getcwd())",
		Language: executor.LangPython,
		CallerID: "caller-abc",
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	cwd := strings.TrimSpace(res.Stdout)
	assert.Contains(t, cwd, filepath.Join(root, "caller-abc")+string(filepath.Separator))
	assert.Contains(t, filepath.Base(cwd), "exec-")
}

func TestExecute_CallerIDCannotEscapeRoot(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, root := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "import os\nprint(os.getcwd())",
		Language: executor.LangPython,
		CallerID: "../../evil",
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	// Path separators and dots are stripped, so the workspace stays under
	// the configured root.
	cwd := strings.TrimSpace(res.Stdout)
	assert.True(t, strings.HasPrefix(cwd, root+string(filepath.Separator)),
		"workspace %q escaped root %q", cwd, root)
}

func TestExecute_CustomFilename(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, _ := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), executor.Request{
		Source:   "import sys\nprint(sys.argv[0])",
		Language: executor.LangPython,
		Filename: "script.py",
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	assert.Equal(t, "script.py\n", res.Stdout)
}

func TestExecute_ContextCancellation(t *testing.T) {
	skipUnlessAvailable(t, executor.LangPython)
	r, root := newTestRunner(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Execute(ctx, executor.Request{
		Source:   "import time\ntime.sleep(60)",
		Language: executor.LangPython,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, workspaceEntries(t, root))
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Root = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero output cap", func(c *Config) { c.MaxOutputBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, testLogger())
			assert.Error(t, err)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	py, _ := executor.Lookup(executor.LangPython)

	tests := []struct {
		in   string
		want string
	}{
		{"", "main.py"},
		{"  ", "main.py"},
		{"script.py", "script.py"},
		{"script", "script.py"},
		{"../../etc/passwd", "passwd.py"},
		{"/abs/path/run.py", "run.py"},
		{".hidden", "main.py"},
		{"..", "main.py"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in, py))
		})
	}
}
