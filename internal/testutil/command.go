package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// FakeCommand writes an executable /bin/sh script named name into a fresh
// temp dir and returns its path. body is the script without the shebang.
func FakeCommand(tb testing.TB, name, body string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		tb.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

// CountingSbatch returns a fake sbatch that assigns increasing job IDs
// starting at first and fails for scripts whose name contains failOn
// (empty to never fail). Each invocation appends the script path to the
// returned log file.
func CountingSbatch(tb testing.TB, first int, failOn string) (bin, log string) {
	tb.Helper()
	dir := tb.TempDir()
	log = filepath.Join(dir, "calls.log")
	counter := filepath.Join(dir, "counter")
	if err := os.WriteFile(counter, []byte("0"), 0o644); err != nil {
		tb.Fatalf("write counter: %v", err)
	}

	body := `for last; do :; done
echo "$last" >> '` + log + `'
n=$(cat '` + counter + `')
echo $((n + 1)) > '` + counter + `'
`
	if failOn != "" {
		body += `case "$last" in *'` + failOn + `'*) echo "sbatch: error: Batch job submission failed: Invalid account" >&2; exit 1;; esac
`
	}
	body += `echo "Submitted batch job $((n + ` + strconv.Itoa(first) + `))"`
	return FakeCommand(tb, "sbatch", body), log
}
