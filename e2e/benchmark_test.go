//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sbt/internal/job"
	"sbt/internal/pipeline"
	"strings"
	"testing"
)

// largeDoc expands to 10 * 10 * 10 = 1000 combinations.
func largeDoc(logdir string) string {
	axis := func(n int) string {
		values := make([]string, n)
		for i := range values {
			values[i] = fmt.Sprint(i)
		}
		return "[" + strings.Join(values, ", ") + "]"
	}
	return fmt.Sprintf(`
logdir = %q
template = "run --a {{ .a }} --b {{ .b }} --c {{ .c }} --seed {{ .seed }}"

[slurm_options]
time = { minutes = 30 }
array = { range = [1, 10], max_parallel = 2 }

[default_values]
seed = 7

[matrix]
a = %s
b = %s
c = %s
`, logdir, axis(10), axis(10), axis(10))
}

func BenchmarkGenerate(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, "large.toml")
	if err := os.WriteFile(path, []byte(largeDoc(filepath.Join(dir, "logs"))), 0o644); err != nil {
		b.Fatal(err)
	}
	cfg, err := job.Load(path)
	if err != nil {
		b.Fatal(err)
	}
	svc := pipeline.NewService(nil, pipeline.Config{NoSubmit: true}, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		artifacts, err := svc.Generate(context.Background(), cfg)
		if err != nil {
			b.Fatal(err)
		}
		if len(artifacts) != 1000 {
			b.Fatalf("Expected 1000 artifacts, got %d", len(artifacts))
		}
	}
}

func BenchmarkRender(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, "large.toml")
	if err := os.WriteFile(path, []byte(largeDoc(filepath.Join(dir, "logs"))), 0o644); err != nil {
		b.Fatal(err)
	}
	cfg, err := job.Load(path)
	if err != nil {
		b.Fatal(err)
	}
	svc := pipeline.NewService(nil, pipeline.Config{NoSubmit: true}, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Render(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}
