package artifact

import (
	"log/slog"
	"os"
	"path/filepath"
	"sbt/internal/apperrors"

	"github.com/dustin/go-humanize"
)

// Extension of job script files.
const Extension = ".sh"

// Writer places job scripts in a log directory. Existing files are
// overwritten so reruns converge on the same tree.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer for dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:    dir,
		logger: slog.With("component", "artifact", "logdir", dir),
	}
}

// Dir returns the log directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the script path for a job name.
func (w *Writer) Path(jobName string) string {
	return filepath.Join(w.dir, jobName+Extension)
}

// Write renders the script and stores it as <dir>/<jobName>.sh.
func (w *Writer) Write(index int, jobName string, values map[string]any, script Script) (*Artifact, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, apperrors.Write("create directory", w.dir, err)
	}

	path := w.Path(jobName)
	content := script.String()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, apperrors.Write("write file", path, err)
	}

	w.logger.Debug("Wrote job script", "index", index, "job", jobName, "path", path, "size", humanize.Bytes(uint64(len(content))))
	return &Artifact{
		Index:   index,
		JobName: jobName,
		Path:    path,
		Values:  values,
		Size:    len(content),
	}, nil
}
