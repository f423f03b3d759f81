package artifact

import (
	"sbt/internal/options"
	"sbt/internal/shell"
	"strings"
)

// DefaultShebang is used when the job document does not set one.
const DefaultShebang = "#!/bin/bash -l"

// EnvVar is an exported environment variable.
type EnvVar struct {
	Name  string
	Value string
}

// Script is the full content of a job file.
type Script struct {
	Shebang string
	Options options.Set
	Env     []EnvVar
	Body    string
}

// String renders the shebang, directive header, exports and body in that
// order. The result always ends with a newline.
func (s Script) String() string {
	var b strings.Builder

	shebang := s.Shebang
	if shebang == "" {
		shebang = DefaultShebang
	}
	b.WriteString(shebang)
	b.WriteByte('\n')

	for _, line := range s.Options.Header() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, e := range s.Env {
		b.WriteString("export ")
		b.WriteString(e.Name)
		b.WriteByte('=')
		b.WriteString(shell.Quote(e.Value))
		b.WriteByte('\n')
	}

	b.WriteString(s.Body)
	if !strings.HasSuffix(s.Body, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}
