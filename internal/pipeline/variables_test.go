package pipeline

import (
	"sbt/internal/apperrors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want VariableUsage
	}{
		{
			name: "all used",
			doc:  sweepDoc,
			want: VariableUsage{},
		},
		{
			name: "missing and unused",
			doc: `
name = "grid"
logdir = "logs"
template = "run --lr {{ .lr }} --seed {{ .seed }} > {{ .SBT_LOGFILE_NAME }}.log"

[default_values]
epochs = 3
debug = false

[matrix]
lr = [0.1]
`,
			want: VariableUsage{Missing: []string{"seed"}, Unused: []string{"debug", "epochs"}},
		},
		{
			name: "option values count as used",
			doc: `
name = "grid"
logdir = "logs"
template = "run --lr {{ .lr }}"

[slurm_options]
account = "{{ .project }}"
mem = "{{ .mem }}"

[default_values]
project = "physics"

[matrix]
lr = [0.1]
`,
			want: VariableUsage{Missing: []string{"mem"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Variables(loadDoc(t, tt.doc))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Variables() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVariables_ParseError(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, `
name = "grid"
logdir = "logs"
template = "run {{ .lr "

[matrix]
lr = [0.1]
`)

	_, err := Variables(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRender)
}
