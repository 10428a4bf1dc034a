package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TagEvent(t *testing.T) {
	payload := `{"kind":"tag","ref":"refs/tags/v1.2.3"}`

	ev, err := Decode(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, KindTag, ev.Kind)
	assert.True(t, ev.IsTag())
	assert.Equal(t, "v1.2.3", ev.RefName())
}

func TestDecode_WorkflowRunEvent(t *testing.T) {
	payload := `{"kind":"workflow_run","source_name":"ci","conclusion":"success","source_branch":"main"}`

	ev, err := Decode(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, KindWorkflowRun, ev.Kind)
	assert.Equal(t, ConclusionSuccess, ev.Conclusion)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unknown kind", `{"kind":"comment"}`},
		{"push without ref", `{"kind":"push"}`},
		{"workflow_run without source", `{"kind":"workflow_run","conclusion":"success"}`},
		{"workflow_run with unknown conclusion", `{"kind":"workflow_run","source_name":"ci","conclusion":"timed_out"}`},
		{"unknown field", `{"kind":"push","ref":"refs/heads/main","color":"red"}`},
		{"not json", `kind: push`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestRefName(t *testing.T) {
	assert.Equal(t, "main", (&Event{Kind: KindPush, Ref: "refs/heads/main"}).RefName())
	assert.Equal(t, "v1.0.0", (&Event{Kind: KindTag, Ref: "refs/tags/v1.0.0"}).RefName())
	assert.Equal(t, "v1.0.0", (&Event{Kind: KindTag, Ref: "v1.0.0"}).RefName())
}
