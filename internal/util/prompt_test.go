package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPrompt(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		variables map[string]string
		want      string
	}{
		{
			name:      "substitutes placeholder",
			template:  "This is my new prompt with this {{variable}}",
			variables: map[string]string{"variable": "value"},
			want:      "This is my new prompt with this value",
		},
		{
			name:      "unresolved placeholder left verbatim",
			template:  "This is my new prompt with this {{variable}}",
			variables: map[string]string{"variableT": "value"},
			want:      "This is my new prompt with this {{variable}}",
		},
		{
			name:      "multiple placeholders",
			template:  "You are a {{role}}. Your task is {{task}}.",
			variables: map[string]string{"role": "test agent", "task": "to run tests"},
			want:      "You are a test agent. Your task is to run tests.",
		},
		{
			name:     "no placeholders",
			template: "static prompt",
			want:     "static prompt",
		},
		{
			name:      "repeated placeholder",
			template:  "{{x}} and {{x}}",
			variables: map[string]string{"x": "y"},
			want:      "y and y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderPrompt(tt.template, tt.variables))
		})
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36) // UUID length
	assert.NotEqual(t, id, NewID())
}
