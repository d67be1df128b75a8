package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "auth.json", "-http", ":8081"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "auth.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=auth.json", "-grpc", ":9090"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=auth.json"},
		},
		{
			name:    "flag without value before another flag",
			args:    []string{"-c", "-secret", "x"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "nothing allowed matches",
			args:    []string{"-http", ":8081"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-c", "a.json", "-c", "b.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "a.json", "-c", "b.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/auth.json", ConfigPath([]string{"-c", "/etc/auth.json"}))
	assert.Equal(t, "/etc/auth.json", ConfigPath([]string{"-config=/etc/auth.json", "-http", ":1"}))
	assert.Equal(t, "b.json", ConfigPath([]string{"-c", "a.json", "-config", "b.json"}))
	assert.Empty(t, ConfigPath([]string{"-http", ":1"}))
}
