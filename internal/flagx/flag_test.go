package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	serverFlags := []string{"-a", "-d", "-l"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate values", []string{"-a", ":8080", "-c", "cfg.json", "-l", "debug"}, serverFlags, []string{"-a", ":8080", "-l", "debug"}},
		{"equals form", []string{"-d=memory://", "-c=cfg.json"}, serverFlags, []string{"-d=memory://"}},
		{"value may contain dashes after equals", []string{"-config=--odd.json"}, []string{"-config"}, []string{"-config=--odd.json"}},
		{"trailing flag without value", []string{"-x", "1", "-l"}, serverFlags, []string{"-l"}},
		{"dash token is not consumed as value", []string{"-a", "-l", "info"}, serverFlags, []string{"-a", "-l", "info"}},
		{"repeated flags keep order", []string{"-l", "info", "-l", "debug"}, serverFlags, []string{"-l", "info", "-l", "debug"}},
		{"nothing allowed present", []string{"-env", "x.env", "positional"}, serverFlags, []string{}},
		{"no args", nil, serverFlags, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"server", "-a", ":9090", "-c", "/etc/credkeeper/short.json"}
	assert.Equal(t, "/etc/credkeeper/short.json", JsonConfigFlags())

	os.Args = []string{"server", "-config=/etc/credkeeper/long.json"}
	assert.Equal(t, "/etc/credkeeper/long.json", JsonConfigFlags())

	os.Args = []string{"server", "-c", "first.json", "-config", "second.json"}
	assert.Equal(t, "second.json", JsonConfigFlags())

	os.Args = []string{"server", "-l", "debug"}
	assert.Empty(t, JsonConfigFlags())
}

func TestEnvFileFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"server", "-a", ":8080", "-env", "/etc/credkeeper.env"}
	assert.Equal(t, "/etc/credkeeper.env", EnvFileFlags())

	os.Args = []string{"server", "-c", "cfg.json"}
	assert.Empty(t, EnvFileFlags())
}
