package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_EXPAND_VAR", "actual")
	defer os.Unsetenv("TEST_EXPAND_VAR")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "value: ${TEST_EXPAND_VAR}", "value: actual"},
		{"set variable ignores default", "value: ${TEST_EXPAND_VAR:fallback}", "value: actual"},
		{"unset with default", "value: ${TEST_MISSING_VAR:fallback}", "value: fallback"},
		{"unset with empty default", "value: ${TEST_MISSING_VAR:}", "value: "},
		{"unset without default keeps placeholder", "value: ${TEST_MISSING_VAR}", "value: ${TEST_MISSING_VAR}"},
		{"plain text untouched", "value: plain", "value: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.in))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir+"/configs", 0o755))
	require.NoError(t, os.WriteFile(dir+"/configs/config.yaml", []byte("app:\n  name: test-app\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-app", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 1, cfg.Generation.MinChapters)
	assert.Equal(t, 10, cfg.Generation.MaxChapters)
	assert.Equal(t, 3, cfg.Generation.DefaultChapterCount)
	assert.Equal(t, 5, cfg.Generation.MaxSectionsPerChapter)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir+"/configs", 0o755))
	require.NoError(t, os.WriteFile(dir+"/configs/config.yaml", []byte("server:\n  http:\n    port: ${HTTP_PORT:9090}\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.HTTP.Port)
}
