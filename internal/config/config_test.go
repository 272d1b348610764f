// Package config_test tests the configuration loading for kokoro-studio.
package config_test

import (
	"testing"

	"github.com/book-expert/kokoro-studio/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[paths]
model_dir = "/srv/kokoro/model"
base_logs_dir = "/var/log/kokoro-studio"

[server]
host = "0.0.0.0"
port = 9000

[provision]
max_retries = 5
retry_backoff_seconds = 1
model_sha256 = "deadbeef"

[synthesis]
onnx_runtime_lib_path = "/usr/lib/libonnxruntime.so"
min_speed = 0.25
max_speed = 3.0
timeout_seconds = 60
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "/srv/kokoro/model", cfg.Paths.ModelDir)
	assert.Equal(t, "/var/log/kokoro-studio", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Provision.MaxRetries)
	assert.Equal(t, 1, cfg.Provision.RetryBackoffSeconds)
	assert.Equal(t, "deadbeef", cfg.Provision.ModelSHA256)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.Synthesis.OnnxRuntimeLibPath)
	assert.InEpsilon(t, 0.25, cfg.Synthesis.MinSpeed, 0.001)
	assert.InEpsilon(t, 3.0, cfg.Synthesis.MaxSpeed, 0.001)
	assert.Equal(t, 60, cfg.Synthesis.TimeoutSeconds)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, config.DefaultModelDir, cfg.Paths.ModelDir)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Provision.MaxRetries)
	assert.InEpsilon(t, config.DefaultMinSpeed, cfg.Synthesis.MinSpeed, 0.001)
	assert.InEpsilon(t, config.DefaultMaxSpeed, cfg.Synthesis.MaxSpeed, 0.001)
	assert.Equal(t, "127.0.0.1:8880", cfg.ListenAddr())
}
