package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	d := viper.New()
	setDefaults(d)

	assert.Equal(t, "camerad", d.GetString("vipc.bus_name"))
	assert.Equal(t, "127.0.0.1:8765", d.GetString("vipc.listen_addr"))
	assert.Equal(t, 20, d.GetInt("replay.fps"))
	assert.False(t, d.GetBool("replay.loop"))
	assert.Empty(t, d.GetString("telemetry.otlp_endpoint"))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CAMSERVE_BUS_NAME", "replaybus")
	t.Setenv("CAMSERVE_FPS", "0")

	assert.Equal(t, "replaybus", GetBusName())
	assert.Equal(t, 20, GetReplayFPS(), "non-positive rate falls back to the default")
}

func TestNoConfigFile(t *testing.T) {
	assert.Empty(t, ConfigFileUsed(), "no config.yaml next to the tests")
}
