package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("vipc.bus_name", "CAMSERVE_BUS_NAME")
	v.BindEnv("vipc.listen_addr", "CAMSERVE_LISTEN_ADDR")
	v.BindEnv("replay.fps", "CAMSERVE_FPS")
	v.BindEnv("replay.loop", "CAMSERVE_LOOP")
	v.BindEnv("telemetry.otlp_endpoint", "CAMSERVE_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, "camserve"),
		"/etc/camserve",
	}
	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vipc.bus_name", "camerad")
	v.SetDefault("vipc.listen_addr", "127.0.0.1:8765")
	v.SetDefault("replay.fps", 20)
	v.SetDefault("replay.loop", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// GetBusName returns the video bus name frames are published on
func GetBusName() string {
	return v.GetString("vipc.bus_name")
}

// GetListenAddr returns the address downstream viewers attach to. Empty
// disables the listener.
func GetListenAddr() string {
	return v.GetString("vipc.listen_addr")
}

// GetReplayFPS returns the replay rate in frames per second
func GetReplayFPS() int {
	if fps := v.GetInt("replay.fps"); fps > 0 {
		return fps
	}
	return 20
}

// GetReplayLoop reports whether replay restarts at the end of the input
func GetReplayLoop() bool {
	return v.GetBool("replay.loop")
}

// GetOTLPEndpoint returns the OTLP gRPC collector endpoint, or "" when
// telemetry export is disabled
func GetOTLPEndpoint() string {
	return v.GetString("telemetry.otlp_endpoint")
}

// ConfigFileUsed returns the path of the loaded config file, if any
func ConfigFileUsed() string {
	return v.ConfigFileUsed()
}
