package docker

import (
	"sbt/internal/config"
)

// Config holds configuration for the docker scheduler.
type Config struct {
	Image      string   // Image the scripts run in
	CPU        float64  // CPU limit in cores (0 for no limit)
	Memory     int64    // Memory limit in bytes (0 for no limit)
	ExtraHosts []string // Extra hosts for containers (e.g., ["db.local:host-gateway"])
}

// LoadConfigFromEnv loads docker scheduler configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Image:      config.GetEnv("SBT_DOCKER_IMAGE", "ubuntu:24.04"),
		CPU:        config.GetFloatEnv("SBT_DOCKER_CPUS", 0),
		Memory:     config.GetSizeEnv("SBT_DOCKER_MEMORY", 0),
		ExtraHosts: config.GetListEnv("SBT_DOCKER_EXTRA_HOSTS"),
	}
}
