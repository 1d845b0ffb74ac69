package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "AUDITSHIP_"

// ApplyEnvConfig applies configuration from environment variables (AUDITSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setListFromString("collectors", env("COLLECTORS"), &cfg.Collectors)
	s.setString("file-path", env("FILE_PATH"), &cfg.FilePath)
	s.setString("disaster-file", env("DISASTER_FILE"), &cfg.DisasterFile)
	s.setString("ip", env("IP"), &cfg.IP)
	s.setString("docker-id", env("DOCKER_ID"), &cfg.DockerID)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("input", env("INPUT"), &cfg.Input)

	if err := s.setChannelsFromString("max-channels", env("MAX_CONNECT_CHANNELS"), &cfg.MaxConnectChannels); err != nil {
		return err
	}
	if err := s.setIntFromString("max-cache-rows", env("MAX_CACHE_ROWS"), &cfg.MaxCacheRows); err != nil {
		return err
	}
	if err := s.setInt64FromString("max-file-size", env("MAX_FILE_SIZE"), &cfg.MaxFileSize); err != nil {
		return err
	}

	if err := s.setDuration("clear-interval", env("CLEAR_INTERVAL"), &cfg.ClearInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", env("WRITE_TIMEOUT"), &cfg.WriteTimeout); err != nil {
		return err
	}

	s.setBoolFromString("once", env("ONCE"), &cfg.Once)

	return nil
}
