package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/inventory-console/pkg/config"
	"github.com/abgdnv/inventory-console/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	API        config.APIConfig        `koanf:"api"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Session    config.SessionConfig    `koanf:"session"`
	Database   config.DatabaseConfig   `koanf:"database"`
	NATS       config.NATSConfig       `koanf:"nats"`
}

// Defaults are the lowest-priority configuration values, overridden by config.yaml and CONSOLE_* variables.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                                   8080,
		"server.maxHeaderBytes":                         1 << 20,
		"server.timeout.read":                           "15s",
		"server.timeout.write":                          "60s",
		"server.timeout.idle":                           "60s",
		"server.timeout.readHeader":                     "5s",
		"log.level":                                     "info",
		"pprof.enabled":                                 false,
		"pprof.addr":                                    "localhost:6060",
		"shutdown.timeout":                              "10s",
		"api.timeout":                                   "30s",
		"resilience.circuitbreaker.consecutivefailures": 5,
		"resilience.circuitbreaker.errorratepercent":    50,
		"resilience.circuitbreaker.opentimeout":         "30s",
		"session.store":                                 config.TokenStoreFile,
		"database.timeout":                              "5s",
		"nats.timeout":                                  "5s",
	}
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.API.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Session.String())
	if c.Session.Store == config.TokenStorePostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.NATS.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Resilience.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.Session.Store == config.TokenStorePostgres {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if err := c.NATS.Validate(); err != nil {
		return err
	}
	// the last catalog change is still published while workspaces close
	if c.NATS.Enabled && !c.Shutdown.Covers(c.NATS.Timeout) {
		return fmt.Errorf("shutdown timeout %s is shorter than the NATS publish timeout %s", c.Shutdown.Timeout, c.NATS.Timeout)
	}
	return nil
}
