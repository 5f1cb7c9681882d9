package config

import (
	"fmt"
	"log"
	"net"
	"strings"
)

const defaultPProfAddr = "localhost:6060"

// PProfConfig exposes net/http/pprof on a separate listener, off by default.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// String returns a string representation of the pprof configuration.
func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if c.Enabled {
		b.WriteString(fmt.Sprintf("  address: %s\n", c.Addr))
	}
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		log.Println("Using default value for pprof.addr")
		c.Addr = defaultPProfAddr
	}
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("invalid pprof address %q: %w", c.Addr, err)
	}
	if port == "" {
		return fmt.Errorf("pprof address %q has no port", c.Addr)
	}
	return nil
}
