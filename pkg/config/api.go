package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultMaxUploadBytes = 32 << 20

// APIConfig describes the remote catalog API the console talks to.
type APIConfig struct {
	BaseURL        string        `koanf:"baseurl"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxUploadBytes int64         `koanf:"maxuploadbytes"`
}

// String returns a string representation of the APIConfig.
func (c *APIConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Remote API ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  maxuploadbytes: %d\n", c.MaxUploadBytes))
	return b.String()
}

func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API base URL must be absolute: %s", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("API timeout must be greater than zero")
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	return nil
}
