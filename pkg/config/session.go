package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"

	defaultCookieName = "console_session"
	defaultIdleTTL    = 30 * time.Minute
	defaultTokenFile  = "tokens.json"
)

// SessionConfig controls browser sessions and where their bearer tokens are persisted.
type SessionConfig struct {
	CookieName string        `koanf:"cookiename"`
	Secure     bool          `koanf:"secure"`
	IdleTTL    time.Duration `koanf:"idlettl"`
	Store      string        `koanf:"store"`
	File       string        `koanf:"file"`
}

// String returns a string representation of the SessionConfig.
func (c *SessionConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Session ---\n")
	b.WriteString(fmt.Sprintf("  cookiename: %s\n", c.CookieName))
	b.WriteString(fmt.Sprintf("  secure: %t\n", c.Secure))
	b.WriteString(fmt.Sprintf("  idlettl: %s\n", c.IdleTTL))
	b.WriteString(fmt.Sprintf("  store: %s\n", c.Store))
	b.WriteString(fmt.Sprintf("  file: %s\n", c.File))
	return b.String()
}

func (c *SessionConfig) Validate() error {
	if c.CookieName == "" {
		log.Println("Using default value for session.cookiename")
		c.CookieName = defaultCookieName
	}
	if c.IdleTTL <= 0 {
		log.Println("Using default value for session.idlettl")
		c.IdleTTL = defaultIdleTTL
	}
	switch c.Store {
	case "":
		c.Store = TokenStoreFile
	case TokenStoreFile, TokenStorePostgres:
	default:
		return fmt.Errorf("unknown session token store: %s", c.Store)
	}
	if c.Store == TokenStoreFile && c.File == "" {
		log.Println("Using default value for session.file")
		c.File = defaultTokenFile
	}
	return nil
}
