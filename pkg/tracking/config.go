package tracking

import (
	"fmt"
	"log"
	"sync"
)

type ConfigEntry struct {
	Key   string
	Value string
}

// Config is an ordered set of key-value recorded on a Session.
//
// Entries are put on every logged artifact as "config.KEY:VALUE" tags.
type Config struct {
	mu      sync.Mutex
	logger  *log.Logger
	entries []ConfigEntry
}

func newConfig(l *log.Logger) *Config {
	return &Config{logger: l}
}

// Set records a config entry. Setting existing key overwrites its value in place.
//
// value is formatted with fmt.Sprint.
func (c *Config) Set(key string, value any) {
	v := fmt.Sprint(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Printf("config: %s = %s", key, v)
	for i := range c.entries {
		if c.entries[i].Key == key {
			c.entries[i].Value = v
			return
		}
	}
	c.entries = append(c.entries, ConfigEntry{Key: key, Value: v})
}

func (c *Config) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (c *Config) Entries() []ConfigEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConfigEntry{}, c.entries...)
}
