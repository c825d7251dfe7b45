package ocr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Settings select language data and tuning for an engine
type Settings struct {
	Language   string
	ConfigFile string
}

// Constructor builds an engine from settings
type Constructor func(Settings) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes an engine available by name. Engine packages call it from init.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = c
}

// Registered lists the known engine names
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the engine registered under name
func New(name string, s Settings) (Engine, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown OCR engine %q (registered: %s)", name, strings.Join(Registered(), ", "))
	}
	return c(s)
}
