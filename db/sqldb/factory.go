package sqldb

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ClientFactory is a callback that constructs a Client from Conf.
// It is registered with RegisterFactory and called by sqldb.New.
type ClientFactory func(conf *Conf) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ClientFactory{}
)

func RegisterFactory(dbType string, factory ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dbType] = factory
}

// Types lists the registered database types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func New(dbType string, conf *Conf) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[dbType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database type %q (registered: %s)", dbType, strings.Join(Types(), ", "))
	}
	return factory(conf)
}
