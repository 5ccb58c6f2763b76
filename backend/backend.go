package backend

import (
	"maps"
	"slices"
	"sync"

	"github.com/c2fo/filestorage"
)

// registry maps a scheme to the storage serving it. Storage packages fill it from their init functions.
var registry = struct {
	sync.RWMutex
	storages map[string]filestorage.Storage
}{storages: make(map[string]filestorage.Storage)}

// Register makes storage available under scheme. A storage registered earlier under the same scheme is replaced,
// so a caller can swap the environment-configured default for a configured one.
func Register(scheme string, storage filestorage.Storage) {
	registry.Lock()
	defer registry.Unlock()
	registry.storages[scheme] = storage
}

// Unregister removes the storage registered under scheme, if any.
func Unregister(scheme string) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.storages, scheme)
}

// UnregisterAll empties the registry. Meant for tests.
func UnregisterAll() {
	registry.Lock()
	defer registry.Unlock()
	clear(registry.storages)
}

// Backend returns the storage registered under scheme, nil if there is none.
func Backend(scheme string) filestorage.Storage {
	registry.RLock()
	defer registry.RUnlock()
	return registry.storages[scheme]
}

// RegisteredBackends returns the registered schemes in sorted order.
func RegisteredBackends() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.storages))
}
