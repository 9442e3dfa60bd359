package datasource

import (
	"sort"
	"sync"
)

// DatasourceAdapterInfo describes a registered driver adapter.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "MySQL", "PostgreSQL"
	Description string `json:"description"`  // "Connect to MySQL 5.7+, MariaDB"
	DefaultPort int    `json:"default_port"`
}

// DatasourceAdapterRegistration pairs adapter info with the Connector that opens sessions.
type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Connect Connector
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetConnector returns the connector for a datasource type.
// Returns nil if type is not registered.
func GetConnector(dsType string) Connector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Connect
	}
	return nil
}

// GetAdapterInfo returns the info of a registered adapter.
func GetAdapterInfo(dsType string) (DatasourceAdapterInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[dsType]
	return reg.Info, ok
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
