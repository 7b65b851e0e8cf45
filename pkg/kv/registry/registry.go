// Package registry holds the driver registry for kv.Store backends,
// populated by each backend package's init function.
package registry

import (
	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/kv"
)

// NewFunc is the function kv backend implementations register at init time.
type NewFunc func(cfg *config.Config) (kv.Store, error)

// NewFuncs is a map containing all the registered kv backend constructors,
// keyed by config.Config.KVMode value ("sqlite", "redis").
var NewFuncs = map[string]NewFunc{}

// Register registers a new kv backend constructor. Not safe for concurrent
// use. Safe for use from package init.
func Register(name string, f NewFunc) {
	NewFuncs[name] = f
}
