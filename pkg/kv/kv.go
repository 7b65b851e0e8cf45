// Package kv defines the key-value abstraction shared by the session table
// (per-upload progress bookkeeping) and the map table (file-parameters to
// upload-id binding used for resumable uploads), each served by one of two
// interchangeable backends selected by config.Config.KVMode.
package kv

import "context"

// Store is the contract both kv backends (embedded sqlite, remote redis)
// implement. The session table holds a small dictionary per key (the
// upload's progress fields); the map table holds a single string value per
// key (the upload id a set of file parameters resolves to).
type Store interface {
	// GetSession returns field of the dictionary stored at uploadID, or
	// "" if neither the key nor the field exists.
	GetSession(ctx context.Context, uploadID, field string) (string, error)
	// SetSession sets field of the dictionary stored at uploadID.
	SetSession(ctx context.Context, uploadID, field, val string) error
	// GetSessionDict returns the entire dictionary stored at uploadID.
	GetSessionDict(ctx context.Context, uploadID string) (map[string]string, error)
	// ClearSessionKey deletes the entire dictionary stored at uploadID.
	ClearSessionKey(ctx context.Context, uploadID string) (bool, error)
	// ClearSessionField deletes one field of the dictionary at uploadID.
	ClearSessionField(ctx context.Context, uploadID, field string) (bool, error)

	// GetMap returns the upload id bound to mapKey, or "" if unbound.
	GetMap(ctx context.Context, mapKey string) (string, error)
	// SetMap binds mapKey to uploadID.
	SetMap(ctx context.Context, mapKey, uploadID string) error
	// ClearMapKey unbinds mapKey.
	ClearMapKey(ctx context.Context, mapKey string) error
	// ClearMapVal unbinds whichever key is currently bound to uploadID.
	ClearMapVal(ctx context.Context, uploadID string) error

	// Close releases the backend's resources.
	Close() error
}
