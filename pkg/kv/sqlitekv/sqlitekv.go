// Package sqlitekv implements the kv.Store contract on top of an embedded
// SQLite database file, the default backend for a single-node deployment.
package sqlitekv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/kv/registry"
)

func init() {
	registry.Register("sqlite", New)
}

type store struct {
	db           *sql.DB
	sessionTable string
	mapTable     string
	// sqlite serializes writers at the file level; a single logical
	// connection avoids "database is locked" churn under concurrent chunk
	// uploads.
	mu sync.Mutex
}

// New opens (creating if necessary) the sqlite database at
// cfg.KVFilePath and ensures the session and map tables exist.
func New(cfg *config.Config) (kv.Store, error) {
	db, err := sql.Open("sqlite3", cfg.KVFilePath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &store{db: db, sessionTable: cfg.KVSessionTableName, mapTable: cfg.KVMapTableName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) createTables() error {
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, val TEXT)", quoteIdent(s.sessionTable)),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, val TEXT)", quoteIdent(s.mapTable)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// quoteIdent wraps a table name configured by a trusted operator (not
// user input) in double quotes so it can be safely interpolated into DDL,
// which database/sql cannot parameterize.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

func (s *store) getDict(ctx context.Context, table, key string) (map[string]string, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT val FROM %s WHERE key = ?", quoteIdent(table)), key)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return map[string]string{}, nil
		}
		return nil, err
	}
	dict := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

func (s *store) putDict(ctx context.Context, table, key string, dict map[string]string) error {
	raw, err := json.Marshal(dict)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (key, val) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET val = excluded.val", quoteIdent(table)),
		key, string(raw))
	return err
}

func (s *store) GetSession(ctx context.Context, uploadID, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dict, err := s.getDict(ctx, s.sessionTable, uploadID)
	if err != nil {
		return "", err
	}
	return dict[field], nil
}

func (s *store) SetSession(ctx context.Context, uploadID, field, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dict, err := s.getDict(ctx, s.sessionTable, uploadID)
	if err != nil {
		return err
	}
	dict[field] = val
	return s.putDict(ctx, s.sessionTable, uploadID, dict)
}

func (s *store) GetSessionDict(ctx context.Context, uploadID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDict(ctx, s.sessionTable, uploadID)
}

func (s *store) ClearSessionKey(ctx context.Context, uploadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = ?", quoteIdent(s.sessionTable)), uploadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *store) ClearSessionField(ctx context.Context, uploadID, field string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dict, err := s.getDict(ctx, s.sessionTable, uploadID)
	if err != nil {
		return false, err
	}
	if _, ok := dict[field]; !ok {
		return false, nil
	}
	delete(dict, field)
	return true, s.putDict(ctx, s.sessionTable, uploadID, dict)
}

func (s *store) GetMap(ctx context.Context, mapKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var val string
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT val FROM %s WHERE key = ?", quoteIdent(s.mapTable)), mapKey)
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (s *store) SetMap(ctx context.Context, mapKey, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (key, val) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET val = excluded.val", quoteIdent(s.mapTable)),
		mapKey, uploadID)
	return err
}

func (s *store) ClearMapKey(ctx context.Context, mapKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = ?", quoteIdent(s.mapTable)), mapKey)
	return err
}

func (s *store) ClearMapVal(ctx context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE val = ?", quoteIdent(s.mapTable)), uploadID)
	return err
}

func (s *store) Close() error {
	return s.db.Close()
}
