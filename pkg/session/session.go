// Package session tracks one resumable upload across the chunks it
// arrives in. Each chunk request is handled statelessly by its own
// goroutine; Manager ties those requests back together through the kv
// session table (per-upload progress), the kv map table (file
// parameters to upload id, so a client retrying without its upload id
// still resumes the right upload), and a placeholder file under
// SESSION_DIR_PATH that the sweeper uses to find and expire abandoned
// uploads.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/path"
)

// Manager mediates one upload's session bookkeeping. A Manager is cheap
// to construct and is created fresh for every chunk request.
type Manager struct {
	UploadID string

	cfg *config.Config
	kv  kv.Store
	res *path.Resolver
}

// New returns a Manager for uploadID (which may be empty until Open
// assigns one).
func New(cfg *config.Config, store kv.Store, uploadID string) *Manager {
	return &Manager{UploadID: uploadID, cfg: cfg, kv: store, res: path.NewResolver(cfg)}
}

// Open assigns m.UploadID: if resumable is set it first looks for an
// upload id already bound to this file's coordinates (a client retrying
// a broken connection without caching its upload id), falling back to a
// freshly minted id.
func (m *Manager) Open(ctx context.Context, resumable bool, repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string) error {
	if resumable {
		uploadID, err := m.ResumedUpload(ctx, repositoryType, depID, contentType, milestone, partNumber, contentFormat, version)
		if err != nil {
			return err
		}
		if uploadID != "" {
			m.UploadID = uploadID
		}
	}
	if m.UploadID == "" {
		m.UploadID = NewUploadID()
	}
	return nil
}

// NewUploadID mints a fresh upload id.
func NewUploadID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ResumedUpload returns the upload id already bound to these file
// coordinates in the map table, or "" if none is bound.
func (m *Manager) ResumedUpload(ctx context.Context, repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string) (string, error) {
	mapKey, err := m.PrimaryMapKey(repositoryType, depID, contentType, milestone, partNumber, contentFormat, version)
	if err != nil {
		return "", err
	}
	return m.kv.GetMap(ctx, mapKey)
}

// PrimaryMapKey derives the map-table key for a set of file coordinates:
// "repositoryType_" followed by the basename of the versioned path those
// coordinates resolve to.
func (m *Manager) PrimaryMapKey(repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string) (string, error) {
	versioned, err := m.res.VersionedPath(repositoryType, depID, contentType, milestone, partNumber, contentFormat, version)
	if err != nil {
		return "", err
	}
	return PreparedMapKey(repositoryType, versioned), nil
}

// PreparedMapKey derives a map-table key from a repositoryType and a
// versioned path already resolved elsewhere.
func PreparedMapKey(repositoryType, versionedPath string) string {
	return repositoryType + "_" + filepath.Base(versionedPath)
}

// TempFilePath returns the in-progress accumulation file's path inside
// dirPath for this upload (or for uploadID, if given).
func (m *Manager) TempFilePath(dirPath, uploadID string) string {
	if uploadID == "" {
		uploadID = m.UploadID
	}
	return filepath.Join(dirPath, "._"+uploadID)
}

// SaveFilePath resolves the final, repository-relative path an upload's
// content type/format/milestone/version/part coordinates write to, after
// checking the format is valid for the content type and that an existing
// file isn't clobbered unless allowOverwrite is set. The returned path is
// relative to RepositoryDirPath so it's safe to hand back to a client.
func (m *Manager) SaveFilePath(repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string, allowOverwrite bool) (string, error) {
	if !config.CheckContentTypeFormat(contentType, contentFormat) {
		return "", errtypes.BadRequest("bad content type and/or format")
	}
	outPath, err := m.res.VersionedPath(repositoryType, depID, contentType, milestone, partNumber, contentFormat, version)
	if err != nil {
		return "", err
	}
	if path.Exists(outPath) && !allowOverwrite {
		return "", errtypes.Forbidden("encountered existing file - overwrite prohibited")
	}
	rel, err := filepath.Rel(m.cfg.RepositoryDirPath, outPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errtypes.PathError("could not form relative path for " + outPath)
	}
	return rel, nil
}

// Close removes tempPath and its placeholder file, and, if resumable, the
// matching kv session/map entries.
func (m *Manager) Close(ctx context.Context, tempPath string, resumable bool, mapKey string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.RemovePlaceholderFile(tempPath)
	if !resumable {
		return nil
	}
	return m.ClearSession(ctx, mapKey, m.UploadID)
}

// UploadCount returns how many chunks have landed so far, computed from
// the accumulated temp file's size divided by the session's recorded
// chunk size; it returns 0 if no session or temp file exists yet.
func (m *Manager) UploadCount(ctx context.Context, dirPath string) (int, error) {
	dict, err := m.kv.GetSessionDict(ctx, m.UploadID)
	if err != nil || dict == nil {
		return 0, err
	}
	raw, ok := dict["chunkSize"]
	if !ok {
		return 0, nil
	}
	chunkSize, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chunkSize <= 0 {
		return 0, nil
	}
	tempPath := m.TempFilePath(dirPath, "")
	info, err := os.Stat(tempPath)
	if err != nil {
		return 0, nil
	}
	return int(info.Size() / chunkSize), nil
}

// SetSessionField sets one field of this upload's session dictionary.
func (m *Manager) SetSessionField(ctx context.Context, field, val string) error {
	return m.kv.SetSession(ctx, m.UploadID, field, val)
}

// SetMap binds mapKey to this upload's id.
func (m *Manager) SetMap(ctx context.Context, mapKey string) error {
	return m.kv.SetMap(ctx, mapKey, m.UploadID)
}

// ClearSession removes the session table entry for uploadID and its
// corresponding map table entry (looked up by mapKey if given, otherwise
// by scanning for whichever key is bound to uploadID).
func (m *Manager) ClearSession(ctx context.Context, mapKey, uploadID string) error {
	if uploadID == "" {
		uploadID = m.UploadID
	}
	if _, err := m.kv.ClearSessionKey(ctx, uploadID); err != nil {
		return err
	}
	if mapKey != "" {
		return m.kv.ClearMapKey(ctx, mapKey)
	}
	return m.kv.ClearMapVal(ctx, uploadID)
}

// PlaceholderPath returns the session placeholder path for tempPath. Its
// name is "repositoryType~depId~uploadId", which the sweeper decodes to
// find an abandoned upload's temp file and kv entries.
func (m *Manager) PlaceholderPath(tempPath string) string {
	repositoryType := filepath.Base(filepath.Dir(filepath.Dir(tempPath)))
	depID := filepath.Base(filepath.Dir(tempPath))
	uploadID := strings.TrimPrefix(filepath.Base(tempPath), "._")
	return filepath.Join(m.res.SessionDirPath(), repositoryType+"~"+depID+"~"+uploadID)
}

// MakePlaceholderFile creates the placeholder file for tempPath if it
// doesn't already exist.
func (m *Manager) MakePlaceholderFile(tempPath string) error {
	placeholder := m.PlaceholderPath(tempPath)
	if err := os.MkdirAll(filepath.Dir(placeholder), 0o755); err != nil {
		return err
	}
	if path.Exists(placeholder) {
		return nil
	}
	f, err := os.OpenFile(placeholder, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// RemovePlaceholderFile removes the placeholder file for tempPath, if any.
func (m *Manager) RemovePlaceholderFile(tempPath string) {
	placeholder := m.PlaceholderPath(tempPath)
	os.Remove(placeholder)
}

// Placeholder describes one session awaiting bulk cleanup, parsed from a
// placeholder file's name and age.
type Placeholder struct {
	RepositoryType string
	DepID          string
	UploadID       string
	Path           string
	Age            time.Duration
}

// ListExpiredSessions scans SESSION_DIR_PATH and returns every
// placeholder older than maxAge. Passing a zero or negative maxAge
// returns every placeholder, expired or not — the bulk-removal case the
// sweeper uses on shutdown.
func ListExpiredSessions(cfg *config.Config, maxAge time.Duration) ([]Placeholder, error) {
	entries, err := os.ReadDir(cfg.SessionDirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Placeholder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := strings.Split(entry.Name(), "~")
		if len(parts) != 3 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := time.Since(info.ModTime())
		if maxAge > 0 && age < maxAge {
			continue
		}
		out = append(out, Placeholder{
			RepositoryType: parts[0],
			DepID:          parts[1],
			UploadID:       parts[2],
			Path:           filepath.Join(cfg.SessionDirPath, entry.Name()),
			Age:            age,
		})
	}
	return out, nil
}
