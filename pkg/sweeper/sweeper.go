// Package sweeper reclaims the state an interrupted or abandoned upload
// leaves behind: the session placeholder, its kv session/map rows, and
// its TempFile, plus stale lock records left by a process that died
// mid-hold. Grounded on SoftLock.py's cleanup routine and spec.md §4.9.
package sweeper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/filelock/staleowner"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/path"
	"github.com/rcsb/depfile/pkg/session"
)

// Sweeper periodically reclaims abandoned upload sessions and stale
// lock records.
type Sweeper struct {
	cfg         *config.Config
	kv          kv.Store
	res         *path.Resolver
	redisClient *redis.Client
	log         zerolog.Logger

	placeholderMaxAge time.Duration
	lockStaleAge      time.Duration
}

// New returns a Sweeper. redisClient is only consulted when
// cfg.LockType is "redis" and may be nil otherwise.
func New(cfg *config.Config, store kv.Store, redisClient *redis.Client, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cfg:               cfg,
		kv:                store,
		res:               path.NewResolver(cfg),
		redisClient:       redisClient,
		log:               log,
		placeholderMaxAge: time.Duration(cfg.KVMaxSeconds) * time.Second,
		lockStaleAge:      time.Duration(cfg.StaleLockAgeSeconds) * time.Second,
	}
}

// Startup ensures the repository, session, and shared-lock directories
// exist.
func (s *Sweeper) Startup() error {
	for _, dir := range []string{s.cfg.RepositoryDirPath, s.cfg.SessionDirPath, s.cfg.SharedLockPath} {
		if err := os.MkdirAll(dir, os.FileMode(s.cfg.DefaultFilePermissions)); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown sweeps every placeholder and lock record regardless of age.
func (s *Sweeper) Shutdown(ctx context.Context) {
	s.Sweep(ctx, true)
}

// Sweep reclaims placeholders older than the configured max age (or
// every placeholder, when removeAll is set), then sweeps stale lock
// records. A transient kv error on one placeholder does not abort the
// rest of the pass: each reclaim is retried with backoff before being
// logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context, removeAll bool) {
	placeholderAge := s.placeholderMaxAge
	if removeAll {
		placeholderAge = 0
	}
	placeholders, err := session.ListExpiredSessions(s.cfg, placeholderAge)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to list session placeholders")
		return
	}

	var failures []error
	for _, p := range placeholders {
		p := p
		reclaim := func() error { return s.reclaimSession(ctx, p) }
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 5 * time.Second
		if err := backoff.Retry(reclaim, b); err != nil {
			failures = append(failures, fmt.Errorf("reclaim %s: %w", p.UploadID, err))
		}
	}

	// saveUnexpired=true spares locks younger than lockStaleAge during a
	// periodic pass; a shutdown sweep reclaims every lock record, live or
	// not, since the process holding it is this one and is exiting.
	owners := staleowner.New(s.cfg.SharedLockPath, s.redisClient, !removeAll, s.lockStaleAge, s.log)
	if err := owners.Sweep(ctx); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		s.log.Warn().Err(errtypes.Join(failures...)).Msg("sweep pass completed with errors")
	}
}

// reclaimSession removes a placeholder's temp file, its own placeholder,
// and its kv session entry. The map table entry is cleared by value
// rather than by key: a bare placeholder doesn't carry the final
// versioned path its map key was derived from, only the coordinates
// that name its temp file.
func (s *Sweeper) reclaimSession(ctx context.Context, p session.Placeholder) error {
	mgr := session.New(s.cfg, s.kv, p.UploadID)
	dirPath, err := s.res.DirPath(p.RepositoryType, p.DepID)
	if err != nil {
		return err
	}
	tempPath := mgr.TempFilePath(dirPath, p.UploadID)
	return mgr.Close(ctx, tempPath, true, "")
}
