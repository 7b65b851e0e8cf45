// Package factory selects a filelock.Lock implementation from
// config.Config.LockType, the same driver-selection-by-name idiom used
// for the kv backends. It is a separate package from filelock itself
// because each backend imports filelock, and filelock importing them
// back would cycle.
package factory

import (
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/redislock"
	"github.com/rcsb/depfile/pkg/filelock/soft"
	"github.com/rcsb/depfile/pkg/filelock/ternary"
)

// New returns a Lock on targetPath using the backend named by
// cfg.LockType ("soft", "ternary", or "redis"). redisClient is only
// consulted for the redis backend and may be nil otherwise.
func New(cfg *config.Config, redisClient *redis.Client, targetPath string, mode filelock.Mode, isDir bool) (filelock.Lock, error) {
	opts := filelock.Options{
		Timeout:             time.Duration(cfg.LockTimeout) * time.Second,
		SecondTraversalWait: time.Duration(cfg.LockSecondTraversalWait) * time.Second,
		UseSecondTraversal:  cfg.LockTransactions,
		IsDir:               isDir,
	}
	switch cfg.LockType {
	case "soft":
		return soft.New(cfg.SharedLockPath, targetPath, mode, opts)
	case "ternary":
		return ternary.New(cfg.SharedLockPath, targetPath, mode, opts)
	case "redis":
		if redisClient == nil {
			return nil, errtypes.BadRequest("redis lock type configured without a redis client")
		}
		return redislock.New(redisClient, targetPath, mode, opts)
	default:
		return nil, errtypes.BadRequest("unknown lock type " + cfg.LockType)
	}
}
