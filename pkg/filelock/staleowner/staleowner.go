// Package staleowner sweeps lock records left behind by a process that
// died (or was killed) before it could release its lock, across
// whichever filelock backend a deployment runs. The original relied on
// the single worker process crash-looping back into a clean state since
// there was only ever one host to reason about; a pool of Go worker
// processes needs the sweep to check each lock's owning pid/hostname
// against the pids actually alive on this host before reclaiming it.
package staleowner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/rcsb/depfile/pkg/filelock/redislock"
	"github.com/rcsb/depfile/pkg/filelock/soft"
)

// Sweeper reclaims lock records abandoned by a dead owner.
type Sweeper struct {
	lockDir       string
	redisClient   *redis.Client
	hostname      string
	saveUnexpired bool
	timeout       time.Duration
	log           zerolog.Logger
}

// New returns a Sweeper for the soft/ternary lock directory lockDir and,
// when redisClient is non-nil, the redislock backend reachable through
// it. Either may be left zero-valued/nil to sweep only the other.
func New(lockDir string, redisClient *redis.Client, saveUnexpired bool, timeout time.Duration, log zerolog.Logger) *Sweeper {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		hostname = hostname[:i]
	}
	return &Sweeper{lockDir: lockDir, redisClient: redisClient, hostname: hostname, saveUnexpired: saveUnexpired, timeout: timeout, log: log}
}

// Sweep removes lock records by age alone: with saveUnexpired set, every
// record older than timeout; otherwise every record, whatever its age.
// Whether the owning process is alive does not decide removal; an owner
// still running on this host is sent SIGSTOP before its lock file is
// removed, and owners on other hosts are not signalled.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if err := s.sweepFileLocks(); err != nil {
		return err
	}
	if s.redisClient != nil {
		if err := redislock.Cleanup(ctx, s.redisClient, s.saveUnexpired, s.timeout, s.log); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) sweepFileLocks() error {
	if s.lockDir == "" {
		return nil
	}
	entries, err := filepath.Glob(filepath.Join(s.lockDir, "*~*~*"))
	if err != nil {
		return err
	}
	for _, lockPath := range entries {
		info, err := os.Stat(lockPath)
		if err != nil {
			continue
		}
		if s.saveUnexpired && time.Since(info.ModTime()) <= s.timeout {
			continue
		}
		s.reclaim(lockPath)
	}
	return nil
}

// reclaim stops (rather than kills, matching the original's SIGSTOP)
// a still-living same-host owner before unlinking its lock file, giving
// it a chance to notice and shut down cleanly instead of racing a
// concurrent writer that believes the path is now unlocked.
func (s *Sweeper) reclaim(lockPath string) {
	pid, hostname, err := soft.Owner(lockPath)
	if err == nil && pid > 0 && hostname == s.hostname {
		if proc, err := process.NewProcess(int32(pid)); err == nil {
			if running, _ := proc.IsRunning(); running {
				if err := proc.SendSignal(syscall.SIGSTOP); err != nil {
					s.log.Warn().Err(err).Int("pid", pid).Msg("failed to stop stale lock owner")
				}
			}
		}
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", lockPath).Msg("failed to remove stale lock file")
	}
}
