// Package ternary implements filelock.Lock with a third, internal-only
// "transitory" mode layered on top of soft's one-file-per-request scheme.
// An exclusive lock that must wait queues itself as a transitory lock so a
// steady stream of new shared-lock readers cannot starve it indefinitely;
// once the field clears, the transitory lock is promoted (by rename) to
// the target exclusive lock.
package ternary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/soft"
)

const transitory filelock.Mode = "t"

// Locker locks targetPath using soft's lock-file scheme extended with a
// transitory mode for writers waiting behind readers.
type Locker struct {
	lockDir    string
	targetPath string
	startMode  filelock.Mode
	opts       filelock.Options

	hostname string
}

// New returns a Locker for targetPath.
func New(lockDir, targetPath string, mode filelock.Mode, opts filelock.Options) (*Locker, error) {
	if mode != filelock.Shared && mode != filelock.Exclusive {
		return nil, errtypes.BadRequest("unknown lock mode " + string(mode))
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Locker{lockDir: lockDir, targetPath: targetPath, startMode: mode, opts: opts, hostname: hostname}, nil
}

type handle struct {
	path string
}

func (h *handle) Release() error {
	if h.path == "" {
		return nil
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Locker) lockStem() string {
	if l.opts.IsDir {
		depID := filepath.Base(l.targetPath)
		repositoryType := filepath.Base(filepath.Dir(l.targetPath))
		return repositoryType + "~" + depID
	}
	filename := filepath.Base(l.targetPath)
	repositoryType := filepath.Base(filepath.Dir(filepath.Dir(l.targetPath)))
	return repositoryType + "~" + filename
}

// state threads through the busy-wait loop in Acquire; Python's version
// carries these as instance fields mutated across iterations, which Go
// expresses more plainly as loop-local state.
type state struct {
	mode       filelock.Mode
	uid        string
	lockName   string
}

func (l *Locker) lockPath(s *state) string {
	return filepath.Join(l.lockDir, s.lockName)
}

// Acquire implements filelock.Lock.
func (l *Locker) Acquire(ctx context.Context) (filelock.Handle, error) {
	if err := os.MkdirAll(l.lockDir, 0o755); err != nil {
		return nil, err
	}
	start := time.Now()
	s := &state{mode: l.startMode}

	for {
		foundNothing := true
		acquiredTarget := false

		entries, _ := filepath.Glob(filepath.Join(l.lockDir, l.lockStem()+"*"))
		for _, entry := range entries {
			name := filepath.Base(entry)
			if name == s.lockName {
				continue
			}
			parts := strings.Split(name, "~")
			if len(parts) < 3 {
				continue
			}
			thatMode := filelock.Mode(parts[2])

			switch l.startMode {
			case filelock.Shared:
				if thatMode == filelock.Exclusive || thatMode == transitory {
					foundNothing = false
				}
				// another shared lock: keep scanning.
			case filelock.Exclusive:
				foundNothing = false
				switch thatMode {
				case filelock.Exclusive, filelock.Shared:
					if s.mode == transitory {
						// already queued, keep waiting.
					} else {
						if err := l.becomeTransitory(s); err != nil {
							return nil, err
						}
					}
				case transitory:
					if s.mode == transitory {
						won, err := l.breakTransitoryTie(s, entry)
						if err != nil {
							return nil, err
						}
						if won {
							acquiredTarget = true
						}
					} else if err := l.becomeTransitory(s); err != nil {
						return nil, err
					}
				}
			}
			if !foundNothing || acquiredTarget {
				break
			}
		}

		if l.opts.Timeout > 0 && time.Since(start) > l.opts.Timeout {
			return nil, errtypes.LockTimeout("lock timed out on " + l.targetPath)
		}

		if l.opts.UseSecondTraversal && s.mode != transitory {
			if err := sleepCtx(ctx, l.opts.SecondTraversalWait); err != nil {
				return nil, err
			}
			if s.uid == "" {
				s.uid = uuid.New().String()
			}
			s.lockName = fmt.Sprintf("%s~%s~%s", l.lockStem(), s.mode, s.uid)
			if !l.secondTraversal(s) {
				os.Remove(l.lockPath(s))
				if err := sleepCtx(ctx, time.Second); err != nil {
					return nil, err
				}
				continue
			}
		}

		if foundNothing {
			if s.mode == transitory {
				if err := l.promoteTransitory(s); err != nil {
					return nil, err
				}
			} else if s.lockName == "" || !exists(l.lockPath(s)) {
				if s.uid == "" {
					s.uid = uuid.New().String()
				}
				s.lockName = fmt.Sprintf("%s~%s~%s", l.lockStem(), s.mode, s.uid)
				if err := writeLockFile(l.lockPath(s), l.hostname); err != nil {
					return nil, err
				}
			}
			return &handle{path: l.lockPath(s)}, nil
		}
		if acquiredTarget {
			return &handle{path: l.lockPath(s)}, nil
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return nil, err
		}
	}
}

func (l *Locker) becomeTransitory(s *state) error {
	s.mode = transitory
	s.uid = uuid.New().String()
	s.lockName = fmt.Sprintf("%s~%s~%s", l.lockStem(), s.mode, s.uid)
	path := l.lockPath(s)
	if !exists(path) {
		return writeLockFile(path, l.hostname)
	}
	return nil
}

func (l *Locker) breakTransitoryTie(s *state, thatPath string) (bool, error) {
	thisStart, err := soft.StartTime(l.lockPath(s))
	if err != nil {
		return false, err
	}
	thatStart, err := soft.StartTime(thatPath)
	if err != nil {
		return false, err
	}
	if thisStart == thatStart {
		os.Remove(l.lockPath(s))
		return false, errtypes.LockTimeout("deadlock: simultaneous transitory locks on " + l.targetPath)
	}
	if thisStart < thatStart {
		return true, l.promoteTransitory(s)
	}
	return false, nil
}

func (l *Locker) promoteTransitory(s *state) error {
	transitoryPath := l.lockPath(s)
	s.mode = l.startMode
	s.lockName = fmt.Sprintf("%s~%s~%s", l.lockStem(), s.mode, s.uid)
	targetPath := l.lockPath(s)
	if !exists(transitoryPath) {
		return errtypes.PathError("transitory lock file missing for " + l.targetPath)
	}
	return os.Rename(transitoryPath, targetPath)
}

// secondTraversal re-scans the lock directory after the configured wait to
// detect a conflicting lock created in the same window.
func (l *Locker) secondTraversal(s *state) bool {
	thisName := s.lockName
	entries, _ := filepath.Glob(filepath.Join(l.lockDir, l.lockStem()+"*"))
	for _, entry := range entries {
		name := filepath.Base(entry)
		if name == thisName {
			continue
		}
		parts := strings.Split(name, "~")
		if len(parts) < 3 {
			continue
		}
		thatMode := filelock.Mode(parts[2])
		switch thatMode {
		case filelock.Exclusive:
			if s.mode == filelock.Shared {
				return false
			}
			thisStart, _ := soft.StartTime(l.lockPath(s))
			thatStart, _ := soft.StartTime(entry)
			if thisStart < thatStart {
				continue
			}
			return false
		case filelock.Shared:
			if s.mode == filelock.Exclusive {
				continue
			}
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeLockFile(path, hostname string) error {
	contents := fmt.Sprintf("%d\n%s\n%s\n", os.Getpid(), hostname, strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 4, 64))
	return os.WriteFile(path, []byte(contents), 0o644)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
