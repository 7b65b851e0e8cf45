// Package soft implements the simplest filelock.Lock: one lock file per
// held lock, named "repositoryType~filename~mode~uid" inside the shared
// lock directory. Exiting a lock is race-free (just unlink the file);
// acquiring one costs a directory traversal and, optionally, a second
// traversal a few seconds later to catch simultaneous acquisitions.
package soft

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/filelock"
)

// Locker locks targetPath using one-file-per-request lock files under
// lockDir.
type Locker struct {
	lockDir    string
	targetPath string
	mode       filelock.Mode
	opts       filelock.Options

	hostname string
}

// New returns a Locker for targetPath. targetPath need not exist yet;
// the lock only inspects its path components.
func New(lockDir, targetPath string, mode filelock.Mode, opts filelock.Options) (*Locker, error) {
	if mode != filelock.Shared && mode != filelock.Exclusive {
		return nil, errtypes.BadRequest("unknown lock mode " + string(mode))
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Locker{
		lockDir:    lockDir,
		targetPath: targetPath,
		mode:       mode,
		opts:       opts,
		hostname:   firstLabel(hostname),
	}, nil
}

func firstLabel(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		return hostname[:i]
	}
	return hostname
}

// handle is the held lock returned by Acquire.
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

// lockStem returns "repositoryType~filename" (or "repositoryType~depId"
// for a directory lock), the prefix shared by every lock on this target
// regardless of mode or uid.
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

// mutexPath guards the glob-then-create critical section with an OS
// advisory lock on the shared lock directory; CPython's GIL and single
// asyncio loop gave the original implementation this exclusion for free,
// Go's concurrent goroutines don't get it without an explicit lock.
func (l *Locker) mutexPath() string {
	return filepath.Join(l.lockDir, ".mutex")
}

// Acquire implements filelock.Lock.
func (l *Locker) Acquire(ctx context.Context) (filelock.Handle, error) {
	if err := os.MkdirAll(l.lockDir, 0o755); err != nil {
		return nil, err
	}
	start := time.Now()
	for {
		lockPath, err := l.tryAcquire()
		if err != nil {
			return nil, err
		}
		if lockPath == "" {
			if err := l.waitOrTimeout(ctx, start, time.Second); err != nil {
				return nil, err
			}
			continue
		}

		h := &handle{path: lockPath}
		if !l.opts.UseSecondTraversal {
			return h, nil
		}

		if err := sleepCtx(ctx, l.opts.SecondTraversalWait); err != nil {
			h.Release()
			return nil, err
		}
		if !l.secondTraversal(lockPath) {
			h.Release()
			if err := l.waitOrTimeout(ctx, start, time.Second); err != nil {
				return nil, err
			}
			continue
		}
		return h, nil
	}
}

func (l *Locker) waitOrTimeout(ctx context.Context, start time.Time, wait time.Duration) error {
	if l.opts.Timeout > 0 && time.Since(start) > l.opts.Timeout {
		return errtypes.LockTimeout("lock timed out on " + l.targetPath)
	}
	return sleepCtx(ctx, wait)
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

// tryAcquire traverses the lock directory once; if no conflicting lock is
// found it creates and returns the new lock file's path, otherwise it
// returns "" to signal the caller should wait and retry.
func (l *Locker) tryAcquire() (string, error) {
	fl := flock.New(l.mutexPath())
	if err := fl.Lock(); err != nil {
		return "", err
	}
	defer fl.Unlock()

	stem := l.lockStem()
	entries, err := filepath.Glob(filepath.Join(l.lockDir, stem+"*"))
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := filepath.Base(entry)
		if !strings.HasPrefix(name, stem) {
			continue
		}
		parts := strings.Split(name, "~")
		if len(parts) < 3 {
			continue
		}
		thatMode := filelock.Mode(parts[2])
		if l.mode == filelock.Exclusive || thatMode == filelock.Exclusive {
			return "", nil
		}
		// shared lock found another shared lock: keep traversing.
	}

	uid := uuid.New().String()
	lockPath := filepath.Join(l.lockDir, fmt.Sprintf("%s~%s~%s", stem, l.mode, uid))
	if err := writeLockFile(lockPath, l.hostname); err != nil {
		return "", err
	}
	return lockPath, nil
}

func writeLockFile(path, hostname string) error {
	contents := fmt.Sprintf("%d\n%s\n%s\n", os.Getpid(), hostname, strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 4, 64))
	return os.WriteFile(path, []byte(contents), 0o644)
}

// secondTraversal re-scans the lock directory a few seconds after
// tryAcquire to detect a conflicting lock created in the same window. It
// returns false if this lock should back off.
func (l *Locker) secondTraversal(lockPath string) bool {
	stem := l.lockStem()
	thisName := filepath.Base(lockPath)
	thisParts := strings.Split(thisName, "~")
	thisUID := thisParts[len(thisParts)-1]
	entries, _ := filepath.Glob(filepath.Join(l.lockDir, stem+"*"))
	for _, entry := range entries {
		name := filepath.Base(entry)
		if name == thisName || !strings.HasPrefix(name, stem) {
			continue
		}
		parts := strings.Split(name, "~")
		if len(parts) < 3 {
			continue
		}
		thatMode := filelock.Mode(parts[2])
		if thatMode != filelock.Exclusive {
			continue
		}
		if l.mode == filelock.Shared {
			return false
		}
		// both exclusive: break the tie by uid, favoring the
		// lexicographically smaller uid.
		thatUID := parts[len(parts)-1]
		if thisUID < thatUID {
			continue
		}
		return false
	}
	return true
}

func lockStartTime(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 3 {
		return 0, errtypes.PathError("malformed lock file " + path)
	}
	return strconv.ParseFloat(strings.TrimSpace(lines[2]), 64)
}

// Owner returns the pid and hostname recorded in the lock file at path.
func Owner(path string) (pid int, hostname string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 {
		return 0, "", errtypes.PathError("malformed lock file " + path)
	}
	pid, err = strconv.Atoi(lines[0])
	if err != nil {
		return 0, "", err
	}
	return pid, lines[1], nil
}

// StartTime returns the start time recorded inside the lock file at path,
// used by the stale-owner sweeper to judge lock age.
func StartTime(path string) (float64, error) {
	return lockStartTime(path)
}
