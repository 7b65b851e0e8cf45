// Package path resolves the logical (repositoryType, depId, contentType,
// milestone, partNumber, contentFormat, version) coordinates of a deposition
// file into concrete paths on the repository filesystem.
package path

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
)

// Resolver resolves logical file coordinates against a repository root.
type Resolver struct {
	cfg *config.Config
}

// NewResolver returns a Resolver bound to cfg's REPOSITORY_DIR_PATH and
// friends.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// SessionDirPath returns the directory session placeholders are written to.
func (r *Resolver) SessionDirPath() string {
	return r.cfg.SessionDirPath
}

// SharedLockDirPath returns the directory lock files are written to.
func (r *Resolver) SharedLockDirPath() string {
	return r.cfg.SharedLockPath
}

// RepositoryDirPath returns the top-level directory for repositoryType
// (e.g. REPOSITORY_DIR_PATH/archive), or an error if repositoryType is not
// recognized.
func (r *Resolver) RepositoryDirPath(repositoryType string) (string, error) {
	switch strings.ToLower(repositoryType) {
	case "onedep-archive", "archive":
		return filepath.Join(r.cfg.RepositoryDirPath, "archive"), nil
	case "onedep-deposit", "deposit":
		return filepath.Join(r.cfg.RepositoryDirPath, "deposit"), nil
	case "onedep-session", "session":
		return filepath.Join(r.cfg.RepositoryDirPath, "session"), nil
	case "onedep-workflow", "workflow":
		return filepath.Join(r.cfg.RepositoryDirPath, "workflow"), nil
	default:
		return "", errtypes.PathError("unknown repository type " + repositoryType)
	}
}

// DirPath returns the per-deposition directory for repositoryType/depId.
func (r *Resolver) DirPath(repositoryType, depID string) (string, error) {
	repoPath, err := r.RepositoryDirPath(repositoryType)
	if err != nil {
		return "", err
	}
	return filepath.Join(repoPath, depID), nil
}

func validateMilestone(milestone string) string {
	m := strings.TrimSpace(milestone)
	if m == "" || strings.EqualFold(m, "none") || strings.EqualFold(m, "null") {
		return ""
	}
	for _, known := range config.Milestones {
		if known == milestone {
			return "-" + milestone
		}
	}
	return ""
}

// BaseFileName composes the version-less file name
// "<depId>_<slug><-milestone>_P<partNumber>.<ext>" for the given coordinates.
func (r *Resolver) BaseFileName(depID, contentType, milestone string, partNumber int, contentFormat string) (string, error) {
	info, ok := config.ContentTypes[contentType]
	if !ok {
		return "", errtypes.PathError("unknown content type " + contentType)
	}
	ext, ok := config.FileFormatExtensions[contentFormat]
	if !ok {
		return "", errtypes.PathError("unknown content format " + contentFormat)
	}
	return fmt.Sprintf("%s_%s%s_P%d.%s", depID, info.Slug, validateMilestone(milestone), partNumber, ext), nil
}

// FileLockPath returns the lock file path for the given coordinates.
func (r *Resolver) FileLockPath(depID, contentType, milestone string, partNumber int, contentFormat string) (string, error) {
	base, err := r.BaseFileName(depID, contentType, milestone, partNumber, contentFormat)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.SharedLockDirPath(), base+".lock"), nil
}

// SliceFilePath returns the path a resumable upload writes chunk sliceIndex
// of sliceTotal to while it is in flight.
func (r *Resolver) SliceFilePath(sessionID string, sliceIndex, sliceTotal int) string {
	fnBase := fmt.Sprintf("%s_%d.%d", sessionID, sliceIndex, sliceTotal)
	return filepath.Join(r.SessionDirPath(), sessionID, fnBase)
}

// SliceLockPath returns the lock file path guarding a chunk slice.
func (r *Resolver) SliceLockPath(sessionID string, sliceIndex, sliceTotal int) string {
	fnBase := fmt.Sprintf("%s_%d.%d", sessionID, sliceIndex, sliceTotal)
	return filepath.Join(r.SharedLockDirPath(), fnBase+".lock")
}

// versionedFile pairs a candidate path with its parsed version number.
type versionedFile struct {
	path    string
	version int
}

// VersionedPath resolves version (a literal version number, or one of
// "next", "last"/"latest", "prev"/"previous", "first", "second") to a
// concrete path under depId's directory. The literal "0" is rejected: it is
// not a valid version number.
func (r *Resolver) VersionedPath(repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string) (string, error) {
	repoPath, err := r.RepositoryDirPath(repositoryType)
	if err != nil {
		return "", err
	}
	base, err := r.BaseFileName(depID, contentType, milestone, partNumber, contentFormat)
	if err != nil {
		return "", err
	}
	filePattern := filepath.Join(repoPath, depID, base+".V")

	if n, ok := parseVersionNumber(version); ok {
		return filePattern + strconv.Itoa(n), nil
	}

	matches, _ := filepath.Glob(filePattern + "*")
	files := make([]versionedFile, 0, len(matches))
	for _, m := range matches {
		idx := strings.LastIndex(m, ".V")
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(m[idx+2:])
		if err != nil {
			continue
		}
		files = append(files, versionedFile{path: m, version: n})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version > files[j].version })

	switch strings.ToLower(version) {
	case "next":
		if len(files) > 0 {
			return filePattern + strconv.Itoa(files[0].version+1), nil
		}
		return filePattern + "1", nil
	case "last", "latest":
		if len(files) > 0 {
			return files[0].path, nil
		}
		return "", errtypes.NotFound("no versions found for " + base)
	case "prev", "previous":
		if len(files) > 1 {
			return files[1].path, nil
		}
		return "", errtypes.NotFound("no previous version found for " + base)
	case "first":
		if len(files) > 0 {
			return files[len(files)-1].path, nil
		}
		return "", errtypes.NotFound("no versions found for " + base)
	case "second":
		if len(files) > 1 {
			return files[len(files)-2].path, nil
		}
		return "", errtypes.NotFound("no second version found for " + base)
	default:
		return "", errtypes.PathError("unrecognized version token " + version)
	}
}

// parseVersionNumber reports whether version is a literal positive version
// number (version "0" is deliberately excluded — it is never valid).
func parseVersionNumber(version string) (int, bool) {
	n, err := strconv.Atoi(version)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Exists reports whether path exists on the filesystem.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
