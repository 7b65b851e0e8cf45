package depositfile

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rcsb/depfile/pkg/errtypes"
)

// handlePathResolve returns the full versioned path for a logical file,
// relative to the repository root.
func (s *Service) handlePathResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid partNumber"))
		return
	}
	full, err := s.resolver.VersionedPath(q.Get("repositoryType"), q.Get("depId"), q.Get("contentType"),
		q.Get("milestone"), partNumber, q.Get("contentFormat"), q.Get("version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": s.relativize(full)})
}

// handlePathFilename returns the versioned file name (no directory).
func (s *Service) handlePathFilename(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid partNumber"))
		return
	}
	full, err := s.resolver.VersionedPath(q.Get("repositoryType"), q.Get("depId"), q.Get("contentType"),
		q.Get("milestone"), partNumber, q.Get("contentFormat"), q.Get("version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": filepath.Base(full)})
}

// handlePathBaseFilename returns the version-less file name.
func (s *Service) handlePathBaseFilename(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid partNumber"))
		return
	}
	base, err := s.resolver.BaseFileName(q.Get("depId"), q.Get("contentType"), q.Get("milestone"), partNumber, q.Get("contentFormat"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"basefilename": base})
}

// handlePathDirPath returns the per-deposition directory.
func (s *Service) handlePathDirPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := s.resolver.DirPath(q.Get("repositoryType"), q.Get("depId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dirpath": s.relativize(dir)})
}

// relativize strips the repository root prefix so clients never see the
// server's absolute filesystem layout.
func (s *Service) relativize(full string) string {
	rel, err := filepath.Rel(s.cfg.RepositoryDirPath, full)
	if err != nil {
		return full
	}
	return rel
}
