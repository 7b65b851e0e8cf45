package depositfile

import (
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/rcsb/depfile/pkg/download"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/integrity"
)

// handleDownload serves either a byte-range chunk (when chunkSize and
// chunkIndex are both given) or the whole file with integrity headers,
// per spec.md §4.7. This is the only route not gated by the bearer-auth
// middleware.
func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid partNumber"))
		return
	}

	chunkSizeRaw, chunkIndexRaw := q.Get("chunkSize"), q.Get("chunkIndex")
	chunked := chunkSizeRaw != "" && chunkIndexRaw != ""

	hashType := integrity.HashType("")
	if !chunked {
		hashType = integrity.HashType(q.Get("hashType"))
	}

	result, err := s.downloadEng.Resolve(q.Get("repositoryType"), q.Get("depId"), q.Get("contentType"),
		q.Get("milestone"), partNumber, q.Get("contentFormat"), q.Get("version"), hashType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if chunked {
		s.serveChunk(w, r, result.FilePath, chunkSizeRaw, chunkIndexRaw)
		return
	}

	w.Header().Set("Content-Type", download.GetMimeType(q.Get("contentFormat")))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+download.FileName(result.FilePath)+"\"")
	if result.HashType != "" {
		w.Header().Set("rcsb_hash_type", string(result.HashType))
		w.Header().Set("rcsb_hexdigest", result.HashDigest)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))

	f, err := os.Open(result.FilePath)
	if err != nil {
		writeError(w, r, errtypes.NotFound("requested file path does not exist "+result.FilePath))
		return
	}
	defer f.Close()
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

func (s *Service) serveChunk(w http.ResponseWriter, r *http.Request, filePath, chunkSizeRaw, chunkIndexRaw string) {
	chunkSize, err := strconv.ParseInt(chunkSizeRaw, 10, 64)
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid chunkSize"))
		return
	}
	chunkIndex, err := strconv.ParseInt(chunkIndexRaw, 10, 64)
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid chunkIndex"))
		return
	}

	rc, err := download.OpenChunk(filePath, chunkSize, chunkIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
