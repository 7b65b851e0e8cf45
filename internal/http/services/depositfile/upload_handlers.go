package depositfile

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/integrity"
	"github.com/rcsb/depfile/pkg/upload"
)

type uploadParametersRequest struct {
	RepositoryType string `json:"repositoryType"`
	DepID          string `json:"depId"`
	ContentType    string `json:"contentType"`
	Milestone      string `json:"milestone"`
	PartNumber     int    `json:"partNumber"`
	ContentFormat  string `json:"contentFormat"`
	Version        string `json:"version"`
	AllowOverwrite bool   `json:"allowOverwrite"`
	Resumable      bool   `json:"resumable"`
}

func (s *Service) handleUploadParameters(w http.ResponseWriter, r *http.Request) {
	var req uploadParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errtypes.BadRequest("malformed request body: "+err.Error()))
		return
	}

	params, err := s.uploadEng.GetUploadParameters(r.Context(), s.kv,
		req.RepositoryType, req.DepID, req.ContentType, req.Milestone,
		req.PartNumber, req.ContentFormat, req.Version, req.AllowOverwrite, req.Resumable)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filePath":   params.FilePath,
		"chunkIndex": params.ChunkIndex,
		"uploadId":   params.UploadID,
	})
}

// maxMultipartMemory bounds how much of a chunk request's body is
// buffered in memory before net/http spills the rest to a temp file.
const maxMultipartMemory = 32 << 20

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, errtypes.BadRequest("malformed multipart request: "+err.Error()))
		return
	}

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, r, errtypes.BadRequest("missing chunk part: "+err.Error()))
		return
	}
	defer chunk.Close()

	chunkSize, err := strconv.ParseInt(r.FormValue("chunkSize"), 10, 64)
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid chunkSize"))
		return
	}
	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid chunkIndex"))
		return
	}
	expectedChunks, err := strconv.Atoi(r.FormValue("expectedChunks"))
	if err != nil {
		writeError(w, r, errtypes.BadRequest("invalid expectedChunks"))
		return
	}

	var fileSize int64
	if v := r.FormValue("fileSize"); v != "" {
		fileSize, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, errtypes.BadRequest("invalid fileSize"))
			return
		}
	}

	req := upload.ChunkRequest{
		Chunk:          chunk,
		ChunkSize:      chunkSize,
		ChunkIndex:     chunkIndex,
		ExpectedChunks: expectedChunks,
		UploadID:       r.FormValue("uploadId"),
		HashType:       integrity.HashType(r.FormValue("hashType")),
		HashDigest:     r.FormValue("hashDigest"),
		FileSize:       fileSize,
		FilePath:       r.FormValue("filePath"),
		AllowOverwrite: r.FormValue("allowOverwrite") == "true",
		Resumable:      r.FormValue("resumable") == "true",
		ExtractChunk:   r.FormValue("extractChunk") == "true",
		Decompress:     r.FormValue("decompress") == "true",
		FileExtension:  r.FormValue("fileExtension"),
	}

	if err := s.uploadEng.UploadChunk(r.Context(), s.kv, req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
