// Package upload implements the sequential-chunk upload engine: each
// chunk of a deposition file arrives as its own stateless request and is
// appended to an in-place accumulation file; once the last chunk lands,
// its integrity is checked and it is promoted into place under an
// exclusive lock.
package upload

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/integrity"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/path"
	"github.com/rcsb/depfile/pkg/session"
)

// LockFactory mints a lock on targetPath, abstracting over whichever
// filelock backend the deployment is configured for.
type LockFactory func(targetPath string, mode filelock.Mode, isDir bool) (filelock.Lock, error)

// Engine drives the chunked upload protocol for one configured
// deployment.
type Engine struct {
	cfg     *config.Config
	newLock LockFactory
	log     zerolog.Logger
}

// NewEngine returns an Engine. newLock is typically
// factory.New bound to cfg and an optional redis client.
func NewEngine(cfg *config.Config, newLock LockFactory, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, newLock: newLock, log: log}
}

// Parameters is the outcome of resolving an upload request's file
// coordinates: where the final file will live, which chunk to expect
// next, and the upload id to track it under.
type Parameters struct {
	FilePath   string
	ChunkIndex int
	UploadID   string
}

// GetUploadParameters validates repositoryType/contentType/contentFormat,
// resolves (or resumes) the upload's session, and returns where its
// final file will land and which chunk the client should send next.
func (e *Engine) GetUploadParameters(ctx context.Context, store kv.Store, repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string, allowOverwrite, resumable bool) (*Parameters, error) {
	mgr := session.New(e.cfg, store, "")
	if err := mgr.Open(ctx, resumable, repositoryType, depID, contentType, milestone, partNumber, contentFormat, version); err != nil {
		return nil, err
	}
	relPath, err := mgr.SaveFilePath(repositoryType, depID, contentType, milestone, partNumber, contentFormat, version, allowOverwrite)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(e.cfg.RepositoryDirPath, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.FileMode(e.cfg.DefaultFilePermissions)); err != nil {
		return nil, err
	}
	chunkIndex := 0
	if resumable {
		chunkIndex, err = mgr.UploadCount(ctx, filepath.Dir(fullPath))
		if err != nil {
			return nil, err
		}
	}
	return &Parameters{FilePath: relPath, ChunkIndex: chunkIndex, UploadID: mgr.UploadID}, nil
}

// ChunkRequest describes one chunk of a (possibly multi-chunk) upload.
type ChunkRequest struct {
	Chunk          io.Reader
	ChunkSize      int64
	ChunkIndex     int
	ExpectedChunks int

	UploadID   string
	HashType   integrity.HashType
	HashDigest string
	FileSize   int64

	// FilePath is repository-relative, as returned by GetUploadParameters.
	FilePath       string
	AllowOverwrite bool
	Resumable      bool

	// ExtractChunk decompresses each chunk in memory, gzip-compressed,
	// before it is appended to the accumulation file.
	ExtractChunk bool
	// Decompress, once the final chunk has been promoted into place,
	// decompresses the assembled file according to FileExtension.
	Decompress    bool
	FileExtension string
}

// UploadChunk appends one chunk to the in-place accumulation file; on the
// final chunk it verifies the assembled file's integrity and promotes it
// into place under an exclusive lock, then clears the session.
func (e *Engine) UploadChunk(ctx context.Context, store kv.Store, req ChunkRequest) error {
	filePath := filepath.Join(e.cfg.RepositoryDirPath, req.FilePath)
	mgr := session.New(e.cfg, store, req.UploadID)

	var mapKey string
	if req.Resumable {
		repositoryType := filepath.Base(filepath.Dir(filepath.Dir(filePath)))
		mapKey = session.PreparedMapKey(repositoryType, filePath)
		if req.ChunkIndex == 0 {
			if err := mgr.SetSessionField(ctx, "chunkSize", strconv.FormatInt(req.ChunkSize, 10)); err != nil {
				return err
			}
			if err := mgr.SetMap(ctx, mapKey); err != nil {
				return err
			}
		}
	}

	dirPath := filepath.Dir(filePath)
	tempPath := mgr.TempFilePath(dirPath, "")
	if req.ChunkIndex == 0 {
		if err := mgr.MakePlaceholderFile(tempPath); err != nil {
			return err
		}
	}

	if err := appendChunk(tempPath, req.Chunk, req.ExtractChunk); err != nil {
		if cerr := mgr.Close(ctx, tempPath, req.Resumable, mapKey); cerr != nil {
			e.log.Warn().Err(cerr).Str("uploadId", req.UploadID).Msg("failed to clean up session after chunk write error")
		}
		return err
	}

	if req.ChunkIndex+1 != req.ExpectedChunks {
		return nil
	}

	if err := e.finalize(ctx, tempPath, filePath, req); err != nil {
		if cerr := mgr.Close(ctx, tempPath, req.Resumable, mapKey); cerr != nil {
			e.log.Warn().Err(cerr).Str("uploadId", req.UploadID).Msg("failed to clean up session after finalize error")
		}
		return err
	}
	return mgr.Close(ctx, tempPath, req.Resumable, mapKey)
}

func appendChunk(tempPath string, r io.Reader, extractChunk bool) error {
	if extractChunk {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return errtypes.BadRequest("chunk is not valid gzip: " + err.Error())
		}
		defer gz.Close()
		r = gz
	}
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return err
	}
	if n == 0 {
		return errtypes.BadRequest("chunk payload is empty")
	}
	return nil
}

// finalize verifies the assembled temp file's integrity and promotes it
// into filePath under an exclusive lock.
func (e *Engine) finalize(ctx context.Context, tempPath, filePath string, req ChunkRequest) error {
	if req.HashDigest != "" && req.HashType != "" {
		if err := integrity.Check(tempPath, req.HashType, req.HashDigest); err != nil {
			return err
		}
	} else if req.FileSize > 0 {
		info, err := os.Stat(tempPath)
		if err != nil {
			return err
		}
		if info.Size() != req.FileSize {
			return errtypes.BadRequest("file size comparison failed")
		}
	} else {
		return errtypes.BadRequest("no hash or file size provided")
	}

	lock, err := e.newLock(filePath, filelock.Exclusive, false)
	if err != nil {
		return err
	}
	handle, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()

	if path.Exists(filePath) && !req.AllowOverwrite {
		return errtypes.Forbidden("encountered existing file - cannot overwrite")
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return err
	}

	if req.Decompress {
		if err := decompressFile(filePath, req.FileExtension); err != nil {
			os.Remove(filePath)
			return err
		}
	}
	return nil
}

// decompressFile decompresses filePath in place, its compressed bytes
// having been written there by finalize's rename. fileExtension names
// the compression format (gzip or zip); anything else is rejected.
// fileExtension containing a "." is a double-extension request (e.g.
// the caller asking to decompress a name that already carries its own
// suffix) and is rejected before any rename happens.
func decompressFile(filePath, fileExtension string) error {
	if strings.Contains(fileExtension, ".") {
		return errtypes.BadRequest("double file extension not allowed: " + fileExtension)
	}
	if fileExtension != "gzip" && fileExtension != "zip" {
		return errtypes.NotSupported("unsupported decompression format " + fileExtension)
	}

	compressedPath := filePath + "." + fileExtension
	if err := os.Rename(filePath, compressedPath); err != nil {
		return err
	}

	data, err := readCompressed(compressedPath, fileExtension)
	if err != nil {
		os.Remove(compressedPath)
		return err
	}

	info, err := os.Stat(compressedPath)
	perm := os.FileMode(0o644)
	if err == nil {
		perm = info.Mode()
	}
	if err := renameio.WriteFile(filePath, data, perm); err != nil {
		os.Remove(compressedPath)
		return err
	}
	return os.Remove(compressedPath)
}

// readCompressed reads the single decompressed payload out of
// compressedPath, dispatching on fileExtension.
func readCompressed(compressedPath, fileExtension string) ([]byte, error) {
	switch fileExtension {
	case "gzip":
		f, err := os.Open(compressedPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errtypes.BadRequest("not a valid gzip file: " + err.Error())
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case "zip":
		zr, err := zip.OpenReader(compressedPath)
		if err != nil {
			return nil, errtypes.BadRequest("not a valid zip file: " + err.Error())
		}
		defer zr.Close()
		if len(zr.File) != 1 {
			return nil, errtypes.BadRequest("zip archive must contain exactly one entry")
		}
		entry, err := zr.File[0].Open()
		if err != nil {
			return nil, err
		}
		defer entry.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, entry); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, errtypes.NotSupported("unsupported decompression format " + fileExtension)
	}
}
