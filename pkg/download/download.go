// Package download resolves a deposition file's logical coordinates to
// a concrete path and serves either the whole file (with integrity
// headers) or one byte-range chunk of it.
package download

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
	"github.com/rcsb/depfile/pkg/integrity"
	"github.com/rcsb/depfile/pkg/path"
)

// Engine resolves and serves deposition files for download.
type Engine struct {
	res *path.Resolver
}

// NewEngine returns an Engine bound to cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{res: path.NewResolver(cfg)}
}

// Result describes what Resolve found: the file's path, its size, and —
// for a whole-file download with a requested hash type — its digest.
type Result struct {
	FilePath   string
	Size       int64
	HashType   integrity.HashType
	HashDigest string
}

// Resolve locates the file named by the given coordinates and, when
// hashType is non-empty, computes the whole file's digest. Callers serving
// a chunked download pass an empty hashType to skip that computation.
func (e *Engine) Resolve(repositoryType, depID, contentType, milestone string, partNumber int, contentFormat, version string, hashType integrity.HashType) (*Result, error) {
	filePath, err := e.res.VersionedPath(repositoryType, depID, contentType, milestone, partNumber, contentFormat, version)
	if err != nil {
		return nil, errtypes.NotFound("bad or incomplete path metadata")
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, errtypes.NotFound("requested file path does not exist " + filePath)
	}
	result := &Result{FilePath: filePath, Size: info.Size()}
	if hashType != "" {
		digest, err := integrity.Digest(filePath, hashType)
		if err != nil {
			return nil, err
		}
		result.HashType = hashType
		result.HashDigest = digest
	}
	return result, nil
}

// chunkReader closes its backing file once the chunk has been read.
type chunkReader struct {
	*io.SectionReader
	f *os.File
}

func (c *chunkReader) Close() error { return c.f.Close() }

// OpenChunk returns a ReadCloser over exactly one chunkSize-sized slice
// (chunkIndex) of filePath; the caller must Close it.
func OpenChunk(filePath string, chunkSize int64, chunkIndex int64) (io.ReadCloser, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errtypes.NotFound("error returning chunk: " + err.Error())
	}
	return &chunkReader{SectionReader: io.NewSectionReader(f, chunkIndex*chunkSize, chunkSize), f: f}, nil
}

// GetMimeType maps a content format to its MIME type, preferring the
// format's registered file extension when one is known.
func GetMimeType(contentFormat string) string {
	cFormat := contentFormat
	if ext, ok := config.FileFormatExtensions[contentFormat]; ok && ext != "" {
		cFormat = ext
	}
	switch cFormat {
	case "cif":
		return "chemical/x-mmcif"
	case "pdf":
		return "application/pdf"
	case "xml":
		return "application/xml"
	case "json":
		return "application/json"
	case "txt":
		return "text/plain"
	case "pic":
		return "application/python-pickle"
	default:
		return "text/plain"
	}
}

// FileName returns filePath's base name, suitable for a
// Content-Disposition header.
func FileName(filePath string) string {
	return filepath.Base(filePath)
}
