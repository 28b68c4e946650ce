package rendergraph

import (
	"os"
	"path/filepath"
)

// BlobLoader returns raw bytes for a path: pipeline JSON, WGSL shader
// source, and mesh/material companion files. Implementations may return a
// trailing NUL byte for text files; callers that parse JSON or WGSL strip
// it, so either convention works.
type BlobLoader interface {
	Load(path string) ([]byte, error)
}

// fileBlobLoader is the default filesystem-backed BlobLoader, an idiomatic
// stand-in for the original implementation's local HTTP dev-server fetch.
type fileBlobLoader struct {
	baseDir string
}

var _ BlobLoader = (*fileBlobLoader)(nil)

// NewFileBlobLoader returns a BlobLoader rooted at baseDir.
func NewFileBlobLoader(baseDir string) BlobLoader {
	return &fileBlobLoader{baseDir: baseDir}
}

func (l *fileBlobLoader) Load(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.baseDir, path))
}
