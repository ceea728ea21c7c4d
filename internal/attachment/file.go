// Package attachment turns user files into inline note attachments that fit
// a shared byte budget.
package attachment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// BlobReader gives access to the content of a file.
type BlobReader interface {
	ReadBlob(ctx context.Context) ([]byte, error)
}

// Bytes is an in-memory blob.
type Bytes []byte

// ReadBlob implements BlobReader.
func (b Bytes) ReadBlob(context.Context) ([]byte, error) {
	return b, nil
}

// PathBlob reads a blob from the filesystem.
type PathBlob string

// ReadBlob implements BlobReader.
func (p PathBlob) ReadBlob(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", string(p), err)
	}
	return data, nil
}

// File is a candidate attachment. Type may be empty, in which case it is
// detected from the content.
type File struct {
	Name string
	Type string
	Size int64
	Blob BlobReader
}

// FileFromPath describes the file at path. The MIME type is left for
// detection at ingestion time.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("os.Stat(%s) > %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Blob: PathBlob(path),
	}, nil
}

// FileFromBytes describes an in-memory file.
func FileFromBytes(name, mimeType string, data []byte) File {
	return File{Name: name, Type: mimeType, Size: int64(len(data)), Blob: Bytes(data)}
}

// DetectType returns the declared type, or the type sniffed from data when
// none was declared.
func DetectType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// IsRasterImage reports whether the type is an image the encoder can decode.
func IsRasterImage(mimeType string) bool {
	mediaType, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	mediaType = strings.TrimSpace(mediaType)
	return strings.HasPrefix(mediaType, "image/") && mediaType != "image/svg+xml"
}
