package table

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// DecodeReader picks the format from the file name extension.
func DecodeReader(r io.Reader, filename string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return DecodeCSV(r)
	case ".xlsx", ".xlsm":
		return DecodeXLSX(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", appErrors.ErrDecode, filepath.Ext(filename))
	}
}

// FileDecoder reads uploaded files from a directory. Refs are file names
// relative to Dir, optionally prefixed with "file://".
type FileDecoder struct {
	Dir string
}

func (d *FileDecoder) Decode(ctx context.Context, ref string) (*Table, error) {
	name := strings.TrimPrefix(ref, "file://")
	if name == "" || filepath.IsAbs(name) || strings.Contains(filepath.ToSlash(name), "../") {
		return nil, fmt.Errorf("%w: invalid table ref %q", appErrors.ErrDecode, ref)
	}

	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDecode, err)
	}
	defer f.Close()

	return DecodeReader(f, name)
}

// Save stores an upload under Dir and returns the ref that Decode accepts.
// The original extension is kept so the format can be picked later.
func (d *FileDecoder) Save(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".txt", ".xlsx", ".xlsm":
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", appErrors.ErrDecode, ext)
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return "file://" + name, nil
}
