// package formatter reads and writes export archives and renders sync results for the terminal
package formatter

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/go-playground/validator/v10"
)

const (
	// Megabyte is the SI megabyte import documents are measured against.
	Megabyte = 1000 * 1000
	// MaxImportSize is the largest import document accepted, archived or not.
	MaxImportSize = Megabyte

	// ExportFile is the archive entry holding the export document.
	ExportFile = "export.json"
	// ErrorsFile is the archive entry holding playlists that could not be exported.
	ErrorsFile = "errors.json"
)

// Reasons shown to users when an import document is rejected.
const (
	NoFileReason        = "A file was either not provided or could not be received."
	FileTooLargeReason  = "The file provided was too large. Import files may be 1 MB or smaller."
	InvalidFormatReason = "The import file must be a JSON file that was exported from the Playlists page."
)

var documentValidator = validator.New()

// RejectionReason returns the user-facing reason for an error from [ReadImportDocument].
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrNoFile):
		return NoFileReason
	case errors.Is(err, shared.ErrFileTooLarge):
		return FileTooLargeReason
	default:
		return InvalidFormatReason
	}
}

// WriteExportArchive writes a ZIP archive of playlists to w.
//
// Hydrated playlists go to [ExportFile], which is always present. Error records are split out
// into [ErrorsFile] so the export document stays importable; that entry is omitted when every
// playlist was hydrated.
func WriteExportArchive(w io.Writer, playlists []models.HydratedPlaylist) error {
	ok, failed := models.SplitFailed(playlists)
	if ok == nil {
		ok = []models.HydratedPlaylist{}
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	if err := writeArchiveEntry(zw, ExportFile, ok); err != nil {
		return err
	}
	if len(failed) > 0 {
		if err := writeArchiveEntry(zw, ErrorsFile, failed); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writeArchiveEntry(zw *zip.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// WriteExportFile writes the export archive to path.
func WriteExportFile(path string, playlists []models.HydratedPlaylist) error {
	var buf bytes.Buffer
	if err := WriteExportArchive(&buf, playlists); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// ReadImportDocument reads an import document from r.
//
// The document is either a bare JSON array of export entries or an export archive, in which
// case [ExportFile] is read from it. Input larger than [MaxImportSize] fails with
// [shared.ErrFileTooLarge], empty input with [shared.ErrNoFile], and anything that does not
// parse as a list of playlists with [shared.ErrInvalidFormat].
func ReadImportDocument(r io.Reader) ([]models.HydratedPlaylist, error) {
	if r == nil {
		return nil, shared.ErrNoFile
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNoFile, err)
	}
	switch {
	case len(data) == 0:
		return nil, shared.ErrNoFile
	case len(data) > MaxImportSize:
		return nil, shared.ErrFileTooLarge
	}

	if isZip(data) {
		if data, err = readArchiveEntry(data, ExportFile); err != nil {
			return nil, err
		}
	}

	var playlists []models.HydratedPlaylist
	if err := json.Unmarshal(data, &playlists); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFormat, err)
	}
	if playlists == nil {
		return nil, fmt.Errorf("%w: document is not a list of playlists", shared.ErrInvalidFormat)
	}

	for i := range playlists {
		if err := documentValidator.Struct(&playlists[i]); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", shared.ErrInvalidFormat, i, err)
		}
	}

	return playlists, nil
}

// ReadImportFile reads an import document from path.
func ReadImportFile(path string) ([]models.HydratedPlaylist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNoFile, err)
	}
	defer f.Close()

	return ReadImportDocument(f)
}

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte("PK\x05\x06"))
}

func readArchiveEntry(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFormat, err)
	}

	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: archive has no %s", shared.ErrInvalidFormat, name)
	}
	defer f.Close()

	entry, err := io.ReadAll(io.LimitReader(f, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFormat, err)
	}
	if len(entry) > MaxImportSize {
		return nil, shared.ErrFileTooLarge
	}
	return entry, nil
}
