package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/tiptrails/internal/storage/memory/export/v1"
	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrUnknownSession is returned when a session is not held in memory.
var ErrUnknownSession = errors.New("unknown session")

// ExportFileName is "<name>_<yyyymmdd_hhmmss>.json", plus ".gz" when compressed.
func ExportFileName(s core.Session, compress bool) string {
	name := fmt.Sprintf("%s_%s.json", util.SafeFileName(s.Name), s.StartTime.UTC().Format("20060102_150405"))
	if compress {
		name += ".gz"
	}
	return name
}

// WriteExport builds the v1 export of rec and writes it into dir.
// It returns the path written.
func WriteExport(dir string, compress bool, rec *core.Recording) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(rec.Session, compress))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, compress, rec); err != nil {
		return "", err
	}
	return path, f.Close()
}

// Encode writes the v1 export of rec to w, gzipped when compress is set.
func Encode(w io.Writer, compress bool, rec *core.Recording) error {
	export := v1.Build(rec)

	if !compress {
		if err := json.NewEncoder(w).Encode(export); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		return nil
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// ReadExport decodes a file written by WriteExport.
func ReadExport(path string) (v1.Export, error) {
	var out v1.Export
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return out, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode export: %w", err)
	}
	return out, nil
}
