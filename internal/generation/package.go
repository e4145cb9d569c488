package generation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"time"
)

// Package writes the artifact files into a zip archive and returns its bytes.
// Entries are sorted by path and carry modTime so equal inputs produce equal archives.
func Package(a *Artifact, modTime time.Time) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(a.Files))
	for p := range a.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p,
			Method:   zip.Deflate,
			Modified: modTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", p, err)
		}
		if _, err := w.Write([]byte(a.Files[p])); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
