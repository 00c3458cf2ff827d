package paper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SidecarSuffix names the metadata file stored next to a downloaded paper.
const SidecarSuffix = "_meta.json"

// SidecarPath returns the metadata path for paperID inside dir.
func SidecarPath(dir, paperID string) string {
	return filepath.Join(dir, paperID+SidecarSuffix)
}

// SidecarFor returns the metadata path belonging to a document file.
func SidecarFor(docPath string) string {
	return SidecarPath(filepath.Dir(docPath), PaperIDFromFilename(docPath))
}

// WriteSidecar stores m as indented JSON.
func WriteSidecar(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadSidecar loads metadata from path. A missing file is not an error and
// yields nil.
func ReadSidecar(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &m, nil
}
