package render

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// WriteResult describes one written preview.
type WriteResult struct {
	Path         string
	BytesWritten int64
	Created      bool
	Checksum     string
}

// Write stores previews under dir, keeping each file's absolute path
// below it: /etc/neutron/neutron.conf is written to
// dir/etc/neutron/neutron.conf. dir must not be empty or "/".
func Write(dir string, files []File) ([]WriteResult, error) {
	if dir == "" {
		return nil, engine.NewPermanentError("an output directory is required", nil).
			WithCode(engine.ErrCodeInvalidInput)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if root == string(filepath.Separator) {
		return nil, engine.NewPermanentError("refusing to write previews over /", nil).
			WithCode(engine.ErrCodeInvalidInput).WithSubject(dir)
	}

	results := make([]WriteResult, 0, len(files))
	for _, f := range files {
		// Cleaning against "/" keeps ".." from climbing out of root.
		target := filepath.Join(root, filepath.Clean("/"+f.Path))

		_, err := os.Stat(target)
		exists := err == nil

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(target, f.Content, 0o640); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}

		hash := sha256.Sum256(f.Content)
		results = append(results, WriteResult{
			Path:         target,
			BytesWritten: int64(len(f.Content)),
			Created:      !exists,
			Checksum:     fmt.Sprintf("%x", hash),
		})
	}

	return results, nil
}
