// Package modelstore persists the selected model bundle as a single named
// uint8 dataset inside the model container file.
package modelstore

import (
	"fmt"

	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/monitoring"
)

// DatasetName is the dataset holding the encoded bundle.
const DatasetName = "model"

// Save writes blob to path, replacing any existing file.
func Save(path string, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("save model: empty blob")
	}
	if err := writeBlob(path, blob); err != nil {
		return errs.External("write "+Backend+" model file", err)
	}
	monitoring.Logf("model saved to %s (%s, %d bytes)", path, Backend, len(blob))
	return nil
}

// Load reads the blob written by Save.
func Load(path string) ([]byte, error) {
	blob, err := readBlob(path)
	if err != nil {
		return nil, errs.External("read "+Backend+" model file", err)
	}
	return blob, nil
}
