//go:build nohdf5

package modelstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Backend names the container format compiled in. Builds tagged nohdf5
// (no cgo or no libhdf5) use a flat single-dataset container that only
// this package can read.
const Backend = "flat"

var magic = []byte("LEARNER\x00")

// Layout: magic, uint16 name length, name, uint64 blob length, blob.
func writeBlob(path string, blob []byte) error {
	var buf bytes.Buffer
	buf.Write(magic)
	binary.Write(&buf, binary.LittleEndian, uint16(len(DatasetName)))
	buf.WriteString(DatasetName)
	binary.Write(&buf, binary.LittleEndian, uint64(len(blob)))
	buf.Write(blob)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readBlob(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	head := make([]byte, len(magic))
	if _, err := r.Read(head); err != nil || !bytes.Equal(head, magic) {
		return nil, fmt.Errorf("%s: not a model container", path)
	}
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("%s: truncated header: %w", path, err)
	}
	name := make([]byte, nameLen)
	if _, err := r.Read(name); err != nil || string(name) != DatasetName {
		return nil, fmt.Errorf("%s: dataset %q not found", path, DatasetName)
	}
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%s: truncated header: %w", path, err)
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("%s: dataset %q truncated", path, DatasetName)
	}
	blob := make([]byte, n)
	_, _ = r.Read(blob)
	return blob, nil
}
