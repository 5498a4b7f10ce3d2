//go:build !nohdf5

package modelstore

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// Backend names the container format compiled in.
const Backend = "hdf5"

func writeBlob(path string, blob []byte) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()

	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(blob))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := f.CreateDataset(DatasetName, hdf5.T_NATIVE_UINT8, space)
	if err != nil {
		return err
	}
	defer dset.Close()
	return dset.Write(&blob)
}

func readBlob(path string) ([]byte, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dset, err := f.OpenDataset(DatasetName)
	if err != nil {
		return nil, fmt.Errorf("open dataset %q: %w", DatasetName, err)
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	blob := make([]byte, space.SimpleExtentNPoints())
	if err := dset.Read(&blob); err != nil {
		return nil, err
	}
	return blob, nil
}
