package utils

import (
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicWrite writes data next to name and renames it into place, so readers
// never observe a partially written file. The temporary file is removed on
// failure.
func AtomicWrite(name string, data []byte, perm fs.FileMode) (err error) {
	fd, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fd.Close()
			os.Remove(fd.Name())
		}
	}()
	if _, err = fd.Write(data); err != nil {
		return err
	}
	// os.CreateTemp always creates file with 0600
	if perm != 0600 {
		if err = fd.Chmod(perm); err != nil {
			return err
		}
	}
	if err = fd.Sync(); err != nil {
		return err
	}
	if err = fd.Close(); err != nil {
		return err
	}
	return os.Rename(fd.Name(), name)
}
