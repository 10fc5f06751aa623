package repository

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DiskProvider reads roles and targets already cached to a local
// directory of <role>.json files, with a delegated role's name mapping to
// a nested directory when it carries path separators.
type DiskProvider struct {
	Root string
}

// FetchRole implements Provider.
func (d *DiskProvider) FetchRole(name string) ([]byte, error) {
	return d.read(filepath.Join(d.Root, fmt.Sprintf("%s.json", name)))
}

// FetchTarget implements Provider.
func (d *DiskProvider) FetchTarget(path string) ([]byte, error) {
	return d.read(filepath.Join(d.Root, "targets", path))
}

func (d *DiskProvider) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "opening cached role")
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, errors.Wrap(err, "reading cached role")
	}
	return buf.Bytes(), nil
}

// DiskStorage persists raw role bytes to Root, mirroring what the Fetcher
// admitted into the trust database, so a later process restart can start
// from the last-known-good state rather than an empty anchor.
type DiskStorage struct {
	Root string
}

// SaveRole writes raw bytes for a role name, creating any nested
// directories a delegated role's name implies.
func (d *DiskStorage) SaveRole(name string, raw []byte) error {
	return d.write(filepath.Join(d.Root, fmt.Sprintf("%s.json", name)), raw)
}

// SaveTarget writes raw target bytes under the targets directory.
func (d *DiskStorage) SaveTarget(path string, raw []byte) error {
	return d.write(filepath.Join(d.Root, "targets", path), raw)
}

func (d *DiskStorage) write(path string, raw []byte) error {
	if dir := filepath.Dir(path); dir != d.Root {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating directory for %q", path)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "opening file for write")
	}
	defer f.Close()
	written, err := io.Copy(f, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "writing to disk")
	}
	if written != int64(len(raw)) {
		return errors.New("incomplete write to disk")
	}
	return nil
}
