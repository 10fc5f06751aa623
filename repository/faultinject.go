package repository

import (
	"sync"

	"github.com/kolide/trustdb/trust"
)

// FaultInjectingStorage wraps a DiskStorage (or any SaveRole-shaped
// collaborator) and lets a test flip on a forced write failure without
// touching the real persistence path. It exists purely so integration
// tests can exercise a fetcher's behavior when persisting admitted
// metadata fails partway through an update cycle.
type FaultInjectingStorage struct {
	roleSaver

	mu                 sync.Mutex
	failMetadataStores bool
}

type roleSaver interface {
	SaveRole(name string, raw []byte) error
}

// NewFaultInjectingStorage wraps saver.
func NewFaultInjectingStorage(saver roleSaver) *FaultInjectingStorage {
	return &FaultInjectingStorage{roleSaver: saver}
}

// FailMetadataStores toggles whether SaveRole calls fail from this point
// forward.
func (f *FaultInjectingStorage) FailMetadataStores(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMetadataStores = fail
}

// SaveRole implements roleSaver, failing with an EncodingError when fault
// injection is armed instead of delegating to the wrapped storage.
func (f *FaultInjectingStorage) SaveRole(name string, raw []byte) error {
	f.mu.Lock()
	fail := f.failMetadataStores
	f.mu.Unlock()
	if fail {
		return &trust.EncodingError{Detail: "simulated metadata store failure for " + name}
	}
	return f.roleSaver.SaveRole(name, raw)
}
