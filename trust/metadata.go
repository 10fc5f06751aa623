// Package trust implements the in-memory TUF trust database: the component
// that holds currently-trusted root, timestamp, snapshot and targets
// metadata, admits delegated targets metadata against the delegation graph,
// and resolves target paths to their cryptographic description.
//
// It performs no network or disk I/O. Callers hand it metadata bytes fetched
// by a repository.Provider (or equivalent) in the order mandated by the TUF
// specification: timestamp, then snapshot, then top-level targets, then
// delegated targets.
package trust

import (
	"encoding/json"
	"time"
)

// KeyID identifies a Key by the digest of its canonical representation.
type KeyID string

// Key is a public signing key as it appears in a root or delegations key
// table. Only the public half is ever held here; crypto material is
// value-typed and copied on extraction.
type Key struct {
	KeyType string `json:"keytype"`
	Scheme  string `json:"scheme,omitempty"`
	KeyVal  KeyVal `json:"keyval"`
}

// KeyVal carries the public key material. Private is never populated by
// this package; it exists only so that key files produced by a builder
// round-trip without losing the field.
type KeyVal struct {
	Public  string `json:"public"`
	Private string `json:"private,omitempty"`
}

// Signature is a single signature over a role's canonical signed bytes.
type Signature struct {
	KeyID  KeyID  `json:"keyid"`
	Method string `json:"method,omitempty"`
	Value  string `json:"sig"`
}

// RoleDef names the keys authorized for a role and the threshold of
// distinct signatures required to accept it.
type RoleDef struct {
	KeyIDs    []KeyID `json:"keyids"`
	Threshold int     `json:"threshold"`
}

// MetadataDescription is how the snapshot and timestamp roles describe a
// piece of metadata they reference. Length and Hashes may be absent (TUF
// permits minimal descriptions); Version must always be present.
type MetadataDescription struct {
	Length  *int64            `json:"length,omitempty"`
	Hashes  map[string]string `json:"hashes,omitempty"`
	Version int               `json:"version"`
}

// matches reports whether this description is consistent with a candidate
// (version, length, hashes). Only fields present on the description side
// are checked: minimal descriptions constrain less.
func (d MetadataDescription) matches(version int, length int64, hashes map[string]string) bool {
	if d.Version != version {
		return false
	}
	if d.Length != nil && *d.Length != length {
		return false
	}
	for algo, want := range d.Hashes {
		got, ok := hashes[algo]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// TargetDescription is the cryptographic description of a named artifact:
// its length and a set of hash digests, plus arbitrary publisher-supplied
// custom data.
type TargetDescription struct {
	Length int64             `json:"length"`
	Hashes map[string]string `json:"hashes"`
	Custom *json.RawMessage  `json:"custom,omitempty"`
}

// SignedRoot is the signed payload of the root role: the trust anchor. It
// names every authorized key and, for each top-level role, the key subset
// and threshold required to accept that role's metadata.
type SignedRoot struct {
	Type               string             `json:"_type"`
	ConsistentSnapshot bool               `json:"consistent_snapshot"`
	Expires            time.Time          `json:"expires"`
	Version            int                `json:"version"`
	Keys               map[KeyID]Key      `json:"keys"`
	Roles              map[string]RoleDef `json:"roles"`
}

// SignedTimestamp is the signed payload of the timestamp role: a pointer to
// the current snapshot description.
type SignedTimestamp struct {
	Type    string                         `json:"_type"`
	Expires time.Time                      `json:"expires"`
	Version int                            `json:"version"`
	Meta    map[string]MetadataDescription `json:"meta"`
}

// SignedSnapshot is the signed payload of the snapshot role: version
// pointers to the top-level targets metadata and every delegated targets
// metadata.
type SignedSnapshot struct {
	Type    string                         `json:"_type"`
	Expires time.Time                      `json:"expires"`
	Version int                            `json:"version"`
	Meta    map[string]MetadataDescription `json:"meta"`
}

// SignedTargets is the signed payload shared by the top-level targets role
// and every delegated targets role.
type SignedTargets struct {
	Type        string                       `json:"_type"`
	Expires     time.Time                    `json:"expires"`
	Version     int                          `json:"version"`
	Targets     map[string]TargetDescription `json:"targets"`
	Delegations *Delegations                 `json:"delegations,omitempty"`
}

// Delegations is the key table and ordered delegation list carried by a
// targets role that hands off trust for some paths to other roles.
type Delegations struct {
	Keys  map[KeyID]Key      `json:"keys"`
	Roles []DelegationRecord `json:"roles"`
}

// DelegationRecord is one entry in a Delegations list. Order within the
// containing slice is semantically significant: resolution consults the
// first record whose Name matches a given child, and iterates records in
// order looking for a path match, so this must stay a slice, never a map.
type DelegationRecord struct {
	Name        string   `json:"name"`
	KeyIDs      []KeyID  `json:"keyids"`
	Threshold   int      `json:"threshold"`
	Terminating bool     `json:"terminating"`
	Paths       []string `json:"paths"`
}

const (
	topLevelTargetsPath = "targets"

	roleRoot      = "root"
	roleTimestamp = "timestamp"
	roleSnapshot  = "snapshot"
	roleTargets   = "targets"
)
