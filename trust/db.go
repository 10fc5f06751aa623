package trust

import (
	"time"
)

// Outcome reports whether an admission operation changed the database.
type Outcome int

const (
	// Updated indicates the call replaced (or established) trusted state.
	Updated Outcome = iota
	// NoOp indicates the provided version/bytes matched what was already
	// trusted; the database is unchanged.
	NoOp
)

// edgeKey identifies one delegation edge: a specific parent role handing
// trust for some paths to a specific named child. The same child name can
// be reached through more than one parent edge, and those edges are
// verified and admitted completely independently, so this -- not the bare
// child name -- is the database's key.
type edgeKey struct {
	parent string
	child  string
}

// trustedDelegation is what the database retains for one admitted
// delegation edge.
type trustedDelegation struct {
	targets     *Envelope[SignedTargets]
	parent      string
	child       string
	patterns    []string
	terminating bool
	admitted    MetadataDescription
}

// Database is the in-memory TUF trust database. It holds the currently
// trusted root, timestamp, snapshot and top-level targets metadata, the
// delegation graph built from admitted delegated targets metadata, and
// resolves target paths against that graph.
//
// Database is a single-owner structure: admission methods and
// TargetDescription must not be called concurrently on the same instance.
// It does not bake in a lock; callers needing concurrent access must
// provide their own reader-writer discipline.
type Database struct {
	ic      Interchange
	checker SignatureChecker
	clock   Clock

	maxRootRotations int

	root      *Envelope[SignedRoot]
	timestamp *Envelope[SignedTimestamp]
	snapshot  *Envelope[SignedSnapshot]
	targets   *Envelope[SignedTargets]

	edges map[edgeKey]*trustedDelegation
}

// New constructs a Database from a single trusted raw root. The root is
// accepted as given: its own signatures are checked against its own
// declared root role (self-consistency), but its expiration is not
// checked -- root rotations, including the very first one a caller
// performs, may proceed from an expired anchor.
func New(rawRoot []byte, opts ...Option) (*Database, error) {
	db := &Database{
		ic:      CanonicalJSON{},
		checker: DefaultChecker{},
		clock:   systemClock(),
		edges:   make(map[edgeKey]*trustedDelegation),
	}
	for _, opt := range opts {
		switch t := opt().(type) {
		case clockOption:
			db.clock = t.clock
		case maxRootRotationsOption:
			db.maxRootRotations = t.max
		case checkerOption:
			db.checker = t.checker
		case interchangeOption:
			db.ic = t.ic
		}
	}

	env, err := DecodeEnvelope[SignedRoot](rawRoot, db.ic)
	if err != nil {
		return nil, err
	}
	if err := validateRootKeyTable(*env); err != nil {
		return nil, err
	}
	def, err := requireRoleDef(env.Signed, roleRoot)
	if err != nil {
		return nil, err
	}
	if err := verifyThreshold(db.checker, roleRoot, env.canonicalBytes, env.Signatures, env.Signed.Keys, def.KeyIDs, def.Threshold); err != nil {
		return nil, err
	}
	db.root = env
	return db, nil
}

func validateRootKeyTable(env Envelope[SignedRoot]) error {
	for name, def := range env.Signed.Roles {
		if err := validateRoleDef(def); err != nil {
			return &MalformedMetadataError{Reason: "role " + name + ": " + err.Error()}
		}
		for _, id := range def.KeyIDs {
			if _, ok := env.Signed.Keys[id]; !ok {
				return &MalformedMetadataError{Reason: "role " + name + " references unknown key " + string(id)}
			}
		}
	}
	return nil
}

func requireRoleDef(root SignedRoot, role string) (RoleDef, error) {
	def, ok := root.Roles[role]
	if !ok {
		return RoleDef{}, &MalformedMetadataError{Reason: "root is missing role definition for " + role}
	}
	return def, nil
}

// UpdateRoot admits a new root version. Per the TUF root-rotation rule
// the new envelope must verify against both the currently-trusted
// root's key set/threshold (it was produced with the outgoing quorum's
// consent) and its own declared key set/threshold (the incoming quorum
// accepts the handoff). Expiration is never checked for root. On success,
// every currently-held timestamp/snapshot/targets/delegation whose signing
// keys are no longer authorized under the new root is invalidated and must
// be re-admitted.
func (db *Database) UpdateRoot(raw []byte) (Outcome, error) {
	env, err := DecodeEnvelope[SignedRoot](raw, db.ic)
	if err != nil {
		return 0, err
	}
	if err := validateRootKeyTable(*env); err != nil {
		return 0, err
	}

	if env.Signed.Version == db.root.Signed.Version {
		if string(env.canonicalBytes) == string(db.root.canonicalBytes) {
			return NoOp, nil
		}
		return 0, &VersionLessThanCurrentError{Role: roleRoot, Got: env.Signed.Version, Current: db.root.Signed.Version}
	}
	if env.Signed.Version < db.root.Signed.Version {
		return 0, &VersionLessThanCurrentError{Role: roleRoot, Got: env.Signed.Version, Current: db.root.Signed.Version}
	}
	if db.maxRootRotations > 0 && env.Signed.Version-db.root.Signed.Version > db.maxRootRotations {
		return 0, &NotAuthorizedError{Detail: "root rotation exceeds configured maximum consecutive versions"}
	}

	outgoingDef, err := requireRoleDef(db.root.Signed, roleRoot)
	if err != nil {
		return 0, err
	}
	if err := verifyThreshold(db.checker, roleRoot, env.canonicalBytes, env.Signatures, db.root.Signed.Keys, outgoingDef.KeyIDs, outgoingDef.Threshold); err != nil {
		return 0, err
	}

	incomingDef, err := requireRoleDef(env.Signed, roleRoot)
	if err != nil {
		return 0, err
	}
	if err := verifyThreshold(db.checker, roleRoot, env.canonicalBytes, env.Signatures, env.Signed.Keys, incomingDef.KeyIDs, incomingDef.Threshold); err != nil {
		return 0, err
	}

	db.root = env
	db.invalidateAfterRootRotation()
	return Updated, nil
}

// invalidateAfterRootRotation discards any currently-held timestamp,
// snapshot, top-level targets or delegation whose admission no longer
// satisfies the new root's key sets, cascading: losing the top-level
// targets role drops every delegation reached through it.
func (db *Database) invalidateAfterRootRotation() {
	if db.timestamp != nil {
		def, err := requireRoleDef(db.root.Signed, roleTimestamp)
		if err != nil || verifyThreshold(db.checker, roleTimestamp, db.timestamp.canonicalBytes, db.timestamp.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold) != nil {
			db.timestamp = nil
		}
	}
	if db.snapshot != nil {
		def, err := requireRoleDef(db.root.Signed, roleSnapshot)
		if err != nil || verifyThreshold(db.checker, roleSnapshot, db.snapshot.canonicalBytes, db.snapshot.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold) != nil {
			db.snapshot = nil
		}
	}
	if db.targets != nil {
		def, err := requireRoleDef(db.root.Signed, roleTargets)
		if err != nil || verifyThreshold(db.checker, roleTargets, db.targets.canonicalBytes, db.targets.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold) != nil {
			db.targets = nil
		}
	}
	if db.targets == nil {
		db.edges = make(map[edgeKey]*trustedDelegation)
	}
}

// UpdateTimestamp admits a new timestamp version.
func (db *Database) UpdateTimestamp(raw []byte) (Outcome, error) {
	env, err := DecodeEnvelope[SignedTimestamp](raw, db.ic)
	if err != nil {
		return 0, err
	}
	def, err := requireRoleDef(db.root.Signed, roleTimestamp)
	if err != nil {
		return 0, err
	}
	if err := verifyThreshold(db.checker, roleTimestamp, env.canonicalBytes, env.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold); err != nil {
		return 0, err
	}

	if db.timestamp != nil {
		if env.Signed.Version == db.timestamp.Signed.Version {
			if string(env.canonicalBytes) == string(db.timestamp.canonicalBytes) {
				return NoOp, nil
			}
			return 0, &VersionLessThanCurrentError{Role: roleTimestamp, Got: env.Signed.Version, Current: db.timestamp.Signed.Version}
		}
		if env.Signed.Version < db.timestamp.Signed.Version {
			return 0, &VersionLessThanCurrentError{Role: roleTimestamp, Got: env.Signed.Version, Current: db.timestamp.Signed.Version}
		}
	}
	if err := checkExpiration(db.clock, roleTimestamp, env.Signed.Expires); err != nil {
		return 0, err
	}

	db.timestamp = env
	return Updated, nil
}

// UpdateSnapshot admits a new snapshot version. It requires a currently
// trusted timestamp naming a matching snapshot description. On
// replacement, any admitted top-level targets or delegation whose
// description in the new snapshot no longer matches what it was admitted
// under is evicted and must be re-admitted.
func (db *Database) UpdateSnapshot(raw []byte) (Outcome, error) {
	if db.timestamp == nil {
		return 0, &MetadataNotFoundError{Path: roleTimestamp}
	}
	env, err := DecodeEnvelope[SignedSnapshot](raw, db.ic)
	if err != nil {
		return 0, err
	}

	wantDesc, ok := db.timestamp.Signed.Meta[roleSnapshot]
	if !ok {
		return 0, &MalformedMetadataError{Reason: "timestamp does not describe a snapshot"}
	}
	if !wantDesc.matches(env.Signed.Version, int64(len(env.canonicalBytes)), hashesOf(env.canonicalBytes)) {
		return 0, &MalformedMetadataError{Reason: "snapshot does not match timestamp description"}
	}

	def, err := requireRoleDef(db.root.Signed, roleSnapshot)
	if err != nil {
		return 0, err
	}
	if err := verifyThreshold(db.checker, roleSnapshot, env.canonicalBytes, env.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold); err != nil {
		return 0, err
	}

	if db.snapshot != nil {
		if env.Signed.Version == db.snapshot.Signed.Version {
			if string(env.canonicalBytes) == string(db.snapshot.canonicalBytes) {
				return NoOp, nil
			}
			return 0, &VersionLessThanCurrentError{Role: roleSnapshot, Got: env.Signed.Version, Current: db.snapshot.Signed.Version}
		}
		if env.Signed.Version < db.snapshot.Signed.Version {
			return 0, &VersionLessThanCurrentError{Role: roleSnapshot, Got: env.Signed.Version, Current: db.snapshot.Signed.Version}
		}
	}
	if err := checkExpiration(db.clock, roleSnapshot, env.Signed.Expires); err != nil {
		return 0, err
	}

	db.snapshot = env
	db.evictStaleAgainstSnapshot()
	return Updated, nil
}

// evictStaleAgainstSnapshot drops the top-level targets and any delegation
// whose admitted description (version/length/hashes) no longer matches
// what the current snapshot declares.
func (db *Database) evictStaleAgainstSnapshot() {
	if db.targets != nil {
		desc, ok := db.snapshot.Signed.Meta[roleTargets]
		if !ok || !desc.matches(db.targets.Signed.Version, int64(len(db.targets.canonicalBytes)), hashesOf(db.targets.canonicalBytes)) {
			db.targets = nil
			db.edges = make(map[edgeKey]*trustedDelegation)
		}
	}
	if db.targets == nil {
		return
	}
	for key, d := range db.edges {
		desc, ok := db.snapshot.Signed.Meta[d.child]
		if !ok || !desc.matches(d.targets.Signed.Version, int64(len(d.targets.canonicalBytes)), hashesOf(d.targets.canonicalBytes)) {
			delete(db.edges, key)
		}
	}
}

// UpdateTargets admits a new top-level targets version.
func (db *Database) UpdateTargets(raw []byte) (Outcome, error) {
	if db.snapshot == nil {
		return 0, &MetadataNotFoundError{Path: roleSnapshot}
	}
	env, err := DecodeEnvelope[SignedTargets](raw, db.ic)
	if err != nil {
		return 0, err
	}

	desc, ok := db.snapshot.Signed.Meta[roleTargets]
	if !ok {
		return 0, &MalformedMetadataError{Reason: "snapshot does not describe targets"}
	}
	if !desc.matches(env.Signed.Version, int64(len(env.canonicalBytes)), hashesOf(env.canonicalBytes)) {
		return 0, &MalformedMetadataError{Reason: "targets does not match snapshot description"}
	}

	def, err := requireRoleDef(db.root.Signed, roleTargets)
	if err != nil {
		return 0, err
	}
	if err := verifyThreshold(db.checker, roleTargets, env.canonicalBytes, env.Signatures, db.root.Signed.Keys, def.KeyIDs, def.Threshold); err != nil {
		return 0, err
	}

	if db.targets != nil {
		if env.Signed.Version == db.targets.Signed.Version {
			if string(env.canonicalBytes) == string(db.targets.canonicalBytes) {
				return NoOp, nil
			}
			return 0, &VersionLessThanCurrentError{Role: roleTargets, Got: env.Signed.Version, Current: db.targets.Signed.Version}
		}
		if env.Signed.Version < db.targets.Signed.Version {
			return 0, &VersionLessThanCurrentError{Role: roleTargets, Got: env.Signed.Version, Current: db.targets.Signed.Version}
		}
	}
	if err := checkExpiration(db.clock, roleTargets, env.Signed.Expires); err != nil {
		return 0, err
	}

	db.targets = env
	return Updated, nil
}

// UpdateDelegation admits a delegated targets role reached from parentPath
// via the delegation record named childPath. Admission is atomic: any
// failure leaves the database exactly as it was.
func (db *Database) UpdateDelegation(parentPath, childPath string, raw []byte) (Outcome, error) {
	if db.snapshot == nil {
		return 0, &MetadataNotFoundError{Path: roleSnapshot}
	}
	parentSigned, parentKeys, err := db.resolveParent(parentPath)
	if err != nil {
		return 0, err
	}

	record, err := firstMatchingRecord(parentSigned, childPath)
	if err != nil {
		return 0, err
	}

	env, err := DecodeEnvelope[SignedTargets](raw, db.ic)
	if err != nil {
		return 0, err
	}

	if err := verifyThreshold(db.checker, childPath, env.canonicalBytes, env.Signatures, parentKeys, record.KeyIDs, record.Threshold); err != nil {
		return 0, err
	}

	desc, ok := db.snapshot.Signed.Meta[childPath]
	if !ok {
		return 0, &MalformedMetadataError{Reason: "snapshot does not describe " + childPath}
	}
	if !desc.matches(env.Signed.Version, int64(len(env.canonicalBytes)), hashesOf(env.canonicalBytes)) {
		return 0, &MalformedMetadataError{Reason: childPath + " does not match snapshot description"}
	}

	key := edgeKey{parent: parentPath, child: childPath}
	if existing, ok := db.edges[key]; ok {
		if env.Signed.Version == existing.targets.Signed.Version {
			if string(env.canonicalBytes) == string(existing.targets.canonicalBytes) {
				return NoOp, nil
			}
			return 0, &VersionLessThanCurrentError{Role: childPath, Got: env.Signed.Version, Current: existing.targets.Signed.Version}
		}
		if env.Signed.Version < existing.targets.Signed.Version {
			return 0, &VersionLessThanCurrentError{Role: childPath, Got: env.Signed.Version, Current: existing.targets.Signed.Version}
		}
	}
	if err := checkExpiration(db.clock, childPath, env.Signed.Expires); err != nil {
		return 0, err
	}

	db.edges[key] = &trustedDelegation{
		targets:     env,
		parent:      parentPath,
		child:       childPath,
		patterns:    record.Paths,
		terminating: record.Terminating,
		admitted:    desc,
	}
	return Updated, nil
}

// resolveParent looks up the signed targets payload and delegation key
// table for parentPath: either the top-level targets role, or a
// previously-admitted delegation.
func (db *Database) resolveParent(parentPath string) (*SignedTargets, map[KeyID]Key, error) {
	if parentPath == topLevelTargetsPath {
		if db.targets == nil {
			return nil, nil, &MetadataNotFoundError{Path: parentPath}
		}
		keys := map[KeyID]Key{}
		if db.targets.Signed.Delegations != nil {
			keys = db.targets.Signed.Delegations.Keys
		}
		return &db.targets.Signed, keys, nil
	}
	// A parent delegation is identified by the edge that admitted it. Since
	// UpdateDelegation is only ever called with parentPath naming a role
	// this database itself admitted as a child of some earlier call, any
	// edge ending in parentPath names the right signed payload and key
	// table: the payload is the same regardless of which edge reached it.
	for k, d := range db.edges {
		if k.child == parentPath {
			keys := map[KeyID]Key{}
			if d.targets.Signed.Delegations != nil {
				keys = d.targets.Signed.Delegations.Keys
			}
			return &d.targets.Signed, keys, nil
		}
	}
	return nil, nil, &MetadataNotFoundError{Path: parentPath}
}

// firstMatchingRecord returns the first delegation record in parent whose
// Name equals childPath. First-match is authoritative: the list is ordered
// and later records with the same name are never consulted.
func firstMatchingRecord(parent *SignedTargets, childPath string) (*DelegationRecord, error) {
	if parent.Delegations == nil {
		return nil, &NotAuthorizedError{Detail: childPath + " is not delegated by its claimed parent"}
	}
	for i := range parent.Delegations.Roles {
		if parent.Delegations.Roles[i].Name == childPath {
			return &parent.Delegations.Roles[i], nil
		}
	}
	return nil, &NotAuthorizedError{Detail: childPath + " is not delegated by its claimed parent"}
}

func checkExpiration(clock Clock, role string, expires time.Time) error {
	now := clock.Now()
	if now.After(expires) {
		return &ExpiredError{Role: role, ExpiredAt: expires}
	}
	return nil
}

// TrustedRoot returns the currently trusted root envelope.
func (db *Database) TrustedRoot() *Envelope[SignedRoot] { return db.root }

// TrustedTimestamp returns the currently trusted timestamp envelope, or nil
// if none is currently trusted.
func (db *Database) TrustedTimestamp() *Envelope[SignedTimestamp] { return db.timestamp }

// TrustedSnapshot returns the currently trusted snapshot envelope, or nil.
func (db *Database) TrustedSnapshot() *Envelope[SignedSnapshot] { return db.snapshot }

// TrustedTargets returns the currently trusted top-level targets envelope,
// or nil.
func (db *Database) TrustedTargets() *Envelope[SignedTargets] { return db.targets }
