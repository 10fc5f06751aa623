package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delegationFixture extends fixture with a top-level targets role that
// delegates "a/*" to a child role, the shared shape for the delegation
// scenarios in this file.
type delegationFixture struct {
	*fixture
	childSigner testSigner
}

func newDelegationFixture(t *testing.T, paths []string, terminating bool) *delegationFixture {
	t.Helper()
	f := newFixture(t)
	child := newTestSigner(t)

	targetsSigned := SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys: map[KeyID]Key{child.keyID: child.key()},
			Roles: []DelegationRecord{
				{Name: "child", KeyIDs: []KeyID{child.keyID}, Threshold: 1, Terminating: terminating, Paths: paths},
			},
		},
	}
	f.targetsRaw = signRaw(t, targetsSigned, f.targetsSigner)
	f.snapshotRaw = signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(f.targetsRaw, 1),
		},
	}, f.snapshotSigner)
	f.timestampRaw = signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(f.snapshotRaw, 1)},
	}, f.timestampSigner)

	return &delegationFixture{fixture: f, childSigner: child}
}

func (df *delegationFixture) childRaw(t *testing.T, td map[string]TargetDescription, delegations *Delegations, signer testSigner) []byte {
	t.Helper()
	return signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets:     td,
		Delegations: delegations,
	}, signer)
}

func TestSimpleDelegationResolves(t *testing.T) {
	df := newDelegationFixture(t, []string{"a/*"}, false)
	db := df.newDatabase(t)
	df.admitThroughTargets(t, db)

	want := TargetDescription{Length: 10, Hashes: map[string]string{"sha256": "x"}}
	childRaw := df.childRaw(t, map[string]TargetDescription{"a/file.bin": want}, nil, df.childSigner)

	// re-sign snapshot to describe this child version so admission can
	// find it, then admit timestamp/snapshot first.
	snapshot := signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 2,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(df.targetsRaw, 1),
			"child":     descriptionFor(childRaw, 1),
		},
	}, df.snapshotSigner)
	timestamp := signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 2,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(snapshot, 2)},
	}, df.timestampSigner)

	_, err := db.UpdateTimestamp(timestamp)
	require.NoError(t, err)
	_, err = db.UpdateSnapshot(snapshot)
	require.NoError(t, err)

	_, err = db.UpdateDelegation(topLevelTargetsPath, "child", childRaw)
	require.NoError(t, err)

	got, err := db.TargetDescription("a/file.bin")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = db.TargetDescription("b/file.bin")
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestBadDelegationSignatureRejected(t *testing.T) {
	df := newDelegationFixture(t, []string{"a/*"}, false)
	db := df.newDatabase(t)
	df.admitThroughTargets(t, db)

	wrongSigner := newTestSigner(t)
	childRaw := df.childRaw(t, map[string]TargetDescription{"a/file.bin": {Length: 1}}, nil, wrongSigner)

	snapshot := signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 2,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(df.targetsRaw, 1),
			"child":     descriptionFor(childRaw, 1),
		},
	}, df.snapshotSigner)
	timestamp := signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 2,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(snapshot, 2)},
	}, df.timestampSigner)
	_, err := db.UpdateTimestamp(timestamp)
	require.NoError(t, err)
	_, err = db.UpdateSnapshot(snapshot)
	require.NoError(t, err)

	_, err = db.UpdateDelegation(topLevelTargetsPath, "child", childRaw)
	var verErr *VerificationFailureError
	require.ErrorAs(t, err, &verErr)

	_, err = db.TargetDescription("a/file.bin")
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestTerminatingDelegationShortCircuits(t *testing.T) {
	f := newFixture(t)
	child := newTestSigner(t)
	sibling := newTestSigner(t)

	// "child" is terminating over a/* and listed first; "sibling" also
	// covers a/* and does declare the target.
	f.targetsRaw = signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys: map[KeyID]Key{child.keyID: child.key(), sibling.keyID: sibling.key()},
			Roles: []DelegationRecord{
				{Name: "child", KeyIDs: []KeyID{child.keyID}, Threshold: 1, Terminating: true, Paths: []string{"a/*"}},
				{Name: "sibling", KeyIDs: []KeyID{sibling.keyID}, Threshold: 1, Paths: []string{"a/*"}},
			},
		},
	}, f.targetsSigner)
	siblingRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{"a/file.bin": {Length: 1}},
	}, sibling)
	f.snapshotRaw = signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(f.targetsRaw, 1),
			"sibling":   descriptionFor(siblingRaw, 1),
		},
	}, f.snapshotSigner)
	f.timestampRaw = signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(f.snapshotRaw, 1)},
	}, f.timestampSigner)

	db := f.newDatabase(t)
	f.admitThroughTargets(t, db)
	_, err := db.UpdateDelegation(topLevelTargetsPath, "sibling", siblingRaw)
	require.NoError(t, err)

	// never admit "child": a path matching its pattern must come back
	// unavailable rather than falling through to "sibling".
	_, err = db.TargetDescription("a/file.bin")
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestNestedDelegationAdmitsOnlyThroughItsParent(t *testing.T) {
	f := newFixture(t)
	aSigner := newTestSigner(t)
	bSigner := newTestSigner(t)

	f.targetsRaw = signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{aSigner.keyID: aSigner.key()},
			Roles: []DelegationRecord{{Name: "delegation-a", KeyIDs: []KeyID{aSigner.keyID}, Threshold: 1, Paths: []string{"foo"}}},
		},
	}, f.targetsSigner)

	aRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{bSigner.keyID: bSigner.key()},
			Roles: []DelegationRecord{{Name: "delegation-b", KeyIDs: []KeyID{bSigner.keyID}, Threshold: 1, Paths: []string{"foo"}}},
		},
	}, aSigner)
	bRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{"foo": {Length: 3, Hashes: map[string]string{"sha256": "b"}}},
	}, bSigner)

	snapshot := signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{
			roleTargets:    descriptionFor(f.targetsRaw, 1),
			"delegation-a": descriptionFor(aRaw, 1),
			"delegation-b": descriptionFor(bRaw, 1),
		},
	}, f.snapshotSigner)
	timestamp := signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(snapshot, 1)},
	}, f.timestampSigner)

	db := f.newDatabase(t)
	_, err := db.UpdateTimestamp(timestamp)
	require.NoError(t, err)
	_, err = db.UpdateSnapshot(snapshot)
	require.NoError(t, err)
	_, err = db.UpdateTargets(f.targetsRaw)
	require.NoError(t, err)

	// delegation-b is delegated by delegation-a, not by the top-level
	// targets role; claiming targets as its parent must be refused.
	_, err = db.UpdateDelegation(topLevelTargetsPath, "delegation-b", bRaw)
	var notAuthorized *NotAuthorizedError
	require.ErrorAs(t, err, &notAuthorized)

	_, err = db.UpdateDelegation(topLevelTargetsPath, "delegation-a", aRaw)
	require.NoError(t, err)
	_, err = db.UpdateDelegation("delegation-a", "delegation-b", bRaw)
	require.NoError(t, err)

	got, err := db.TargetDescription("foo")
	require.NoError(t, err)
	assert.Equal(t, TargetDescription{Length: 3, Hashes: map[string]string{"sha256": "b"}}, got)
}

func TestDelegationCycleTerminates(t *testing.T) {
	f := newFixture(t)
	aSigner := newTestSigner(t)
	bSigner := newTestSigner(t)

	// targets -> a -> b -> a: the graph has a cycle, which admission does
	// not forbid. Resolution must still terminate and answer unavailable.
	f.targetsRaw = signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{aSigner.keyID: aSigner.key()},
			Roles: []DelegationRecord{{Name: "a", KeyIDs: []KeyID{aSigner.keyID}, Threshold: 1, Paths: []string{"*"}}},
		},
	}, f.targetsSigner)
	aRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{bSigner.keyID: bSigner.key()},
			Roles: []DelegationRecord{{Name: "b", KeyIDs: []KeyID{bSigner.keyID}, Threshold: 1, Paths: []string{"*"}}},
		},
	}, aSigner)
	bRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{aSigner.keyID: aSigner.key()},
			Roles: []DelegationRecord{{Name: "a", KeyIDs: []KeyID{aSigner.keyID}, Threshold: 1, Paths: []string{"*"}}},
		},
	}, bSigner)

	snapshot := signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(f.targetsRaw, 1),
			"a":         descriptionFor(aRaw, 1),
			"b":         descriptionFor(bRaw, 1),
		},
	}, f.snapshotSigner)
	timestamp := signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(snapshot, 1)},
	}, f.timestampSigner)

	db := f.newDatabase(t)
	_, err := db.UpdateTimestamp(timestamp)
	require.NoError(t, err)
	_, err = db.UpdateSnapshot(snapshot)
	require.NoError(t, err)
	_, err = db.UpdateTargets(f.targetsRaw)
	require.NoError(t, err)

	_, err = db.UpdateDelegation(topLevelTargetsPath, "a", aRaw)
	require.NoError(t, err)
	_, err = db.UpdateDelegation("a", "b", bRaw)
	require.NoError(t, err)
	_, err = db.UpdateDelegation("b", "a", aRaw)
	require.NoError(t, err)

	_, err = db.TargetDescription("anything")
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestDiamondDelegationIndependentPerEdge(t *testing.T) {
	f := newFixture(t)
	childSigner := newTestSigner(t)
	wrongSigner := newTestSigner(t)

	parentA := newTestSigner(t)
	parentB := newTestSigner(t)

	targetsSigned := SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys: map[KeyID]Key{parentA.keyID: parentA.key(), parentB.keyID: parentB.key()},
			Roles: []DelegationRecord{
				{Name: "parentA", KeyIDs: []KeyID{parentA.keyID}, Threshold: 1, Paths: []string{"*"}},
				{Name: "parentB", KeyIDs: []KeyID{parentB.keyID}, Threshold: 1, Paths: []string{"*"}},
			},
		},
	}
	f.targetsRaw = signRaw(t, targetsSigned, f.targetsSigner)

	parentARaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{childSigner.keyID: childSigner.key()},
			Roles: []DelegationRecord{{Name: "child", KeyIDs: []KeyID{childSigner.keyID}, Threshold: 1, Paths: []string{"*"}}},
		},
	}, parentA)
	parentBRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{},
		Delegations: &Delegations{
			Keys:  map[KeyID]Key{childSigner.keyID: childSigner.key()},
			Roles: []DelegationRecord{{Name: "child", KeyIDs: []KeyID{childSigner.keyID}, Threshold: 1, Paths: []string{"*"}}},
		},
	}, parentB)

	goodChildRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{"x": {Length: 1}},
	}, childSigner)
	badChildRaw := signRaw(t, SignedTargets{
		Type: "targets", Expires: farFuture(), Version: 1,
		Targets: map[string]TargetDescription{"x": {Length: 1}},
	}, wrongSigner)

	snapshot := signRaw(t, SignedSnapshot{
		Type: "snapshot", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{
			roleTargets: descriptionFor(f.targetsRaw, 1),
			"parentA":   descriptionFor(parentARaw, 1),
			"parentB":   descriptionFor(parentBRaw, 1),
			"child":     descriptionFor(goodChildRaw, 1),
		},
	}, f.snapshotSigner)
	timestamp := signRaw(t, SignedTimestamp{
		Type: "timestamp", Expires: farFuture(), Version: 1,
		Meta: map[string]MetadataDescription{roleSnapshot: descriptionFor(snapshot, 1)},
	}, f.timestampSigner)

	db := f.newDatabase(t)
	_, err := db.UpdateTimestamp(timestamp)
	require.NoError(t, err)
	_, err = db.UpdateSnapshot(snapshot)
	require.NoError(t, err)
	_, err = db.UpdateTargets(f.targetsRaw)
	require.NoError(t, err)

	_, err = db.UpdateDelegation(topLevelTargetsPath, "parentA", parentARaw)
	require.NoError(t, err)
	_, err = db.UpdateDelegation(topLevelTargetsPath, "parentB", parentBRaw)
	require.NoError(t, err)

	// parentA's edge admits the real, correctly-signed child.
	_, err = db.UpdateDelegation("parentA", "child", goodChildRaw)
	require.NoError(t, err)

	// parentB's edge tries to admit the same child *name* but content
	// signed by the wrong key for this edge's own key table; it must be
	// rejected on this edge without disturbing parentA's edge.
	_, err = db.UpdateDelegation("parentB", "child", badChildRaw)
	require.Error(t, err)

	got, err := db.TargetDescription("x")
	require.NoError(t, err)
	assert.Equal(t, TargetDescription{Length: 1}, got)
}
