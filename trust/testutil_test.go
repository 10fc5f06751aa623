package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testSigner bundles an ed25519 keypair with the Key/KeyID shape the
// database expects.
type testSigner struct {
	keyID KeyID
	pub   ed25519.PublicKey
	priv  ed25519.PrivateKey
}

func newTestSigner(t *testing.T) testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key := Key{KeyType: keyTypeED25519, Scheme: keyTypeED25519, KeyVal: KeyVal{Public: hex.EncodeToString(pub)}}
	id, err := computeKeyID(CanonicalJSON{}, key)
	require.NoError(t, err)
	return testSigner{keyID: id, pub: pub, priv: priv}
}

func (s testSigner) key() Key {
	return Key{KeyType: keyTypeED25519, Scheme: keyTypeED25519, KeyVal: KeyVal{Public: hex.EncodeToString(s.pub)}}
}

// signRaw canonicalizes payload, signs it with each signer, and returns
// the raw envelope bytes ready for DecodeEnvelope/UpdateX.
func signRaw(t *testing.T, payload interface{}, signers ...testSigner) []byte {
	t.Helper()
	ic := CanonicalJSON{}
	canon, err := ic.Canonicalize(payload)
	require.NoError(t, err)

	var sigs []Signature
	for _, s := range signers {
		sig := ed25519.Sign(s.priv, canon)
		sigs = append(sigs, Signature{KeyID: s.keyID, Method: keyTypeED25519, Value: hex.EncodeToString(sig)})
	}

	wire := struct {
		Signed     json.RawMessage `json:"signed"`
		Signatures []Signature     `json:"signatures"`
	}{
		Signed:     json.RawMessage(canon),
		Signatures: sigs,
	}
	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	return raw
}

func farFuture() time.Time { return time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC) }
func longAgo() time.Time   { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) }

// descriptionFor computes the MetadataDescription a snapshot/timestamp
// should carry for an already-produced raw envelope.
func descriptionFor(raw []byte, version int) MetadataDescription {
	// raw here is the full wire envelope; snapshot/timestamp entries
	// describe the canonical bytes of the *signed* payload, so re-extract
	// them exactly as DecodeEnvelope would.
	var wire struct {
		Signed json.RawMessage `json:"signed"`
	}
	_ = json.Unmarshal(raw, &wire)
	h := hashesOf([]byte(wire.Signed))
	length := int64(len(wire.Signed))
	return MetadataDescription{Length: &length, Hashes: h, Version: version}
}
