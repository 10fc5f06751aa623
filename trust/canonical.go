package trust

import (
	"encoding/json"

	cjson "github.com/docker/go/canonical/json"
	"github.com/pkg/errors"
)

// Interchange parameterizes the byte encoding used to sign and round-trip
// metadata. The database is written against this capability rather than
// against encoding/json directly so a future interchange (msgpack, CBOR,
// whatever TUF standardizes on next) can be swapped in without touching
// the trust logic itself.
type Interchange interface {
	// Canonicalize produces a deterministic byte encoding of v.
	Canonicalize(v interface{}) ([]byte, error)
	// Parse decodes data into v.
	Parse(data []byte, v interface{}) error
}

// CanonicalJSON is the interchange mandated by the TUF specification:
// canonical JSON, as produced by docker/go/canonical/json.
type CanonicalJSON struct{}

// Canonicalize implements Interchange.
func (CanonicalJSON) Canonicalize(v interface{}) ([]byte, error) {
	b, err := cjson.MarshalCanonical(v)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing metadata")
	}
	return b, nil
}

// Parse implements Interchange.
func (CanonicalJSON) Parse(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "parsing metadata")
	}
	return nil
}

// wireEnvelope is the on-the-wire shape of every signed role: a "signed"
// payload plus a list of signatures. The Signed field is kept as a
// json.RawMessage so its exact received bytes can be retained verbatim for
// signature verification -- never a re-canonicalization of the parsed
// struct, so that future encoding drift in how we marshal structs can never
// invalidate a signature that covered the bytes as originally transmitted.
type wireEnvelope struct {
	Signed     json.RawMessage `json:"signed"`
	Signatures []Signature     `json:"signatures"`
}

// Envelope carries a parsed signed payload of type T alongside the exact
// canonical bytes that were signed and the signatures over those bytes.
type Envelope[T any] struct {
	Signed         T
	Signatures     []Signature
	canonicalBytes []byte
}

// CanonicalBytes returns the exact bytes the signatures were computed over.
func (e *Envelope[T]) CanonicalBytes() []byte {
	return e.canonicalBytes
}

// DecodeEnvelope parses raw role bytes into an Envelope[T], retaining the
// exact bytes of the "signed" field for later re-verification.
func DecodeEnvelope[T any](raw []byte, ic Interchange) (*Envelope[T], error) {
	var wire wireEnvelope
	if err := ic.Parse(raw, &wire); err != nil {
		return nil, &MalformedMetadataError{Reason: errors.Wrap(err, "decoding envelope").Error()}
	}
	if len(wire.Signed) == 0 {
		return nil, &MalformedMetadataError{Reason: "envelope has no signed payload"}
	}
	var payload T
	if err := ic.Parse(wire.Signed, &payload); err != nil {
		return nil, &MalformedMetadataError{Reason: errors.Wrap(err, "decoding signed payload").Error()}
	}
	return &Envelope[T]{
		Signed:         payload,
		Signatures:     wire.Signatures,
		canonicalBytes: []byte(wire.Signed),
	}, nil
}

// Encode re-emits the envelope without re-canonicalizing the signed
// payload, so the bytes handed back to a caller are bit-identical to what
// was verified.
func (e *Envelope[T]) Encode() ([]byte, error) {
	out := struct {
		Signed     json.RawMessage `json:"signed"`
		Signatures []Signature     `json:"signatures"`
	}{
		Signed:     json.RawMessage(e.canonicalBytes),
		Signatures: e.Signatures,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}
	return b, nil
}
