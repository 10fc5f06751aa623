package repository

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"

	"github.com/kolide/trustdb/trust"
)

// ErrLengthIncorrect and ErrHashIncorrect report that downloaded target
// bytes do not match the trust.TargetDescription they were fetched under.
var (
	ErrLengthIncorrect = errors.New("repository: target length does not match description")
	ErrHashIncorrect   = errors.New("repository: target hash does not match description")
)

// VerifyTargetBytes checks r against desc's length and hash digests,
// constant-time comparing each digest. Callers use this after fetching a
// target's raw bytes via a Provider and resolving its
// trust.TargetDescription via trust.Database.TargetDescription; trust
// itself never touches target bytes, only their description.
func VerifyTargetBytes(desc trust.TargetDescription, r io.Reader) error {
	type digest struct {
		want []byte
		h    hash.Hash
	}
	var digests []digest
	for algo, want := range desc.Hashes {
		wantBytes, err := base64.StdEncoding.DecodeString(want)
		if err != nil {
			return errors.Wrapf(err, "decoding expected %s digest", algo)
		}
		h, err := hasherFor(algo)
		if err != nil {
			return err
		}
		r = io.TeeReader(r, h)
		digests = append(digests, digest{want: wantBytes, h: h})
	}

	length, err := io.Copy(ioutil.Discard, r)
	if err != nil {
		return errors.Wrap(err, "reading target bytes")
	}
	if length != desc.Length {
		return ErrLengthIncorrect
	}
	for _, d := range digests {
		if subtle.ConstantTimeCompare(d.want, d.h.Sum(nil)) != 1 {
			return ErrHashIncorrect
		}
	}
	return nil
}

func hasherFor(algo string) (hash.Hash, error) {
	switch algo {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, errors.Errorf("unsupported hash algorithm %q", algo)
	}
}
