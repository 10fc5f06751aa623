package trust

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"
	"github.com/secure-systems-lab/go-securesystemslib/signerverifier"
)

const (
	keyTypeED25519   = "ed25519"
	keyTypeRSA       = "rsa"
	keyTypeRSAx509   = "rsa-x509"
	keyTypeECDSA     = "ecdsa"
	keyTypeECDSAx509 = "ecdsa-x509"
)

// SignatureChecker verifies a signature over a byte string under a named
// public key. It is pure and
// stateless; the concrete key material is supplied on every call rather
// than held by the checker.
type SignatureChecker interface {
	Verify(key Key, data []byte, sig Signature) error
}

// DefaultChecker dispatches ed25519 and RSA-PSS verification to
// secure-systems-lab/go-securesystemslib, and keeps a hand-rolled verifier
// for the ecdsa/ecdsa-x509 key types Notary-era repositories publish.
// Nothing here holds state, so a single DefaultChecker may be shared
// across goroutines.
type DefaultChecker struct{}

func (DefaultChecker) Verify(key Key, data []byte, sig Signature) error {
	switch key.KeyType {
	case keyTypeED25519:
		return verifyED25519(key, data, sig)
	case keyTypeRSA, keyTypeRSAx509:
		return verifyRSA(key, data, sig)
	case keyTypeECDSA, keyTypeECDSAx509:
		return verifyECDSA(key, data, sig)
	default:
		return errors.Errorf("unsupported key type %q", key.KeyType)
	}
}

func verifyED25519(key Key, data []byte, sig Signature) error {
	sslibKey := &signerverifier.SSLibKey{
		KeyType: signerverifier.ED25519KeyType,
		Scheme:  signerverifier.ED25519KeyType,
		KeyVal:  signerverifier.KeyVal{Public: key.KeyVal.Public},
	}
	sv, err := signerverifier.NewED25519SignerVerifierFromSSLibKey(sslibKey)
	if err != nil {
		return errors.Wrap(err, "loading ed25519 key")
	}
	sigBytes, err := hex.DecodeString(sig.Value)
	if err != nil {
		// Some producers base64-encode instead of hex-encoding the
		// signature value; accept either.
		sigBytes, err = base64.StdEncoding.DecodeString(sig.Value)
		if err != nil {
			return errors.Wrap(err, "decoding ed25519 signature")
		}
	}
	if err := sv.Verify(context.Background(), data, sigBytes); err != nil {
		return errSignatureCheckFailed
	}
	return nil
}

func verifyRSA(key Key, data []byte, sig Signature) error {
	sslibKey := &signerverifier.SSLibKey{
		KeyType: signerverifier.RSAKeyType,
		Scheme:  signerverifier.RSAKeyScheme,
		KeyVal:  signerverifier.KeyVal{Public: key.KeyVal.Public},
	}
	sv, err := signerverifier.NewRSAPSSSignerVerifierFromSSLibKey(sslibKey)
	if err != nil {
		return errors.Wrap(err, "loading rsa key")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return errors.Wrap(err, "decoding rsa signature")
	}
	if err := sv.Verify(context.Background(), data, sigBytes); err != nil {
		return errSignatureCheckFailed
	}
	return nil
}

// verifyECDSA accepts either a bare PKIX public key or one wrapped in an
// x509 certificate, both base64-encoded, and checks a raw r||s signature.
func verifyECDSA(key Key, signed []byte, sig Signature) error {
	var publicKey crypto.PublicKey

	raw, err := base64.StdEncoding.DecodeString(key.KeyVal.Public)
	if err != nil {
		return errors.Wrap(err, "base64 decoding public key")
	}

	switch key.KeyType {
	case keyTypeECDSAx509:
		pemCert, _ := pem.Decode(raw)
		if pemCert == nil {
			return errors.New("failed to decode PEM x509 cert")
		}
		cert, err := x509.ParseCertificate(pemCert.Bytes)
		if err != nil {
			return errors.Wrap(err, "ecdsa verification")
		}
		publicKey = cert.PublicKey
	case keyTypeECDSA:
		publicKey, err = x509.ParsePKIXPublicKey(raw)
		if err != nil {
			return errors.Wrap(err, "failed to parse public key in ecdsa verify")
		}
	default:
		return errInvalidKeyType
	}

	ecdsaPublicKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("expected ecdsa public key, got something else")
	}
	expectedOctetLen := 2 * ((ecdsaPublicKey.Params().BitSize + 7) >> 3)
	sigBuff, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return errors.Wrap(err, "base64 decoding signature failed")
	}
	if len(sigBuff) != expectedOctetLen {
		return errors.New("signature length is incorrect")
	}

	rBuff, sBuff := sigBuff[:len(sigBuff)/2], sigBuff[len(sigBuff)/2:]
	r := new(big.Int).SetBytes(rBuff)
	s := new(big.Int).SetBytes(sBuff)
	digest := sha256.Sum256(signed)
	if !ecdsa.Verify(ecdsaPublicKey, digest[:], r, s) {
		return errSignatureCheckFailed
	}
	return nil
}

var (
	errSignatureCheckFailed = errors.New("signature check failed")
	errInvalidKeyType       = errors.New("invalid key type")
)

// computeKeyID returns the identity of key: the hex sha256 digest of its
// canonical representation under ic.
func computeKeyID(ic Interchange, key Key) (KeyID, error) {
	b, err := ic.Canonicalize(key)
	if err != nil {
		return "", errors.Wrap(err, "canonicalizing key")
	}
	digest := sha256.Sum256(b)
	return KeyID(hex.EncodeToString(digest[:])), nil
}
