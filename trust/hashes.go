package trust

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
)

// hashesOf computes the digests a MetadataDescription may reference for a
// blob of canonical bytes: base64-encoded sha256 and sha512.
func hashesOf(b []byte) map[string]string {
	sum256 := sha256.Sum256(b)
	sum512 := sha512.Sum512(b)
	return map[string]string{
		"sha256": base64.StdEncoding.EncodeToString(sum256[:]),
		"sha512": base64.StdEncoding.EncodeToString(sum512[:]),
	}
}
