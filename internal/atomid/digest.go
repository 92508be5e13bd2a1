package atomid

import (
	"encoding/base32"

	"github.com/zeebo/blake3"
)

// deriveKeyContext is the BLAKE3 derive_key context string used to key the
// per-origin hasher. Changing it would change every digest ever produced.
const deriveKeyContext = "AtomId"

// base32Enc renders a Digest using the RFC4648 hex-extended alphabet,
// lowercase, without padding -- the text form mandated for atom hashes.
var base32Enc = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// Digest is the 32-byte keyed BLAKE3 hash identifying an AtomId.
type Digest [32]byte

// ComputeDigest derives a per-origin key from originBytes via BLAKE3's
// derive_key construction, then hashes tag's bytes under that key. Equal
// (origin, tag) pairs always produce equal digests; the keyed construction
// makes same-tag collisions across distinct origins require breaking
// BLAKE3 itself.
func ComputeDigest(originBytes []byte, tag Tag) Digest {
	key := make([]byte, 32)
	blake3.DeriveKey(deriveKeyContext, originBytes, key)

	h, err := blake3.NewKeyed(key)
	if err != nil {
		// NewKeyed only rejects keys that aren't 32 bytes; key is always
		// exactly 32 bytes here.
		panic("atomid: blake3 keyed hasher rejected a 32-byte key: " + err.Error())
	}
	_, _ = h.Write([]byte(tag))

	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// String renders the digest as lowercase base32 hex-extended, no padding.
func (d Digest) String() string {
	return base32Enc.EncodeToString(d[:])
}

// ParseDigest parses the text form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	raw, err := base32Enc.DecodeString(s)
	if err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}
