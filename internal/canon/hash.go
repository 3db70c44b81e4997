package canon

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash.
type Digest [32]byte

// String returns the lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for display.
func (d Digest) Short() string {
	return d.String()[:12]
}

// domainKey is a BLAKE3 key: the ASCII domain name zero-padded to 32 bytes.
// Changing a key invalidates every stored digest in that domain.
type domainKey [32]byte

func newDomainKey(name string) domainKey {
	var k domainKey
	copy(k[:], name)
	return k
}

var (
	messageDomainKey     = newDomainKey("pmscope.event.message.v1")
	topologyDomainKey    = newDomainKey("pmscope.event.topology.v1")
	fingerprintDomainKey = newDomainKey("pmscope.state.fingerprint.v1")
)

func keyedHash(key domainKey, data []byte) Digest {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// Only reachable with a key that is not 32 bytes.
		panic("canon: blake3 keyed hasher: " + err.Error())
	}
	_, _ = h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// MessageDigest hashes the canonical form of a captured message.
func MessageDigest(v any) (Digest, error) {
	return digest(messageDomainKey, v)
}

// TopologyDigest hashes the canonical form of a topology snapshot.
func TopologyDigest(v any) (Digest, error) {
	return digest(topologyDomainKey, v)
}

// FingerprintDigest hashes the canonical form of a resolved state summary.
func FingerprintDigest(v any) (Digest, error) {
	return digest(fingerprintDomainKey, v)
}

func digest(key domainKey, v any) (Digest, error) {
	b, err := Marshal(v)
	if err != nil {
		return Digest{}, err
	}
	return keyedHash(key, b), nil
}
