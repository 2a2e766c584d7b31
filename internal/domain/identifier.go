package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Space describes the m-bit cyclic identifier ring shared by every node.
type Space struct {
	Bits    int
	ByteLen int
	modulus *big.Int
}

// NewSpace builds a Space for the given bit width. bits must be > 0; the
// hash covers the full range only for bits <= 160 (SHA-1 gives 160).
func NewSpace(bits int) (Space, error) {
	if bits <= 0 {
		return Space{}, fmt.Errorf("domain: space bits must be > 0, got %d", bits)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return Space{
		Bits:    bits,
		ByteLen: (bits + 7) / 8,
		modulus: mod,
	}, nil
}

// ID is an identifier in [0, 2^m), stored as an arbitrary-precision integer.
type ID struct {
	space Space
	val   *big.Int
}

// Zero returns the ring's zero identifier.
func (s Space) Zero() ID {
	return ID{space: s, val: big.NewInt(0)}
}

// Hash derives an identifier by SHA-1 hashing name and masking to s.Bits bits.
// This mirrors the reference implementation's placement hash.
func (s Space) Hash(name string) ID {
	sum := sha1.Sum([]byte(name))
	n := new(big.Int).SetBytes(sum[:])
	n.Mod(n, s.modulus)
	return ID{space: s, val: n}
}

// FromHexString parses a hex-encoded identifier, validating it is within the ring.
func (s Space) FromHexString(h string) (ID, error) {
	raw, err := hex.DecodeString(h)
	if err != nil {
		return ID{}, fmt.Errorf("domain: invalid hex id %q: %w", h, err)
	}
	n := new(big.Int).SetBytes(raw)
	id := ID{space: s, val: n}
	if !id.inRange() {
		return ID{}, fmt.Errorf("domain: id %s outside ring [0, 2^%d)", h, s.Bits)
	}
	return id, nil
}

// FromUint64 builds an ID from a small integer, useful for reduced-width tests (S3/S6).
func (s Space) FromUint64(v uint64) ID {
	return ID{space: s, val: new(big.Int).SetUint64(v)}
}

// FromDecimalString parses a base-10 identifier, as carried on the wire by
// the JSON transport (?id=<decimal>), validating it is within the ring.
func (s Space) FromDecimalString(dec string) (ID, error) {
	n, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return ID{}, fmt.Errorf("domain: invalid decimal id %q", dec)
	}
	id := ID{space: s, val: n}
	if !id.inRange() {
		return ID{}, fmt.Errorf("domain: id %s outside ring [0, 2^%d)", dec, s.Bits)
	}
	return id, nil
}

// Decimal renders the identifier in base 10, the wire encoding the JSON
// transport uses for ?id= query parameters and request bodies.
func (id ID) Decimal() string {
	return id.val.String()
}

func (id ID) inRange() bool {
	return id.val.Sign() >= 0 && id.val.Cmp(id.space.modulus) < 0
}

// AddMod returns (a + 2^k) mod 2^m, the offset used to compute finger targets.
func (id ID) AddMod(k int) ID {
	offset := new(big.Int).Lsh(big.NewInt(1), uint(k))
	sum := new(big.Int).Add(id.val, offset)
	sum.Mod(sum, id.space.modulus)
	return ID{space: id.space, val: sum}
}

// Cmp compares two identifiers numerically (not cyclically).
func (id ID) Cmp(other ID) int {
	return id.val.Cmp(other.val)
}

// Equal reports whether two identifiers are the same point on the ring.
func (id ID) Equal(other ID) bool {
	return id.Cmp(other) == 0
}

// String renders the identifier as a zero-padded hex string.
func (id ID) String() string {
	width := id.space.ByteLen * 2
	return fmt.Sprintf("%0*x", width, id.val)
}

// Between reports whether x lies strictly clockwise after a and before b
// on the ring (or at b, if rightInclusive).
// The degenerate case a == b denotes the whole ring and always returns true.
func Between(x, a, b ID, rightInclusive bool) bool {
	if a.Equal(b) {
		return true
	}
	cmpAB := a.Cmp(b)
	if cmpAB < 0 {
		if rightInclusive {
			return a.Cmp(x) < 0 && x.Cmp(b) <= 0
		}
		return a.Cmp(x) < 0 && x.Cmp(b) < 0
	}
	// a > b: the interval wraps the ring's zero point.
	if rightInclusive {
		return a.Cmp(x) < 0 || x.Cmp(b) <= 0
	}
	return a.Cmp(x) < 0 || x.Cmp(b) < 0
}
