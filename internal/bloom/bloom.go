// Package bloom implements the seen-set: an exact set for small
// deployments, or a (Scalable) Bloom filter for large ones, hidden
// behind the SeenSet interface per the design note that the Bloom
// filter backend must be swappable.
package bloom

import (
	"context"
	"crypto/md5"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// SeenSet hides whether membership is tracked exactly or probabilistically.
// Contains may return a false positive but never a false negative after Add.
type SeenSet interface {
	Add(fingerprint string) error
	Contains(fingerprint string) (bool, error)
}

// Filter is a single fixed-capacity Bloom filter, parameterized as §4.6:
// m = ceil(-n*ln(p) / ln(2)^2) bits, k = ceil((m/n)*ln(2)) hash functions,
// each hash the md5 of "fingerprint_i" mod m.
type Filter struct {
	bits       *bitset.BitSet
	numBits    uint
	numHashes  uint
	capacity   uint64
	count      uint64
}

// NewFilter builds a Filter sized for capacity items at the given target
// false-positive rate.
func NewFilter(capacity uint64, errorRate float64) *Filter {
	m := calculateBits(capacity, errorRate)
	k := calculateHashes(m, capacity)
	return &Filter{
		bits:      bitset.New(m),
		numBits:   m,
		numHashes: k,
		capacity:  capacity,
	}
}

func calculateBits(n uint64, p float64) uint {
	if n == 0 {
		n = 1
	}
	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 1 {
		m = 1
	}
	return uint(m)
}

func calculateHashes(m uint, n uint64) uint {
	if n == 0 {
		n = 1
	}
	k := math.Ceil((float64(m) / float64(n)) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return uint(k)
}

// offsets computes the k bit offsets for an item via k independent md5
// derivations of "item_i".
func (f *Filter) offsets(item string) []uint {
	offs := make([]uint, f.numHashes)
	for i := uint(0); i < f.numHashes; i++ {
		sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", item, i)))
		h := bytesToUint64(sum[:8])
		offs[i] = uint(h % uint64(f.numBits))
	}
	return offs
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Add sets all k bits for item.
func (f *Filter) Add(item string) {
	for _, off := range f.offsets(item) {
		f.bits.Set(off)
	}
	f.count++
}

// Contains AND-reduces the k bit reads.
func (f *Filter) Contains(item string) bool {
	for _, off := range f.offsets(item) {
		if !f.bits.Test(off) {
			return false
		}
	}
	return true
}

// Count returns the number of items added (not corrected for collisions).
func (f *Filter) Count() uint64 { return f.count }

// memorySeenSet adapts a single in-memory Filter to SeenSet.
type memorySeenSet struct{ f *Filter }

// NewMemorySeenSet builds a non-scalable, in-process SeenSet over a
// single Filter of the given capacity/error rate.
func NewMemorySeenSet(capacity uint64, errorRate float64) SeenSet {
	return &memorySeenSet{f: NewFilter(capacity, errorRate)}
}

func (m *memorySeenSet) Add(fp string) error {
	m.f.Add(fp)
	return nil
}

func (m *memorySeenSet) Contains(fp string) (bool, error) {
	return m.f.Contains(fp), nil
}

// bitSetter is the subset of Broker operations the broker-backed filter
// needs (SetBit/GetBit, §4.2), kept minimal to avoid an import cycle on
// the broker package.
type bitSetter interface {
	SetBit(ctx context.Context, key string, offset uint, value byte) error
	GetBit(ctx context.Context, key string, offset uint) (byte, error)
}
