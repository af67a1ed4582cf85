package entities

import (
	"math/bits"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	ClaimSetDense  = "dense"
	ClaimSetSparse = "sparse"

	// DenseClaimSetLimit is the largest max_index that gets a pre-allocated
	// bitmap. Larger campaigns track claimed indices in a hash set.
	DenseClaimSetLimit = 1 << 20
)

// ClaimSet records consumed claim indices. An index is added at most once and
// never removed.
type ClaimSet interface {
	Contains(index uint64) bool
	// Add marks index as consumed and reports false if it already was.
	Add(index uint64) bool
	Count() uint64
	Kind() string
	Indices() []uint64
}

// NewClaimSet picks the representation for a campaign of maxIndex leaves.
func NewClaimSet(maxIndex uint64) ClaimSet {
	if maxIndex <= DenseClaimSetLimit {
		return NewDenseClaimSet(maxIndex)
	}
	return NewSparseClaimSet()
}

// DenseClaimSet is a fixed-size bitmap sized to max_index at creation.
type DenseClaimSet struct {
	words []uint64
	size  uint64
	count uint64
}

func NewDenseClaimSet(maxIndex uint64) *DenseClaimSet {
	return &DenseClaimSet{
		words: make([]uint64, (maxIndex+63)/64),
		size:  maxIndex,
	}
}

func (s *DenseClaimSet) Contains(index uint64) bool {
	if index >= s.size {
		return false
	}
	return s.words[index/64]&(1<<(index%64)) != 0
}

func (s *DenseClaimSet) Add(index uint64) bool {
	if index >= s.size || s.Contains(index) {
		return false
	}
	s.words[index/64] |= 1 << (index % 64)
	s.count++
	return true
}

func (s *DenseClaimSet) Count() uint64 { return s.count }

func (s *DenseClaimSet) Kind() string { return ClaimSetDense }

func (s *DenseClaimSet) Indices() []uint64 {
	out := make([]uint64, 0, s.count)
	for wordIndex, word := range s.words {
		for word != 0 {
			bit := uint64(bits.TrailingZeros64(word))
			out = append(out, uint64(wordIndex)*64+bit)
			word &= word - 1
		}
	}
	return out
}

// SparseClaimSet trades the O(1) bitmap for memory proportional to the number
// of claims, for campaigns with a huge and mostly unclaimed index space.
type SparseClaimSet struct {
	set mapset.Set[uint64]
}

func NewSparseClaimSet() *SparseClaimSet {
	return &SparseClaimSet{set: mapset.NewThreadUnsafeSet[uint64]()}
}

func (s *SparseClaimSet) Contains(index uint64) bool { return s.set.Contains(index) }

func (s *SparseClaimSet) Add(index uint64) bool { return s.set.Add(index) }

func (s *SparseClaimSet) Count() uint64 { return uint64(s.set.Cardinality()) }

func (s *SparseClaimSet) Kind() string { return ClaimSetSparse }

func (s *SparseClaimSet) Indices() []uint64 {
	out := s.set.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
