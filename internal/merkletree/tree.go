// Package merkletree builds airdrop commitments offline. Leaves sit at
// positions 0..n-1 in claim index order and an odd level pairs its last node
// with itself, matching the parity walk the claim authorizer verifies.
package merkletree

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
)

var (
	ErrEmpty           = errors.New("no claims to commit")
	ErrIndexGap        = errors.New("claim indices must be exactly 0..n-1")
	ErrTotalOverflow   = errors.New("total allocation overflows u64")
	ErrMalformedRecord = errors.New("malformed claim record")
)

type Entry struct {
	Address entities.Address
	Amount  uint64
	Index   uint64
}

type Tree struct {
	entries []Entry
	levels  [][]entities.Hash
	total   uint64
}

type ClaimProof struct {
	Address string   `json:"address"`
	Amount  string   `json:"amount"`
	Index   string   `json:"index"`
	Proof   []string `json:"proof"`
}

// Output is the published artifact: the campaign parameters and one proof
// per claimant.
type Output struct {
	Root            string       `json:"root"`
	MaxIndex        string       `json:"max_index"`
	TotalAllocation string       `json:"total_allocation"`
	Claims          []ClaimProof `json:"claims"`
}

// ReadCSV parses address,amount,index rows. A leading header row is skipped.
func ReadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var entries []Entry
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "address") {
			continue
		}
		entry, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseRecord(record []string) (Entry, error) {
	address, err := entities.ParseAddress(strings.TrimSpace(record[0]))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: address %q", ErrMalformedRecord, record[0])
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(record[1]), 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: amount %q", ErrMalformedRecord, record[1])
	}
	index, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: index %q", ErrMalformedRecord, record[2])
	}
	return Entry{Address: address, Amount: amount, Index: index}, nil
}

// Build hashes every leaf and level. progress, when set, is called with the
// number of nodes hashed since the previous call.
func Build(entries []Entry, progress func(int)) (*Tree, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	if progress == nil {
		progress = func(int) {}
	}

	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var total uint64
	leaves := make([]entities.Hash, len(sorted))
	for i, entry := range sorted {
		if entry.Index != uint64(i) {
			return nil, fmt.Errorf("%w: expected index %d, found %d", ErrIndexGap, i, entry.Index)
		}
		var carry uint64
		total, carry = bits.Add64(total, entry.Amount, 0)
		if carry != 0 {
			return nil, ErrTotalOverflow
		}
		leaves[i] = services.ComputeLeaf(entry.Address, entry.Amount, entry.Index)
	}
	progress(len(leaves))

	levels := [][]entities.Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]entities.Hash, (len(current)+1)/2)
		for i := range next {
			left := current[2*i]
			right := left
			if 2*i+1 < len(current) {
				right = current[2*i+1]
			}
			next[i] = services.HashNode(left, right)
		}
		progress(len(next))
		levels = append(levels, next)
		current = next
	}

	return &Tree{entries: sorted, levels: levels, total: total}, nil
}

// NodeCount is the number of hashes Build computes for n leaves.
func NodeCount(n int) int {
	count := n
	for n > 1 {
		n = (n + 1) / 2
		count += n
	}
	return count
}

func (t *Tree) Root() entities.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t *Tree) MaxIndex() uint64 {
	return uint64(len(t.entries))
}

func (t *Tree) TotalAllocation() uint64 {
	return t.total
}

// Proof returns the leaf-to-root sibling list for index.
func (t *Tree) Proof(index uint64) ([]entities.Hash, error) {
	if index >= t.MaxIndex() {
		return nil, fmt.Errorf("index %d outside tree of %d leaves", index, t.MaxIndex())
	}
	proof := make([]entities.Hash, 0, len(t.levels)-1)
	position := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := position ^ 1
		if sibling >= uint64(len(level)) {
			sibling = position
		}
		proof = append(proof, level[sibling])
		position /= 2
	}
	return proof, nil
}

func (t *Tree) Output() (Output, error) {
	out := Output{
		Root:            t.Root().String(),
		MaxIndex:        strconv.FormatUint(t.MaxIndex(), 10),
		TotalAllocation: strconv.FormatUint(t.total, 10),
		Claims:          make([]ClaimProof, 0, len(t.entries)),
	}
	for _, entry := range t.entries {
		proof, err := t.Proof(entry.Index)
		if err != nil {
			return Output{}, err
		}
		encoded := make([]string, len(proof))
		for i, node := range proof {
			encoded[i] = node.String()
		}
		out.Claims = append(out.Claims, ClaimProof{
			Address: entry.Address.String(),
			Amount:  strconv.FormatUint(entry.Amount, 10),
			Index:   strconv.FormatUint(entry.Index, 10),
			Proof:   encoded,
		})
	}
	return out, nil
}
