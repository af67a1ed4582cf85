package merkletree

import (
	"errors"
	"strings"
	"testing"

	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	"dropvest/contexts/token-distribution/airdrop-service/domain/services"
)

func mustAddress(t *testing.T, raw string) entities.Address {
	t.Helper()
	addr, err := entities.ParseAddress(raw)
	if err != nil {
		t.Fatalf("parse address %s: %v", raw, err)
	}
	return addr
}

func TestBuildProducesVerifiableProofsForOddLeafCount(t *testing.T) {
	entries := []Entry{
		{Address: mustAddress(t, "0xa1"), Amount: 100, Index: 2},
		{Address: mustAddress(t, "0xb2"), Amount: 250, Index: 0},
		{Address: mustAddress(t, "0xc3"), Amount: 75, Index: 1},
		{Address: mustAddress(t, "0xd4"), Amount: 5, Index: 4},
		{Address: mustAddress(t, "0xe5"), Amount: 1, Index: 3},
	}

	hashed := 0
	tree, err := Build(entries, func(n int) { hashed += n })
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if hashed != NodeCount(len(entries)) {
		t.Fatalf("expected %d hashed nodes, got %d", NodeCount(len(entries)), hashed)
	}
	if tree.MaxIndex() != 5 || tree.TotalAllocation() != 431 {
		t.Fatalf("unexpected max_index=%d total=%d", tree.MaxIndex(), tree.TotalAllocation())
	}

	for _, entry := range entries {
		proof, err := tree.Proof(entry.Index)
		if err != nil {
			t.Fatalf("proof %d: %v", entry.Index, err)
		}
		if len(proof) != 3 {
			t.Fatalf("expected 3 proof nodes for 5 leaves, got %d", len(proof))
		}
		leaf := services.ComputeLeaf(entry.Address, entry.Amount, entry.Index)
		if !services.VerifyProof(tree.Root(), leaf, proof, entry.Index) {
			t.Fatalf("proof for index %d does not verify", entry.Index)
		}
		inflated := services.ComputeLeaf(entry.Address, entry.Amount+1, entry.Index)
		if services.VerifyProof(tree.Root(), inflated, proof, entry.Index) {
			t.Fatalf("proof for index %d verified an inflated amount", entry.Index)
		}
	}
}

func TestBuildSingleLeafRootIsLeaf(t *testing.T) {
	addr := mustAddress(t, "0x01")
	tree, err := Build([]Entry{{Address: addr, Amount: 9, Index: 0}}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tree.Root() != services.ComputeLeaf(addr, 9, 0) {
		t.Fatalf("single leaf tree root must equal the leaf")
	}
	proof, _ := tree.Proof(0)
	if len(proof) != 0 {
		t.Fatalf("expected empty proof, got %d nodes", len(proof))
	}
}

func TestBuildRejectsIndexGap(t *testing.T) {
	_, err := Build([]Entry{
		{Address: mustAddress(t, "0x01"), Amount: 1, Index: 0},
		{Address: mustAddress(t, "0x02"), Amount: 1, Index: 2},
	}, nil)
	if !errors.Is(err, ErrIndexGap) {
		t.Fatalf("expected ErrIndexGap, got %v", err)
	}
}

func TestBuildRejectsTotalOverflow(t *testing.T) {
	_, err := Build([]Entry{
		{Address: mustAddress(t, "0x01"), Amount: ^uint64(0), Index: 0},
		{Address: mustAddress(t, "0x02"), Amount: 1, Index: 1},
	}, nil)
	if !errors.Is(err, ErrTotalOverflow) {
		t.Fatalf("expected ErrTotalOverflow, got %v", err)
	}
}

func TestReadCSVSkipsHeaderAndReportsBadRows(t *testing.T) {
	entries, err := ReadCSV(strings.NewReader("address,amount,index\n0xaa, 10, 0\n0xbb,20,1\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(entries) != 2 || entries[1].Amount != 20 || entries[1].Index != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	_, err = ReadCSV(strings.NewReader("0xaa,ten,0\n"))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestOutputRoundTripsThroughParseProof(t *testing.T) {
	tree, err := Build([]Entry{
		{Address: mustAddress(t, "0x01"), Amount: 3, Index: 0},
		{Address: mustAddress(t, "0x02"), Amount: 4, Index: 1},
		{Address: mustAddress(t, "0x03"), Amount: 5, Index: 2},
	}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := tree.Output()
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if out.MaxIndex != "3" || out.TotalAllocation != "12" {
		t.Fatalf("unexpected output header: %+v", out)
	}
	root, err := entities.ParseHash(out.Root)
	if err != nil {
		t.Fatalf("parse root: %v", err)
	}
	claim := out.Claims[2]
	proof, err := entities.ParseProof(claim.Proof)
	if err != nil {
		t.Fatalf("parse proof: %v", err)
	}
	leaf := services.ComputeLeaf(mustAddress(t, claim.Address), 5, 2)
	if !services.VerifyProof(root, leaf, proof, 2) {
		t.Fatalf("published proof does not verify")
	}
}
