package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRepositoryHonoursBoundaries(t *testing.T) {
	violations, err := checkTree("..")
	if err != nil {
		t.Fatalf("check tree: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d imports %q (%s)", v.File, v.Line, v.Import, v.Rule)
	}
}

func writeSource(t *testing.T, root string, rel string, imports ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("package x\n\nimport (\n")
	for _, imp := range imports {
		b.WriteString("\t\"" + imp + "\"\n")
	}
	b.WriteString(")\n")
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestRulesFlagOffendingImports(t *testing.T) {
	root := t.TempDir()
	airdrop := "dropvest/contexts/token-distribution/airdrop-service"
	vesting := "dropvest/contexts/token-distribution/vesting-service"

	writeSource(t, root, "contexts/token-distribution/airdrop-service/domain/services/leaf.go",
		"encoding/binary",
		"golang.org/x/crypto/sha3",
		"dropvest/contracts/gen/ledger/v1",
		"github.com/google/uuid",
	)
	writeSource(t, root, "contexts/token-distribution/airdrop-service/application/commands/claim.go",
		airdrop+"/ports",
		vesting+"/application/commands",
	)
	writeSource(t, root, "contexts/token-distribution/vesting-service/ports/ports.go",
		"dropvest/contracts/gen/ledger/v1",
		"dropvest/internal/platform/ledger",
	)
	writeSource(t, root, "contexts/token-distribution/vesting-service/adapters/postgres/repository.go",
		"gorm.io/gorm",
	)
	writeSource(t, root, "internal/platform/httpserver/glue.go",
		airdrop+"/ports",
		vesting+"/application/commands",
		airdrop+"/domain/errors",
	)
	writeSource(t, root, "internal/platform/bridge/vesting.go",
		airdrop+"/ports",
		vesting+"/application/commands",
	)
	writeSource(t, root, "internal/app/bootstrap/runtime.go",
		airdrop+"/ports",
		vesting,
	)

	violations, err := checkTree(root)
	if err != nil {
		t.Fatalf("check tree: %v", err)
	}
	byRule := make(map[string]int)
	for _, v := range violations {
		byRule[v.Rule]++
		if strings.HasPrefix(v.File, "internal/platform/bridge") || strings.HasPrefix(v.File, "internal/app") {
			t.Fatalf("composition package flagged: %+v", v)
		}
	}

	want := map[string]int{
		"domain imports only its own domain, hashing and sets":    2,
		"services never import each other":                        1,
		"application reaches collaborators only through ports":    1,
		"services never import runtime infrastructure":            1,
		"ports import only their domain and the shared contracts": 1,
		"only the bridge couples two services":                    2,
	}
	for rule, count := range want {
		if byRule[rule] != count {
			t.Fatalf("rule %q: expected %d violations, got %d (all: %+v)", rule, count, byRule[rule], violations)
		}
	}
	if len(violations) != 8 {
		t.Fatalf("expected 8 violations, got %d: %+v", len(violations), violations)
	}
}
