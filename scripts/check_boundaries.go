// Command check_boundaries enforces the import rules between the
// token-distribution services and the runtime packages around them.
//
//	go run ./scripts [repo-root]
package main

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "dropvest"

// bridgeDir is the one package allowed to couple two services below their
// module surface: it makes one service's use cases satisfy another's ports.
const bridgeDir = "internal/platform/bridge"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

type importRef struct {
	path string
	line int
}

// source is one non-test Go file. service and layer are set for files under
// contexts/<area>/<service>/; layer is empty for the service root package.
type source struct {
	file    string
	dir     string
	service string
	layer   string
	imports []importRef
}

func (s source) violation(imp importRef, rule string) violation {
	return violation{File: s.file, Line: imp.line, Import: imp.path, Rule: rule}
}

// layerRule is the allowlist for one layer of a service, on top of the
// standard library.
type layerRule struct {
	name    string
	allowed func(service string) []string
}

var layerRules = map[string]layerRule{
	"domain": {
		name: "domain imports only its own domain, hashing and sets",
		allowed: func(service string) []string {
			return []string{
				servicePath(service) + "/domain",
				"golang.org/x/crypto/sha3",
				"github.com/deckarep/golang-set/v2",
			}
		},
	},
	"ports": {
		name: "ports import only their domain and the shared contracts",
		allowed: func(service string) []string {
			return []string{
				servicePath(service) + "/domain",
				modulePath + "/contracts",
			}
		},
	},
	"application": {
		name: "application reaches collaborators only through ports",
		allowed: func(service string) []string {
			return []string{
				servicePath(service) + "/application",
				servicePath(service) + "/domain",
				servicePath(service) + "/ports",
				modulePath + "/contracts",
			}
		},
	},
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations, err := checkTree(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func checkTree(root string) ([]violation, error) {
	sources, err := loadSources(root, "contexts", "internal", "cmd")
	if err != nil {
		return nil, err
	}

	var violations []violation
	for _, src := range sources {
		violations = append(violations, checkServiceFile(src)...)
	}
	violations = append(violations, checkBridgeOnly(sources)...)

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Rule < violations[j].Rule
	})
	return violations, nil
}

func loadSources(root string, dirs ...string) ([]source, error) {
	var sources []source
	fset := token.NewFileSet()
	for _, dir := range dirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			file, err := parser.ParseFile(fset, p, nil, parser.ImportsOnly)
			if err != nil {
				return fmt.Errorf("parse %s: %w", rel, err)
			}

			src := source{file: rel, dir: path.Dir(rel)}
			parts := strings.Split(rel, "/")
			if parts[0] == "contexts" && len(parts) >= 4 {
				src.service = parts[1] + "/" + parts[2]
				if len(parts) > 4 {
					src.layer = parts[3]
				}
			}
			for _, imp := range file.Imports {
				src.imports = append(src.imports, importRef{
					path: strings.Trim(imp.Path.Value, `"`),
					line: fset.Position(imp.Pos()).Line,
				})
			}
			sources = append(sources, src)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sources, nil
}

func checkServiceFile(src source) []violation {
	if src.service == "" {
		return nil
	}
	own := servicePath(src.service)
	rule, layered := layerRules[src.layer]

	var violations []violation
	for _, imp := range src.imports {
		switch {
		case hasPrefix(imp.path, modulePath+"/contexts") && !hasPrefix(imp.path, own):
			violations = append(violations, src.violation(imp, "services never import each other"))
		case hasPrefix(imp.path, modulePath+"/internal"), hasPrefix(imp.path, modulePath+"/cmd"):
			violations = append(violations, src.violation(imp, "services never import runtime infrastructure"))
		}
		if layered && !isStdlib(imp.path) && !isAllowed(imp.path, rule.allowed(src.service)) {
			violations = append(violations, src.violation(imp, rule.name))
		}
	}
	return violations
}

// checkBridgeOnly flags packages outside contexts that reach into the
// application or ports layer of more than one service, unless they are the
// bridge. Module roots, transports and error sentinels stay open to the
// composition packages.
func checkBridgeOnly(sources []source) []violation {
	type reach struct {
		src source
		imp importRef
	}
	byDir := make(map[string]map[string]reach)
	for _, src := range sources {
		if src.service != "" {
			continue
		}
		for _, imp := range src.imports {
			service, layer, ok := splitServiceImport(imp.path)
			if !ok || (layer != "application" && layer != "ports") {
				continue
			}
			if byDir[src.dir] == nil {
				byDir[src.dir] = make(map[string]reach)
			}
			if _, seen := byDir[src.dir][service]; !seen {
				byDir[src.dir][service] = reach{src: src, imp: imp}
			}
		}
	}

	var violations []violation
	for dir, services := range byDir {
		if dir == bridgeDir || len(services) < 2 {
			continue
		}
		for _, r := range services {
			violations = append(violations, r.src.violation(r.imp, "only the bridge couples two services"))
		}
	}
	return violations
}

func splitServiceImport(importPath string) (service string, layer string, ok bool) {
	rest, found := strings.CutPrefix(importPath, modulePath+"/contexts/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	if len(parts) > 2 {
		layer = parts[2]
	}
	return parts[0] + "/" + parts[1], layer, true
}

func servicePath(service string) string {
	return modulePath + "/contexts/" + service
}

func hasPrefix(p string, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
