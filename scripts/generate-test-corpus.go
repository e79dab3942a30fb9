//go:build ignore

// Generates a synthetic source tree for exercising the indexing pipeline at
// scale: a mix of Go, TypeScript, and Python files plus a few ignored
// directories (node_modules, .git) so walks and ignore patterns are hit the
// way a real checkout hits them.
//
// Usage: go run scripts/generate-test-corpus.go -files 500 -out testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	fileCount = flag.Int("files", 500, "number of source files to generate")
	outDir    = flag.String("out", "testdata/corpus", "root of the generated tree")
	seed      = flag.Int64("seed", 1, "random seed, fixed for reproducible trees")
)

var identifiers = []string{
	"snapshot", "chunk", "vector", "index", "registry", "merkle",
	"token", "corpus", "query", "ranking", "batch", "walker",
	"store", "cache", "embed", "search", "filter", "delta",
}

func pick(r *rand.Rand) string { return identifiers[r.Intn(len(identifiers))] }

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func goSource(r *rand.Rand, pkg string) string {
	a, b := title(pick(r)), pick(r)
	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s\n\nimport \"fmt\"\n\n", pkg)
	fmt.Fprintf(&sb, "type %s struct {\n\t%s string\n\tcount int\n}\n\n", a, b)
	fmt.Fprintf(&sb, "func New%s(%s string) *%s {\n\treturn &%s{%s: %s}\n}\n\n", a, b, a, a, b, b)
	fmt.Fprintf(&sb, "func (x *%s) Describe() string {\n\treturn fmt.Sprintf(\"%s=%%s count=%%d\", x.%s, x.count)\n}\n", a, b, b)
	return sb.String()
}

func tsSource(r *rand.Rand) string {
	a, b := title(pick(r)), pick(r)
	var sb strings.Builder
	fmt.Fprintf(&sb, "export interface %s {\n  %s: string;\n  updatedAt: number;\n}\n\n", a, b)
	fmt.Fprintf(&sb, "export function load%s(id: string): Promise<%s> {\n", a, a)
	fmt.Fprintf(&sb, "  return fetch(`/api/%s/${id}`).then(res => res.json());\n}\n", b)
	return sb.String()
}

func pySource(r *rand.Rand) string {
	a, b := title(pick(r)), pick(r)
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s:\n", a)
	fmt.Fprintf(&sb, "    def __init__(self, %s):\n        self.%s = %s\n\n", b, b, b)
	fmt.Fprintf(&sb, "    def summarize(self):\n        return f\"%s: {self.%s}\"\n", b, b)
	return sb.String()
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	dirs := []string{"internal/core", "internal/util", "web/src", "tools"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(*outDir, d), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "create dir:", err)
			os.Exit(1)
		}
	}
	// Noise the walker must skip.
	for _, d := range []string{"node_modules/leftpad", ".git/objects"} {
		_ = os.MkdirAll(filepath.Join(*outDir, d), 0o755)
		_ = os.WriteFile(filepath.Join(*outDir, d, "blob.bin"), []byte("ignore me"), 0o644)
	}

	written := 0
	for i := 0; i < *fileCount; i++ {
		var rel, content string
		switch i % 10 {
		case 0, 1, 2, 3, 4: // half the tree is Go
			pkg := []string{"core", "util"}[i%2]
			rel = filepath.Join("internal", pkg, fmt.Sprintf("%s_%d.go", pick(r), i))
			content = goSource(r, pkg)
		case 5, 6, 7:
			rel = filepath.Join("web/src", fmt.Sprintf("%s_%d.ts", pick(r), i))
			content = tsSource(r)
		default:
			rel = filepath.Join("tools", fmt.Sprintf("%s_%d.py", pick(r), i))
			content = pySource(r)
		}
		if err := os.WriteFile(filepath.Join(*outDir, rel), []byte(content), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
		written++
	}
	fmt.Printf("wrote %d files under %s\n", written, *outDir)
}
