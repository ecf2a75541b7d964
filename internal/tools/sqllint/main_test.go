package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestLintFile(t *testing.T) {
	path := writeSource(t, "package q\n\n"+
		"const QOne = `--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 1;`\n\n"+
		"const QTwo = `--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 2;`\n\n"+
		"const QBare = `select 3;`\n\n"+
		"const Greeting = \"hello\"\n")

	violations, markers, err := lintFile(path)
	if err != nil {
		t.Fatalf("lintFile error: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("markers = %v, want one", markers)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %+v, want 2", violations)
	}
	got := map[string]string{}
	for _, v := range violations {
		got[v.name] = v.message
	}
	if !strings.Contains(got["QTwo"], "already used by QOne") {
		t.Fatalf("duplicate marker not reported: %+v", violations)
	}
	if !strings.Contains(got["QBare"], "missing") {
		t.Fatalf("bare query not reported: %+v", violations)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n  --sql abc\nselect 1"); got != "--sql abc" {
		t.Fatalf("firstLine = %q", got)
	}
}
