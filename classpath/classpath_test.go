package classpath

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestBuild_IndexesKnownExtensions(t *testing.T) {
	dir := t.TempDir()
	jar := writeFile(t, dir, "widgets.jar")
	writeFile(t, dir, "ignored.txt")

	idx := Build([]string{dir})
	got := idx.entries["widgets"]
	if len(got) != 1 || got[0] != jar {
		t.Fatalf("expected widgets.jar indexed, got %v", got)
	}
	if _, ok := idx.entries["ignored"]; ok {
		t.Error("did not expect .txt file to be indexed")
	}
}

func TestBuild_ScansNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "lib", "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, nested, "helper.class")

	idx := Build([]string{dir})
	if len(idx.entries["helper"]) != 1 {
		t.Fatalf("expected helper.class to be found in nested dir, got %v", idx.entries["helper"])
	}
}

func TestBuild_SkipsUnreadableRoot(t *testing.T) {
	idx := Build([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	if len(idx.entries) != 0 {
		t.Errorf("expected empty index for a missing root, got %v", idx.entries)
	}
}

func TestSuggestClasspaths_MatchesUnresolvedSymbol(t *testing.T) {
	dir := t.TempDir()
	widgets := writeFile(t, dir, "widgets.jar")

	idx := Build([]string{dir})
	suggestions := idx.SuggestClasspaths([]string{
		`error: cannot find symbol: widgets`,
	})
	if len(suggestions) != 1 || suggestions[0] != widgets {
		t.Fatalf("expected [%s], got %v", widgets, suggestions)
	}
}

func TestSuggestClasspaths_DeduplicatesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zeta.jar")
	writeFile(t, dir, "alpha.jar")

	idx := Build([]string{dir})
	suggestions := idx.SuggestClasspaths([]string{
		`undefined: zeta`,
		`undefined: zeta`,
		`undefined: alpha`,
	})

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 deduplicated suggestions, got %v", suggestions)
	}
	if filepath.Base(suggestions[0]) != "alpha.jar" || filepath.Base(suggestions[1]) != "zeta.jar" {
		t.Errorf("expected sorted [alpha.jar, zeta.jar], got %v", suggestions)
	}
}

func TestSuggestClasspaths_NoMatchReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "widgets.jar")

	idx := Build([]string{dir})
	suggestions := idx.SuggestClasspaths([]string{"all good, no errors here"})
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions, got %v", suggestions)
	}
}
