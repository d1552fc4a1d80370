package lang

import (
	"reflect"
	"testing"

	"github.com/bskracic/langs-executor/apperr"
)

var testRuntimes = map[string]string{
	Java:   "java-runner",
	Cpp:    "cpp-runner",
	Python: "python-runner",
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(Defaults, testRuntimes)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"python", "PYTHON", " Python "} {
		entry, err := r.Resolve(name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if entry.Runtime != "python-runner" || entry.SourceFile != "main.py" {
			t.Fatalf("unexpected entry for %q: %+v", name, entry)
		}
	}
}

func TestResolveUnsupported(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Resolve("ruby")
	if !apperr.Is(err, apperr.UnsupportedLanguage) {
		t.Fatalf("expected UnsupportedLanguage, got %v", err)
	}
	if err.Error() != "Unsupported language: ruby" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLanguagesAndRuntimes(t *testing.T) {
	r := newTestRegistry(t)
	if got := r.Languages(); !reflect.DeepEqual(got, []string{"cpp", "java", "python"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if got := r.Runtimes(); !reflect.DeepEqual(got, []string{"cpp-runner", "java-runner", "python-runner"}) {
		t.Fatalf("unexpected runtimes %v", got)
	}
}

func TestNewRegistryRequiresRuntime(t *testing.T) {
	_, err := NewRegistry(Defaults, map[string]string{Java: "java-runner"})
	if !apperr.Is(err, apperr.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestNewRegistryRejectsBadTemplates(t *testing.T) {
	defs := []Definition{{Language: "go", SourceFile: "main.go", Run: "   "}}
	if _, err := NewRegistry(defs, map[string]string{"go": "go-runner"}); err == nil {
		t.Fatalf("expected empty run template to fail")
	}
	defs = []Definition{{Language: "go", SourceFile: "main.go", Run: `go run "{src}`}}
	if _, err := NewRegistry(defs, map[string]string{"go": "go-runner"}); err == nil {
		t.Fatalf("expected unterminated quote to fail")
	}
	defs = []Definition{{Language: "go", SourceFile: "../main.go", Run: "go run {src}"}}
	if _, err := NewRegistry(defs, map[string]string{"go": "go-runner"}); err == nil {
		t.Fatalf("expected path-like source file to fail")
	}
}

func TestCommandExpansion(t *testing.T) {
	r := newTestRegistry(t)
	p := Paths{
		Namespace: "/code",
		Source:    "/code/42_abc_main.cpp",
		Input:     "/code/42_abc_input.txt",
		Binary:    "/code/42_abc_a.out",
		BuildDir:  "/code/42_abc_build",
	}

	cpp, _ := r.Resolve(Cpp)
	if !cpp.Compiled() {
		t.Fatalf("cpp should compile")
	}
	wantBuild := [][]string{{"g++", "-O2", "-o", "/code/42_abc_a.out", "/code/42_abc_main.cpp"}}
	if got := cpp.BuildCommands(p); !reflect.DeepEqual(got, wantBuild) {
		t.Fatalf("cpp build: %v", got)
	}
	if got := cpp.RunCommand(p); !reflect.DeepEqual(got, []string{"/code/42_abc_a.out"}) {
		t.Fatalf("cpp run: %v", got)
	}
	if got := cpp.ArtifactPaths(p); !reflect.DeepEqual(got, []string{"/code/42_abc_a.out"}) {
		t.Fatalf("cpp artifacts: %v", got)
	}

	java, _ := r.Resolve(Java)
	build := java.BuildCommands(p)
	if len(build) != 3 {
		t.Fatalf("java build steps: %v", build)
	}
	if !reflect.DeepEqual(build[2], []string{"javac", "-d", "/code/42_abc_build", "/code/42_abc_build/Main.java"}) {
		t.Fatalf("javac step: %v", build[2])
	}
	if got := java.RunCommand(p); !reflect.DeepEqual(got, []string{"java", "-cp", "/code/42_abc_build", "Main"}) {
		t.Fatalf("java run: %v", got)
	}

	py, _ := r.Resolve(Python)
	if py.Compiled() {
		t.Fatalf("python is interpreted")
	}
	if got := py.RunCommand(p); !reflect.DeepEqual(got, []string{"python3", "/code/42_abc_main.cpp"}) {
		t.Fatalf("python run: %v", got)
	}
	if len(py.ArtifactPaths(p)) != 0 {
		t.Fatalf("python has no artifacts")
	}
}

func TestExpansionDoesNotReparse(t *testing.T) {
	r := newTestRegistry(t)
	py, _ := r.Resolve(Python)
	p := Paths{Source: "/code/a b; rm -rf /"}
	got := py.RunCommand(p)
	if len(got) != 2 || got[1] != "/code/a b; rm -rf /" {
		t.Fatalf("substituted value must stay one argument: %v", got)
	}
}
