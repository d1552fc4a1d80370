package lang

import (
	"sort"
	"strings"

	"github.com/bskracic/langs-executor/apperr"
	"github.com/google/shlex"
)

const (
	Java   = "java"
	Cpp    = "cpp"
	Python = "python"
)

// Definition is the textual form of a registry entry. Command templates are
// shell-like strings that are split once and then expanded argument by
// argument, so substituted paths are never re-parsed.
type Definition struct {
	Language   string
	SourceFile string
	Build      []string
	Run        string
	Artifacts  []string
}

// Defaults holds the built-in languages. Runtime names are bound separately.
var Defaults = []Definition{
	{
		Language:   Java,
		SourceFile: "Main.java",
		Build: []string{
			"mkdir -p {build}",
			"cp {src} {build}/Main.java",
			"javac -d {build} {build}/Main.java",
		},
		Run:       "java -cp {build} Main",
		Artifacts: []string{"{build}"},
	},
	{
		Language:   Cpp,
		SourceFile: "main.cpp",
		Build:      []string{"g++ -O2 -o {bin} {src}"},
		Run:        "{bin}",
		Artifacts:  []string{"{bin}"},
	},
	{
		Language:   Python,
		SourceFile: "main.py",
		Run:        "python3 {src}",
	},
}

// Entry binds a language to its runtime and parsed command templates.
type Entry struct {
	Language   string
	Runtime    string
	SourceFile string
	Build      [][]string
	Run        []string
	Artifacts  []string
}

// Compiled reports whether the entry has a build phase.
func (e Entry) Compiled() bool {
	return len(e.Build) > 0
}

// Registry is read-only after construction.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry parses defs and binds each language to the runtime named in
// runtimes. Every definition must have a runtime.
func NewRegistry(defs []Definition, runtimes map[string]string) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(defs))}
	for _, def := range defs {
		key := normalize(def.Language)
		if key == "" {
			return nil, apperr.New(apperr.InvalidParams)
		}
		if _, dup := r.entries[key]; dup {
			return nil, apperr.Newf(apperr.InvalidParams, "language %q registered twice", key)
		}
		runtime := strings.TrimSpace(runtimes[key])
		if runtime == "" {
			return nil, apperr.Newf(apperr.InvalidParams, "no runtime configured for %q", key)
		}
		if strings.ContainsAny(def.SourceFile, "/\\") || def.SourceFile == "" {
			return nil, apperr.Newf(apperr.InvalidParams, "invalid source file %q for %q", def.SourceFile, key)
		}

		entry := Entry{
			Language:   key,
			Runtime:    runtime,
			SourceFile: def.SourceFile,
			Artifacts:  def.Artifacts,
		}
		for _, tpl := range def.Build {
			argv, err := parseTemplate(tpl)
			if err != nil {
				return nil, apperr.Wrapf(err, apperr.InvalidParams, "%s build template %q: %v", key, tpl, err)
			}
			entry.Build = append(entry.Build, argv)
		}
		argv, err := parseTemplate(def.Run)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.InvalidParams, "%s run template %q: %v", key, def.Run, err)
		}
		entry.Run = argv
		r.entries[key] = entry
	}
	return r, nil
}

// Resolve looks up a language case-insensitively.
func (r *Registry) Resolve(language string) (Entry, error) {
	entry, ok := r.entries[normalize(language)]
	if !ok {
		return Entry{}, apperr.Newf(apperr.UnsupportedLanguage, "Unsupported language: %s", language)
	}
	return entry, nil
}

// Languages returns the registered language keys in sorted order.
func (r *Registry) Languages() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Runtimes returns the distinct runtime names in sorted order.
func (r *Registry) Runtimes() []string {
	seen := make(map[string]struct{}, len(r.entries))
	var names []string
	for _, e := range r.entries {
		if _, ok := seen[e.Runtime]; ok {
			continue
		}
		seen[e.Runtime] = struct{}{}
		names = append(names, e.Runtime)
	}
	sort.Strings(names)
	return names
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func parseTemplate(tpl string) ([]string, error) {
	argv, err := shlex.Split(tpl)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, apperr.Newf(apperr.InvalidParams, "command template is empty")
	}
	return argv, nil
}
