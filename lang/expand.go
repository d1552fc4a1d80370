package lang

import "strings"

// Paths are the container-side locations of one execution unit.
type Paths struct {
	Namespace string
	Source    string
	Input     string
	Binary    string
	BuildDir  string
}

func (p Paths) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{src}", p.Source,
		"{input}", p.Input,
		"{bin}", p.Binary,
		"{build}", p.BuildDir,
		"{ns}", p.Namespace,
	)
}

// BuildCommands returns the entry's build steps with placeholders filled in.
func (e Entry) BuildCommands(p Paths) [][]string {
	r := p.replacer()
	steps := make([][]string, 0, len(e.Build))
	for _, argv := range e.Build {
		steps = append(steps, expand(r, argv))
	}
	return steps
}

// RunCommand returns the entry's run step with placeholders filled in.
func (e Entry) RunCommand(p Paths) []string {
	return expand(p.replacer(), e.Run)
}

// ArtifactPaths returns the build outputs that cleanup has to remove.
func (e Entry) ArtifactPaths(p Paths) []string {
	return expand(p.replacer(), e.Artifacts)
}

func expand(r *strings.Replacer, argv []string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = r.Replace(arg)
	}
	return out
}
