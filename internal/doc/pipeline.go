package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external tool in dir with stdin piped in, returning
// captured stdout. The pipeline is only ever a stdin-in/stdout-out client
// of its tools; tests substitute a fake.
type Runner func(dir, name string, stdin string, args ...string) ([]byte, error)

// ExecRunner is the production Runner backed by os/exec.
func ExecRunner(dir, name string, stdin string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Options configures a Pipeline. Zero-value fields fall back to the
// conventional binary names and the os/exec runner.
type Options struct {
	Runner    Runner
	PandocBin string
	PythonBin string
	DotBin    string

	// Transforms overrides the built-in transform list. Each factory is
	// handed the runner and the per-compile working directory.
	Transforms []TransformFactory
}

// TransformFactory builds a transform bound to one compile's working
// directory.
type TransformFactory func(run Runner, workdir string) Transform

// Pipeline turns markdown source into a document tree: one pandoc parse
// followed by the ordered transform passes. A Pipeline is safe for use from
// multiple projects; all mutable state lives in the process-wide caches.
type Pipeline struct {
	run       Runner
	pandoc    string
	factories []TransformFactory
}

func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		run:       opts.Runner,
		pandoc:    opts.PandocBin,
		factories: opts.Transforms,
	}
	if p.run == nil {
		p.run = ExecRunner
	}
	if p.pandoc == "" {
		p.pandoc = "pandoc"
	}
	if p.factories == nil {
		python := opts.PythonBin
		if python == "" {
			python = "python"
		}
		dot := opts.DotBin
		if dot == "" {
			dot = "dot"
		}
		p.factories = []TransformFactory{
			func(run Runner, workdir string) Transform {
				return &ExecTransform{Run: run, Dir: workdir, Bin: python, Lang: "python"}
			},
			func(run Runner, workdir string) Transform {
				return &DiagramTransform{Run: run, Dir: workdir, Bin: dot, Lang: "graphviz"}
			},
		}
	}
	return p
}

// Compile parses src and applies the transform passes. workdir is where
// code blocks execute and diagram images land.
func (p *Pipeline) Compile(src, workdir string) (*Tree, error) {
	out, err := p.run(workdir, p.pandoc, src, "-f", "markdown", "-t", "json")
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	var tree Tree
	if err := json.Unmarshal(out, &tree); err != nil {
		return nil, fmt.Errorf("compile: unexpected pandoc output: %w", err)
	}

	result := &tree
	for _, factory := range p.factories {
		result = WalkTree(factory(p.run, workdir), result)
	}
	return result, nil
}

// ToPDF concatenates the given trees in order and renders them to a single
// PDF at outPath. A non-nil error means no success claim is made about the
// output file.
func (p *Pipeline) ToPDF(trees []*Tree, workdir, outPath string) error {
	merged := Tree{
		APIVersion: []int{1, 23, 1},
		Meta:       map[string]any{},
		Blocks:     []Block{},
	}
	for _, t := range trees {
		if len(t.APIVersion) > 0 {
			merged.APIVersion = t.APIVersion
		}
		merged.Blocks = append(merged.Blocks, t.Blocks...)
	}

	src, err := json.Marshal(&merged)
	if err != nil {
		return fmt.Errorf("to pdf: %w", err)
	}
	if _, err := p.run(workdir, p.pandoc, string(src), "-f", "json", "-o", outPath); err != nil {
		return fmt.Errorf("to pdf: %w", err)
	}
	return nil
}
