package definition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes every YAML document in r into a definition. Rule
// expressions are parsed during decoding, so a malformed rule fails the
// load with the offending line number.
func LoadYAML(r io.Reader) ([]*Workflow, error) {
	dec := yaml.NewDecoder(r)

	var out []*Workflow
	for {
		w := new(Workflow)
		err := dec.Decode(w)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode definition %d: %w", len(out)+1, err)
		}
		if w.SkillType == "" && len(w.Phases) == 0 {
			continue // empty document
		}
		w.Normalize()
		out = append(out, w)
	}
	return out, nil
}

// LoadFS loads every *.yaml and *.yml file directly under dir in fsys.
func LoadFS(fsys fs.FS, dir string) ([]*Workflow, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir %s: %w", dir, err)
	}

	var out []*Workflow
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		f, openErr := fsys.Open(path.Join(dir, name))
		if openErr != nil {
			return nil, fmt.Errorf("open %s: %w", name, openErr)
		}
		defs, loadErr := LoadYAML(f)
		_ = f.Close()
		if loadErr != nil {
			return nil, fmt.Errorf("%s: %w", name, loadErr)
		}
		out = append(out, defs...)
	}
	return out, nil
}

// LoadDir loads definitions from a directory on disk.
func LoadDir(dir string) ([]*Workflow, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// RegisterAll registers each definition, stopping at the first failure.
func (r *Registry) RegisterAll(defs ...*Workflow) error {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
