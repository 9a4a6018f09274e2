package problem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/judgebox/config"
)

// DefinitionFile is the file inside each problem directory describing it.
const DefinitionFile = "problem.yaml"

type caseDefinition struct {
	Name      string `yaml:"name"`
	Input     string `yaml:"input"`      // file relative to the problem directory
	InputText string `yaml:"input_text"` // inline alternative to Input
	TimeLimit int    `yaml:"time_limit"`
}

type definition struct {
	Cases []caseDefinition `yaml:"cases"`
}

// FSStore reads problems from a directory tree laid out as
//
//	<root>/<name>/problem.yaml
//	<root>/<name>/<case inputs>
//
// Definitions are read on every Lookup and never cached.
type FSStore struct {
	logger *zap.Logger
	root   string
}

// NewFSStore creates a store rooted at root.
func NewFSStore(logger *zap.Logger, root string) *FSStore {
	return &FSStore{logger: logger, root: root}
}

// NewFSStoreFromConfig creates a store at the configured problems path.
func NewFSStoreFromConfig(logger *zap.Logger, cfg *config.Config) *FSStore {
	return NewFSStore(logger.Named("problem"), cfg.Problems.Path)
}

// Lookup implements Store.
func (s *FSStore) Lookup(_ context.Context, name string) (Problem, error) {
	if err := validateName(name); err != nil {
		return Problem{}, err
	}
	dir := filepath.Join(s.root, name)

	data, err := os.ReadFile(filepath.Join(dir, DefinitionFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Problem{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Problem{}, fmt.Errorf("failed to read problem %s: %w", name, err)
	}

	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Problem{}, fmt.Errorf("failed to parse problem %s: %w", name, err)
	}

	p := Problem{Name: name, Cases: make([]Case, 0, len(def.Cases))}
	for i, cd := range def.Cases {
		c, err := loadCase(dir, cd)
		if err != nil {
			return Problem{}, fmt.Errorf("problem %s case %d: %w", name, i, err)
		}
		p.Cases = append(p.Cases, c)
	}
	return p, nil
}

func loadCase(dir string, cd caseDefinition) (Case, error) {
	if cd.Name == "" {
		return Case{}, fmt.Errorf("case name must not be empty")
	}
	if cd.TimeLimit <= 0 {
		return Case{}, fmt.Errorf("time_limit must be positive, got: %d", cd.TimeLimit)
	}
	if cd.Input != "" && cd.InputText != "" {
		return Case{}, fmt.Errorf("input and input_text are mutually exclusive")
	}

	c := Case{Name: cd.Name, TimeLimit: cd.TimeLimit, Input: []byte(cd.InputText)}
	if cd.Input != "" {
		if !filepath.IsLocal(cd.Input) {
			return Case{}, fmt.Errorf("input path escapes problem directory: %s", cd.Input)
		}
		data, err := os.ReadFile(filepath.Join(dir, cd.Input))
		if err != nil {
			return Case{}, fmt.Errorf("failed to read input: %w", err)
		}
		c.Input = data
	}
	return c, nil
}

// Available implements Store.
func (s *FSStore) Available(_ context.Context) []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("failure listing available problems", zap.String("path", s.root), zap.Error(err))
		return []string{}
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || validateName(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), DefinitionFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid problem name: %q", name)
	}
	return nil
}
