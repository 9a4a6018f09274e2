package executor

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
)

// Catalog maps implementation identifiers to constructors.
type Catalog map[string]Constructor

// NewCatalog returns the built-in implementations ("java", "python") plus one
// entry per command template. A template may shadow a built-in.
func NewCatalog(opts Options, templates map[string]config.TemplateConfig) (Catalog, error) {
	catalog := Catalog{
		"java":   NewJava(opts),
		"python": NewPython(opts),
	}
	for id, tc := range templates {
		c, err := NewTemplate(Template{Compile: tc.Compile, Run: tc.Run}, opts)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", id, err)
		}
		catalog[strings.ToLower(id)] = c
	}
	return catalog, nil
}

// NewRegistryFromConfig populates a registry from the configured language to
// implementation mapping. An unknown implementation fails startup.
func NewRegistryFromConfig(logger *zap.Logger, cfg *config.Config) (*Registry, error) {
	catalog, err := NewCatalog(Options{
		TimingWrapper:  cfg.Sandbox.TimingWrapper,
		CompileTimeout: cfg.CompileTimeout(),
	}, cfg.Templates)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for language, id := range cfg.Executors {
		c, ok := catalog[strings.ToLower(id)]
		if !ok {
			known := make([]string, 0, len(catalog))
			for k := range catalog {
				known = append(known, k)
			}
			slices.Sort(known)
			return nil, fmt.Errorf("unknown executor %q for language %q, known: %s", id, language, strings.Join(known, ", "))
		}
		registry.Register(language, c)
	}

	logger.Info("executors registered", zap.Strings("languages", registry.AvailableLanguages()))
	return registry, nil
}
