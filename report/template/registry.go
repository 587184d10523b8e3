package template

import (
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/reportcopilot/errors"
)

//go:embed templates.yaml
var builtinYAML []byte

// file is the on-disk shape shared by the embedded registry and extra files
type file struct {
	Default   string   `yaml:"default" toml:"default"`
	Templates []Config `yaml:"templates" toml:"templates"`
}

// Registry maps template keys to configurations
type Registry struct {
	byKey      map[string]*Config
	order      []string
	defaultKey string
}

var (
	builtinOnce sync.Once
	builtin     *Registry
	builtinErr  error
)

// Builtin returns the registry of embedded templates.
// It panics if the embedded file is malformed, which is a build defect.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		var f file
		if err := yaml.Unmarshal(builtinYAML, &f); err != nil {
			builtinErr = errors.Wrap(err, "parse embedded templates")
			return
		}
		builtin, builtinErr = newRegistry(f)
	})
	if builtinErr != nil {
		panic(builtinErr)
	}
	return builtin
}

// Load returns the built-in registry merged with the templates in extraPath.
// Templates in the extra file replace built-ins with the same key. An empty
// path returns the built-ins.
func Load(extraPath string) (*Registry, error) {
	base := Builtin()
	if strings.TrimSpace(extraPath) == "" {
		return base, nil
	}

	extra, err := readFile(extraPath)
	if err != nil {
		return nil, err
	}

	merged := file{Default: base.defaultKey}
	for _, key := range base.order {
		merged.Templates = append(merged.Templates, *base.byKey[key])
	}
	for _, cfg := range extra.Templates {
		replaced := false
		for i := range merged.Templates {
			if merged.Templates[i].Key == cfg.Key {
				merged.Templates[i] = cfg
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Templates = append(merged.Templates, cfg)
		}
	}
	if extra.Default != "" {
		merged.Default = extra.Default
	}

	reg, err := newRegistry(merged)
	if err != nil {
		return nil, errors.Wrapf(err, "templates file %s", extraPath)
	}
	return reg, nil
}

func readFile(path string) (file, error) {
	var f file
	data, err := os.ReadFile(path)
	if err != nil {
		return f, errors.Wrapf(err, "read templates file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return f, errors.WithHint(
			errors.Newf("unsupported templates file extension %q", filepath.Ext(path)),
			"use .yaml, .yml or .toml",
		)
	}
	if err != nil {
		return f, errors.Wrapf(err, "parse templates file %s", path)
	}
	return f, nil
}

func newRegistry(f file) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Config, len(f.Templates))}
	for i := range f.Templates {
		cfg := f.Templates[i]
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byKey[cfg.Key]; dup {
			return nil, errors.Newf("duplicate template key %q", cfg.Key)
		}
		r.byKey[cfg.Key] = &cfg
		r.order = append(r.order, cfg.Key)
	}

	r.defaultKey = f.Default
	if r.defaultKey == "" && len(r.order) > 0 {
		r.defaultKey = r.order[0]
	}
	if _, ok := r.byKey[r.defaultKey]; !ok {
		return nil, errors.Newf("default template %q is not defined", r.defaultKey)
	}
	return r, nil
}

// Get returns the template for key, or an error wrapping ErrUnknownTemplate
func (r *Registry) Get(key string) (*Config, error) {
	cfg, ok := r.byKey[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownTemplate, "unknown template: %s", key)
	}
	return cfg, nil
}

// Resolve returns the template for key, or the default template when key is blank
func (r *Registry) Resolve(key string) (*Config, error) {
	if strings.TrimSpace(key) == "" {
		key = r.defaultKey
	}
	return r.Get(key)
}

// Default returns the default template key
func (r *Registry) Default() string {
	return r.defaultKey
}

// WithDefault returns a copy of the registry whose default is key.
// A blank key returns r unchanged.
func (r *Registry) WithDefault(key string) (*Registry, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == r.defaultKey {
		return r, nil
	}
	if _, err := r.Get(key); err != nil {
		return nil, errors.WithHint(err, "check pipeline.default_template")
	}
	out := *r
	out.defaultKey = key
	return &out, nil
}

// Keys returns template keys in registration order
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// InferFromReport picks the template whose required headers appear most often
// as "<header>:" in text. Ties keep the earlier template; templates without
// headers are never chosen. Falls back to the default template.
func (r *Registry) InferFromReport(text string) *Config {
	best := r.byKey[r.defaultKey]
	bestScore := -1
	for _, key := range r.order {
		cfg := r.byKey[key]
		if len(cfg.WriterFormat) == 0 {
			continue
		}
		score := 0
		for _, h := range cfg.WriterFormat {
			if strings.Contains(text, h+":") {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cfg, score
		}
	}
	return best
}

// SortedSections returns keys of m ordered by their position in headers, then
// the remaining keys alphabetically.
func SortedSections[V any](m map[string]V, headers []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, h := range headers {
		if _, ok := m[h]; ok && !seen[h] {
			out = append(out, h)
			seen[h] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
