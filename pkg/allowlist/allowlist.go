// Package allowlist classifies Scrapinghub operations as mutating or non-mutating.
//
// The classification is static: an operation is non-mutating only if it is listed in the
// baseline allowlist or in safety.extra_non_mutating, and is not listed in
// safety.block_non_mutating. Everything else is mutating.
//
// The baseline is the allowlist embedded in the binary. A development checkout may replace
// it entirely with a scrapinghub-mcp.allowlist.yaml file at the repository root. Installed
// deployments always use the embedded baseline and can only widen it through configuration.
package allowlist

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
)

const (
	FileName = "scrapinghub-mcp.allowlist.yaml"

	nonMutatingKey = "non_mutating"
)

//go:embed scrapinghub-mcp.allowlist.yaml
var packagedAllowlist []byte

type SourceKind string

const (
	SourcePackaged SourceKind = "packaged"
	SourceOverride SourceKind = "override"
)

// Source identifies where the baseline allowlist was read from.
type Source struct {
	Kind SourceKind
	// Path is empty for the packaged baseline.
	Path string
}

func (s Source) String() string {
	if s.Path == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s (%s)", s.Kind, s.Path)
}

// Allowlist is the resolved set of non-mutating operation identifiers. It is immutable.
type Allowlist struct {
	source      Source
	nonMutating map[string]struct{}
}

// SelectSource returns the override file when running from a development checkout of this
// server that has one at its repository root, and the packaged baseline otherwise. A
// repository of any other project never supplies the baseline.
func SelectSource(fs afero.Fs, layout config.Layout) Source {
	if !layout.IsDevelopmentCheckout() || !config.IsPackageRoot(fs, layout.PackageRoot) {
		return Source{Kind: SourcePackaged}
	}
	override := filepath.Join(layout.RepositoryRoot, FileName)
	if isDir, err := afero.IsDir(fs, override); err != nil || isDir {
		return Source{Kind: SourcePackaged}
	}
	return Source{Kind: SourceOverride, Path: override}
}

// Parse reads an allowlist document: a mapping whose required non_mutating key holds a
// list of operation identifiers.
func Parse(data []byte) ([]string, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, &Error{Message: "allowlist must be a mapping", Err: err}
	}
	value, ok := document[nonMutatingKey]
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("missing required key %q", nonMutatingKey)}
	}
	items, ok := value.([]any)
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("%s must be a list of strings, got %T", nonMutatingKey, value)}
	}
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, ok := item.(string)
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("%s[%d] must be a string, got %T", nonMutatingKey, i, item)}
		}
		if id == "" {
			return nil, &Error{Message: fmt.Sprintf("%s[%d] must not be empty", nonMutatingKey, i)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadBaseline reads and parses the baseline allowlist from source.
func LoadBaseline(fs afero.Fs, source Source) ([]string, error) {
	data := packagedAllowlist
	if source.Kind == SourceOverride {
		var err error
		if data, err = afero.ReadFile(fs, source.Path); err != nil {
			return nil, &Error{Path: source.Path, Message: "failed to read allowlist", Err: err}
		}
	}
	ids, err := Parse(data)
	if err != nil {
		var allowlistErr *Error
		if errors.As(err, &allowlistErr) {
			allowlistErr.Path = source.Path
		}
		return nil, err
	}
	return ids, nil
}

// Build computes (baseline ∪ extra) − block. Blocking is applied last, so an identifier
// listed in both extra_non_mutating and block_non_mutating is excluded.
func Build(source Source, baseline []string, safety config.SafetyConfig) *Allowlist {
	nonMutating := make(map[string]struct{}, len(baseline)+len(safety.ExtraNonMutating))
	for _, id := range baseline {
		nonMutating[id] = struct{}{}
	}
	for _, id := range safety.ExtraNonMutating {
		nonMutating[id] = struct{}{}
	}
	for _, id := range safety.BlockNonMutating {
		delete(nonMutating, id)
	}
	return &Allowlist{source: source, nonMutating: nonMutating}
}

// Resolve selects the baseline source for layout, loads it and applies safety.
// All returned errors are *Error.
func Resolve(fs afero.Fs, layout config.Layout, safety config.SafetyConfig) (*Allowlist, error) {
	source := SelectSource(fs, layout)
	baseline, err := LoadBaseline(fs, source)
	if err != nil {
		return nil, err
	}
	allowlist := Build(source, baseline, safety)
	klog.V(1).InfoS("Resolved allowlist", "source", source.Kind, "path", source.Path,
		"baseline", len(baseline), "nonMutating", allowlist.Names())
	return allowlist, nil
}

func (a *Allowlist) Contains(id string) bool {
	_, ok := a.nonMutating[id]
	return ok
}

// Names returns the non-mutating identifiers in lexical order.
func (a *Allowlist) Names() []string {
	names := make([]string, 0, len(a.nonMutating))
	for id := range a.nonMutating {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func (a *Allowlist) Source() Source {
	return a.source
}
