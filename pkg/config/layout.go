package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/mod/modfile"
)

const (
	// ModulePath identifies this server's own module in a go.mod file.
	ModulePath = "github.com/lambdamechanic/scrapinghub-mcp"
	// PackageManifest marks the root of the installed Go module.
	PackageManifest = "go.mod"
	// RepositoryMarker marks the root of a development checkout.
	RepositoryMarker = ".git"
)

// Layout holds the directories taking part in configuration discovery.
// Empty fields were not found.
type Layout struct {
	WorkingDir string
	// PackageRoot is the nearest ancestor whose go.mod declares ModulePath.
	PackageRoot string
	// RepositoryRoot is the nearest ancestor of PackageRoot holding RepositoryMarker.
	RepositoryRoot string
}

// DiscoverLayout walks up from each start directory, in order, until the package root is
// found. Manifests of other modules are skipped, and the repository root is only looked
// up above the package root, so an unrelated project never counts as a checkout.
func DiscoverLayout(fs afero.Fs, workingDir string, startDirs ...string) Layout {
	layout := Layout{WorkingDir: workingDir}
	for _, start := range append([]string{workingDir}, startDirs...) {
		if start == "" {
			continue
		}
		if layout.PackageRoot = findPackageRoot(fs, start); layout.PackageRoot != "" {
			break
		}
	}
	if layout.PackageRoot != "" {
		layout.RepositoryRoot = findAncestor(fs, layout.PackageRoot, RepositoryMarker)
	}
	return layout
}

// IsDevelopmentCheckout reports whether the package root lies inside a repository root.
func (l Layout) IsDevelopmentCheckout() bool {
	if l.PackageRoot == "" || l.RepositoryRoot == "" {
		return false
	}
	return isWithin(l.RepositoryRoot, l.PackageRoot)
}

// IsPackageRoot reports whether dir holds a go.mod declaring ModulePath.
func IsPackageRoot(fs afero.Fs, dir string) bool {
	data, err := afero.ReadFile(fs, filepath.Join(dir, PackageManifest))
	if err != nil {
		return false
	}
	return modfile.ModulePath(data) == ModulePath
}

// SearchDirs returns the configuration search order: working directory, package root,
// repository root. Missing and duplicate directories are skipped.
func (l Layout) SearchDirs() []string {
	dirs := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, dir := range []string{l.WorkingDir, l.PackageRoot, l.RepositoryRoot} {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

func findPackageRoot(fs afero.Fs, start string) string {
	dir := filepath.Clean(start)
	for {
		if IsPackageRoot(fs, dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func findAncestor(fs afero.Fs, start, marker string) string {
	dir := filepath.Clean(start)
	for {
		if exists, _ := afero.Exists(fs, filepath.Join(dir, marker)); exists {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func isWithin(root, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
