package allowlist

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
)

const repoRoot = "/work/repo"

type AllowlistSuite struct {
	suite.Suite
	fs afero.Fs
}

func (s *AllowlistSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
}

func (s *AllowlistSuite) write(path, content string) {
	s.Require().NoError(s.fs.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(afero.WriteFile(s.fs, path, []byte(content), 0o644))
}

func (s *AllowlistSuite) developmentLayout() config.Layout {
	s.Require().NoError(s.fs.MkdirAll(filepath.Join(repoRoot, config.RepositoryMarker), 0o755))
	s.write(filepath.Join(repoRoot, config.PackageManifest), "module "+config.ModulePath+"\n\ngo 1.25\n")
	return config.Layout{WorkingDir: repoRoot, PackageRoot: repoRoot, RepositoryRoot: repoRoot}
}

func (s *AllowlistSuite) TestPackagedBaseline() {
	ids, err := LoadBaseline(s.fs, Source{Kind: SourcePackaged})
	s.Require().NoError(err)
	s.Contains(ids, "projects.list")
	s.Contains(ids, "projects.summary")
	s.NotContains(ids, "jobs.run")
	s.NotContains(ids, "jobs.delete")
	s.NotContains(ids, "jobs.cancel")
}

func (s *AllowlistSuite) TestParse() {
	s.Run("valid document", func() {
		ids, err := Parse([]byte("non_mutating:\n  - projects.list\n  - jobs.list\n"))
		s.Require().NoError(err)
		s.Equal([]string{"projects.list", "jobs.list"}, ids)
	})
	s.Run("empty list", func() {
		ids, err := Parse([]byte("non_mutating: []\n"))
		s.Require().NoError(err)
		s.Empty(ids)
	})
	s.Run("extra top-level keys are ignored", func() {
		ids, err := Parse([]byte("version: 1\nnon_mutating: [projects.list]\n"))
		s.Require().NoError(err)
		s.Equal([]string{"projects.list"}, ids)
	})
}

func (s *AllowlistSuite) TestParseInvalid() {
	cases := map[string]string{
		"top-level list":     "- projects.list\n- jobs.list\n",
		"top-level scalar":   "projects.list\n",
		"empty document":     "",
		"missing key":        "mutating: [jobs.run]\n",
		"null value":         "non_mutating:\n",
		"string value":       "non_mutating: projects.list\n",
		"mapping value":      "non_mutating:\n  projects: list\n",
		"non-string element": "non_mutating: [projects.list, 3]\n",
		"nested list":        "non_mutating: [[projects.list]]\n",
		"empty element":      "non_mutating: [\"\"]\n",
		"invalid yaml":       "non_mutating: [projects.list\n",
	}
	for name, data := range cases {
		s.Run(name, func() {
			ids, err := Parse([]byte(data))
			s.Nil(ids)
			var allowlistErr *Error
			s.Truef(errors.As(err, &allowlistErr), "expected *allowlist.Error, got %v", err)
		})
	}
}

func (s *AllowlistSuite) TestSelectSource() {
	s.Run("installed deployment uses packaged baseline", func() {
		s.write("/opt/install/"+FileName, "non_mutating: [jobs.delete]\n")
		source := SelectSource(s.fs, config.Layout{WorkingDir: "/opt/install"})
		s.Equal(Source{Kind: SourcePackaged}, source)
	})
	s.Run("development checkout without override uses packaged baseline", func() {
		layout := s.developmentLayout()
		s.Equal(SourcePackaged, SelectSource(s.fs, layout).Kind)
	})
	s.Run("override outside the repository root is ignored", func() {
		layout := s.developmentLayout()
		layout.WorkingDir = repoRoot + "/sub"
		s.write(repoRoot+"/sub/"+FileName, "non_mutating: [jobs.delete]\n")
		s.Equal(SourcePackaged, SelectSource(s.fs, layout).Kind)
	})
	s.Run("development checkout with override uses it", func() {
		layout := s.developmentLayout()
		s.write(filepath.Join(repoRoot, FileName), "non_mutating: [projects.list]\n")
		s.Equal(Source{Kind: SourceOverride, Path: filepath.Join(repoRoot, FileName)}, SelectSource(s.fs, layout))
	})
}

func (s *AllowlistSuite) TestUnrelatedRepositoryCannotOverride() {
	const project = "/home/u/someproject"
	s.Require().NoError(s.fs.MkdirAll(filepath.Join(project, config.RepositoryMarker), 0o755))
	s.Require().NoError(s.fs.MkdirAll("/usr/local/bin", 0o755))
	s.write(filepath.Join(project, FileName), "non_mutating: [jobs.delete, jobs.run]\n")

	s.Run("git repository without go.mod", func() {
		layout := config.DiscoverLayout(s.fs, project, "/usr/local/bin")
		allowlist, err := Resolve(s.fs, layout, config.SafetyConfig{})
		s.Require().NoError(err)
		s.Equal(Source{Kind: SourcePackaged}, allowlist.Source())
		s.False(IsPermitted(allowlist, "jobs.delete", false))
	})
	s.Run("git repository of another Go module", func() {
		s.write(filepath.Join(project, config.PackageManifest), "module example.com/someproject\n")
		layout := config.DiscoverLayout(s.fs, project, "/usr/local/bin")
		allowlist, err := Resolve(s.fs, layout, config.SafetyConfig{})
		s.Require().NoError(err)
		s.Equal(SourcePackaged, allowlist.Source().Kind)
		s.False(IsPermitted(allowlist, "jobs.run", false))
	})
	s.Run("hand-built layout pointing at another module", func() {
		layout := config.Layout{WorkingDir: project, PackageRoot: project, RepositoryRoot: project}
		s.Equal(SourcePackaged, SelectSource(s.fs, layout).Kind)
	})
}

func (s *AllowlistSuite) TestOverrideReplacesBaseline() {
	layout := s.developmentLayout()
	s.write(filepath.Join(repoRoot, FileName), "non_mutating:\n  - projects.list\n")

	allowlist, err := Resolve(s.fs, layout, config.SafetyConfig{})
	s.Require().NoError(err)
	s.Equal([]string{"projects.list"}, allowlist.Names(), "override is not merged with the packaged baseline")
	s.False(allowlist.Contains("projects.summary"))
	s.Equal(SourceOverride, allowlist.Source().Kind)
}

func (s *AllowlistSuite) TestResolveInvalidOverride() {
	layout := s.developmentLayout()
	overridePath := filepath.Join(repoRoot, FileName)
	s.write(overridePath, "non_mutating: projects.list\n")

	allowlist, err := Resolve(s.fs, layout, config.SafetyConfig{})
	s.Nil(allowlist)
	var allowlistErr *Error
	s.Require().True(errors.As(err, &allowlistErr))
	s.Equal(overridePath, allowlistErr.Path)
	s.Contains(err.Error(), overridePath)
}

func (s *AllowlistSuite) TestBuild() {
	baseline := []string{"projects.list", "projects.summary"}
	cases := []struct {
		name     string
		safety   config.SafetyConfig
		expected []string
	}{
		{
			name:     "baseline only",
			expected: []string{"projects.list", "projects.summary"},
		},
		{
			name:     "extension adds",
			safety:   config.SafetyConfig{ExtraNonMutating: []string{"jobs.list"}},
			expected: []string{"jobs.list", "projects.list", "projects.summary"},
		},
		{
			name:     "block removes baseline entry",
			safety:   config.SafetyConfig{BlockNonMutating: []string{"projects.summary"}},
			expected: []string{"projects.list"},
		},
		{
			name: "block wins over extension",
			safety: config.SafetyConfig{
				ExtraNonMutating: []string{"jobs.cancel", "jobs.list"},
				BlockNonMutating: []string{"jobs.cancel"},
			},
			expected: []string{"jobs.list", "projects.list", "projects.summary"},
		},
		{
			name:     "blocking unknown identifier is harmless",
			safety:   config.SafetyConfig{BlockNonMutating: []string{"jobs.unknown"}},
			expected: []string{"projects.list", "projects.summary"},
		},
		{
			name:     "duplicates collapse",
			safety:   config.SafetyConfig{ExtraNonMutating: []string{"projects.list", "projects.list"}},
			expected: []string{"projects.list", "projects.summary"},
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			allowlist := Build(Source{Kind: SourcePackaged}, baseline, tc.safety)
			s.Equal(tc.expected, allowlist.Names())
		})
	}
}

func (s *AllowlistSuite) TestBuildEndToEnd() {
	safety := config.SafetyConfig{
		ExtraNonMutating: []string{"jobs.cancel"},
		BlockNonMutating: []string{"jobs.cancel"},
	}
	allowlist := Build(Source{Kind: SourcePackaged}, []string{"projects.list"}, safety)
	s.Equal([]string{"projects.list"}, allowlist.Names())
	s.False(IsPermitted(allowlist, "jobs.cancel", false))
}

func TestAllowlist(t *testing.T) {
	suite.Run(t, new(AllowlistSuite))
}
