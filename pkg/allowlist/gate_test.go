package allowlist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
)

func testAllowlist() *Allowlist {
	return Build(Source{Kind: SourcePackaged}, []string{"projects.list", "jobs.list"}, config.SafetyConfig{})
}

func TestGateIsPermitted(t *testing.T) {
	allowlist := testAllowlist()
	t.Run("allowlisted operation permitted regardless of mutate flag", func(t *testing.T) {
		assert.True(t, NewGate(allowlist, false).IsPermitted("projects.list"))
		assert.True(t, NewGate(allowlist, true).IsPermitted("projects.list"))
	})
	t.Run("operation absent from allowlist requires mutate flag", func(t *testing.T) {
		assert.False(t, NewGate(allowlist, false).IsPermitted("projects.delete"))
		assert.True(t, NewGate(allowlist, true).IsPermitted("projects.delete"))
	})
	t.Run("names are not used to infer safety", func(t *testing.T) {
		assert.False(t, NewGate(allowlist, false).IsPermitted("projects.list_all"))
		assert.False(t, NewGate(allowlist, false).IsPermitted("jobs.get"))
	})
	t.Run("nil allowlist treats everything as mutating", func(t *testing.T) {
		assert.False(t, IsPermitted(nil, "projects.list", false))
		assert.True(t, IsPermitted(nil, "projects.list", true))
	})
}

func TestGateIsMutating(t *testing.T) {
	gate := NewGate(testAllowlist(), true)
	assert.False(t, gate.IsMutating("jobs.list"))
	assert.True(t, gate.IsMutating("jobs.run"))
	assert.True(t, gate.AllowMutate())
}

func TestGateCheck(t *testing.T) {
	gate := NewGate(testAllowlist(), false)
	require.NoError(t, gate.Check("jobs.list"))

	err := gate.Check("jobs.delete")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMutationNotAllowed))
	var permissionErr *PermissionError
	require.True(t, errors.As(err, &permissionErr))
	assert.Equal(t, "jobs.delete", permissionErr.Operation)
	assert.Contains(t, err.Error(), "--allow-mutate")
}

func TestGatePermissions(t *testing.T) {
	ids := []string{"projects.list", "jobs.list", "jobs.run", "jobs.delete"}
	t.Run("read-only", func(t *testing.T) {
		assert.Equal(t, map[string]bool{
			"projects.list": true,
			"jobs.list":     true,
			"jobs.run":      false,
			"jobs.delete":   false,
		}, NewGate(testAllowlist(), false).Permissions(ids))
	})
	t.Run("allow mutate", func(t *testing.T) {
		for id, permitted := range NewGate(testAllowlist(), true).Permissions(ids) {
			assert.Truef(t, permitted, "expected %s to be permitted", id)
		}
	})
}
