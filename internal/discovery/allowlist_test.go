package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.yaml")
	content := "names:\n  - search-agent\nimages:\n  - registry.example.com/echo:latest\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	al, err := LoadAllowlist(path)
	require.NoError(t, err)
	assert.True(t, al.Names["search-agent"])
	assert.True(t, al.Images["registry.example.com/echo:latest"])
	assert.False(t, al.Names["other-agent"])
}

func TestLoadAllowlist_MissingFile(t *testing.T) {
	_, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAllowlist_Allows_NilIsPermissive(t *testing.T) {
	var al *Allowlist
	assert.True(t, al.Allows("anything", "anything:latest"))
}

func TestAllowlist_Allows_EmptyIsPermissive(t *testing.T) {
	al := &Allowlist{Names: map[string]bool{}, Images: map[string]bool{}}
	assert.True(t, al.Allows("anything", "anything:latest"))
}

func TestAllowlist_Allows_MatchesByNameOrImage(t *testing.T) {
	al := &Allowlist{
		Names:  map[string]bool{"search-agent": true},
		Images: map[string]bool{"allowed/image:latest": true},
	}

	assert.True(t, al.Allows("search-agent", "anything:latest"))
	assert.True(t, al.Allows("other-name", "allowed/image:latest"))
	assert.False(t, al.Allows("other-name", "other/image:latest"))
}
