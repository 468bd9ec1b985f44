package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Allowlist is a static, operator-maintained set of agent names and
// images Discovery will register, loaded from AGENT_ALLOWLIST_FILE
// (§11's home for this codebase's yaml.v3 dependency, read the way this
// codebase reads its own structured config documents). A nil Allowlist,
// or one naming neither names nor images, imposes no restriction: every
// mcp.server=true container is still eligible.
type Allowlist struct {
	Names  map[string]bool
	Images map[string]bool
}

// allowlistDocument is the on-disk YAML shape.
type allowlistDocument struct {
	Names  []string `yaml:"names"`
	Images []string `yaml:"images"`
}

// LoadAllowlist reads and parses path as YAML.
func LoadAllowlist(path string) (*Allowlist, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading allowlist: %w", err)
	}

	var doc allowlistDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing allowlist: %w", err)
	}

	al := &Allowlist{
		Names:  make(map[string]bool, len(doc.Names)),
		Images: make(map[string]bool, len(doc.Images)),
	}
	for _, n := range doc.Names {
		al.Names[n] = true
	}
	for _, img := range doc.Images {
		al.Images[img] = true
	}
	return al, nil
}

// Allows reports whether an agent with the given name/image may be
// registered. An empty allowlist (no names, no images named at all)
// permits everything, so operators who never set AGENT_ALLOWLIST_FILE
// see no behavior change.
func (a *Allowlist) Allows(name, image string) bool {
	if a == nil || (len(a.Names) == 0 && len(a.Images) == 0) {
		return true
	}
	return a.Names[name] || a.Images[image]
}
