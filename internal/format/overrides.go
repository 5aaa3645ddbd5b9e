package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Label replaces the icon and/or title of an entry. Empty fields keep the
// built-in value.
type Label struct {
	Icon  string `yaml:"icon" toml:"icon"`
	Title string `yaml:"title" toml:"title"`
}

func (l Label) apply(d *Display) {
	if s := strings.TrimSpace(l.Icon); s != "" {
		d.Icon = s
	}
	if s := strings.TrimSpace(l.Title); s != "" {
		d.Title = s
	}
}

// Overrides holds display labels keyed by agent name (agent entries) and by
// entry kind (everything else).
type Overrides struct {
	Agents map[string]Label `yaml:"agents" toml:"agents"`
	Kinds  map[string]Label `yaml:"kinds" toml:"kinds"`
}

// LoadOverrides reads a display override file. The format follows the
// extension: .toml is TOML, anything else is YAML. An empty path returns
// empty overrides.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	if path == "" {
		return o, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("format: read overrides: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(buf, &o)
	default:
		err = yaml.Unmarshal(buf, &o)
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("format: parse %s: %w", path, err)
	}
	return o, nil
}
