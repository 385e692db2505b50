package sidecar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Manifest is optional launch metadata shipped next to a bundled sidecar,
// as <name>.toml or <name>.yaml.
type Manifest struct {
	Args       []string          `toml:"args" yaml:"args"`
	Env        map[string]string `toml:"env" yaml:"env"`
	HealthPath string            `toml:"health_path" yaml:"health_path"`
}

var manifestExts = []string{".toml", ".yaml", ".yml"}

// LoadManifest reads the first manifest found for name in dir. It returns
// (nil, "", nil) when there is none.
func LoadManifest(dir, name string) (*Manifest, string, error) {
	for _, ext := range manifestExts {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, fmt.Errorf("read manifest: %w", err)
		}

		var m Manifest
		switch ext {
		case ".toml":
			err = toml.Unmarshal(data, &m)
		default:
			err = yaml.Unmarshal(data, &m)
		}
		if err != nil {
			return nil, path, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
		}
		return &m, path, nil
	}
	return nil, "", nil
}

// apply merges the manifest into a copy of d.
func (m *Manifest) apply(d Descriptor) Descriptor {
	d = d.Clone()
	d.Args = append(d.Args, m.Args...)

	keys := make([]string, 0, len(m.Env))
	for k := range m.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Env = append(d.Env, k+"="+m.Env[k])
	}

	if m.HealthPath != "" {
		d.HealthPath = m.HealthPath
	}
	return d
}
