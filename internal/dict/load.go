package dict

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// FromYAML parses and compiles a dictionary document.
func FromYAML(data []byte) (*Store, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return FromFile(file)
}

// Load reads a dictionary from path. An empty path yields the embedded
// default.
func Load(path string) (*Store, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	store, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Default returns the embedded dictionary. The embedded document is
// validated on first use; a defect in it is a build error, not a
// runtime condition.
func Default() *Store {
	defaultOnce.Do(func() {
		store, err := FromYAML(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded dictionary invalid: %v", err))
		}
		defaultStore = store
	})
	return defaultStore
}
