package layout

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// fileFormat is the on-disk layout description:
//
//	[spine]
//	width = 6
//	height = 15
//
//	[[slot]]
//	id = 1
//	x = 8
//	y = 5
type fileFormat struct {
	Spine Spine  `toml:"spine"`
	Slots []Slot `toml:"slot"`
}

// LoadFile reads a TOML layout file. An empty path yields the default layout.
func LoadFile(path string) (*Layout, error) {
	if path == "" {
		return Default(), nil
	}

	var f fileFormat
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode layout file %s: %w", path, err)
	}

	l, err := New(f.Slots, f.Spine)
	if err != nil {
		return nil, fmt.Errorf("layout file %s: %w", path, err)
	}
	return l, nil
}
