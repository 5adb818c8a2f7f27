package ue

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayout []byte

// Layout is the memory layout of host objects for one build.
type Layout struct {
	Version int `yaml:"version"`
	Object  struct {
		Class uintptr `yaml:"class"`
		Name  uintptr `yaml:"name"`
		Outer uintptr `yaml:"outer"`
	} `yaml:"object"`
	Objects struct {
		Chunks    uintptr `yaml:"chunks"`
		ChunkSize int     `yaml:"chunkSize"`
		ItemSize  uintptr `yaml:"itemSize"`
	} `yaml:"objects"`
	// Properties maps "Class:Field" to the field offset.
	Properties map[string]uintptr `yaml:"properties"`
	// Functions maps "Class:Function" to the size of its parameter block.
	Functions map[string]int `yaml:"functions"`
}

// DefaultLayout returns the layout built into the binary.
func DefaultLayout() *Layout {
	l, err := LoadLayout(bytes.NewReader(defaultLayout))
	if err != nil {
		panic("ue: embedded layout: " + err.Error())
	}
	return l
}

// LoadLayout decodes a layout.
func LoadLayout(r io.Reader) (*Layout, error) {
	l := new(Layout)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(l); err != nil {
		return nil, err
	}
	if l.Objects.ChunkSize <= 0 || l.Objects.ItemSize == 0 {
		return nil, fmt.Errorf("ue: layout: bad object array geometry")
	}
	return l, nil
}

func (l *Layout) property(key string) (uintptr, error) {
	off, ok := l.Properties[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMember, key)
	}
	return off, nil
}
