package entity

import (
	"fmt"
	"image/color"
)

// Class names the scoring engine looks for.
const (
	ClassStairs   = "stairs"
	ClassDoor     = "door"
	ClassSidewalk = "sidewalk"
	ClassBuilding = "building"
	ClassRailing  = "railing"
	ClassRamp     = "ramp"
)

// ClassMap maps semantic class names to segmentation class IDs.
// It is immutable once built.
type ClassMap struct {
	ids   map[string]int
	names map[int]string
}

// NewClassMap validates classes and returns an immutable copy.
func NewClassMap(classes map[string]int) (*ClassMap, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidClassMap)
	}

	m := &ClassMap{
		ids:   make(map[string]int, len(classes)),
		names: make(map[int]string, len(classes)),
	}
	for name, id := range classes {
		if name == "" {
			return nil, fmt.Errorf("%w: empty class name", ErrInvalidClassMap)
		}
		if id < 0 {
			return nil, fmt.Errorf("%w: negative id %d for %q", ErrInvalidClassMap, id, name)
		}
		if other, dup := m.names[id]; dup {
			return nil, fmt.Errorf("%w: id %d used by %q and %q", ErrInvalidClassMap, id, other, name)
		}
		m.ids[name] = id
		m.names[id] = name
	}
	return m, nil
}

// DefaultClassMap returns the ADE20K ids used by the SegFormer checkpoints.
func DefaultClassMap() *ClassMap {
	m, err := NewClassMap(map[string]int{
		"wall":        0,
		ClassBuilding: 1,
		"sky":         2,
		"floor":       3,
		"tree":        4,
		"road":        6,
		"grass":       9,
		ClassSidewalk: 11,
		"person":      12,
		ClassDoor:     14,
		"car":         20,
		"fence":       32,
		ClassRailing:  38,
		"column":      42,
		"signboard":   43,
		"path":        52,
		ClassStairs:   53,
		"stairway":    59,
		"bannister":   95,
	})
	if err != nil {
		panic(err)
	}
	return m
}

// ID returns the class id for name.
func (m *ClassMap) ID(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.ids[name]
	return id, ok
}

// Name returns the class name for id.
func (m *ClassMap) Name(id int) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.names[id]
	return name, ok
}

// Len returns the number of classes.
func (m *ClassMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Palette assigns overlay colours to class names.
type Palette map[string]color.RGBA

// DefaultPalette colours the classes that matter for entrances; everything
// else stays transparent in the overlay.
func DefaultPalette() Palette {
	return Palette{
		ClassBuilding: {R: 70, G: 70, B: 70, A: 255},
		ClassSidewalk: {R: 244, G: 35, B: 232, A: 255},
		ClassDoor:     {R: 0, G: 0, B: 255, A: 255},
		ClassRailing:  {R: 255, G: 255, B: 0, A: 255},
		ClassStairs:   {R: 255, G: 0, B: 0, A: 255},
		ClassRamp:     {R: 0, G: 255, B: 0, A: 255},
		"road":        {R: 128, G: 64, B: 128, A: 255},
		"path":        {R: 152, G: 251, B: 152, A: 255},
	}
}
