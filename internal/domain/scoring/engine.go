// Package scoring turns a segmentation label grid into an accessibility
// assessment: which entrance-related objects are visible, how they relate
// to each other, and a 1-10 score.
package scoring

import (
	"fmt"
	"math"
	"math/rand/v2"

	"ablemap/internal/domain/entity"
)

// Engine scores label grids against a fixed class map. It holds no mutable
// state and may be shared between goroutines.
type Engine struct {
	classes   *entity.ClassMap
	threshold float64
	seed      *uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes distance sampling reproducible: every Analyze call starts
// from a generator seeded with seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = &seed }
}

// NewEngine creates an engine. threshold is the adjacency distance in cells.
func NewEngine(classes *entity.ClassMap, threshold float64, opts ...Option) (*Engine, error) {
	if classes.Len() == 0 {
		return nil, fmt.Errorf("%w: class map is empty", entity.ErrInvalidInput)
	}
	if !(threshold > 0) || math.IsInf(threshold, 1) {
		return nil, fmt.Errorf("%w: threshold distance %v", entity.ErrInvalidInput, threshold)
	}
	e := &Engine{classes: classes, threshold: threshold}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Analyze is a one-shot helper around NewEngine and Engine.Analyze.
func Analyze(grid *entity.LabelGrid, classes *entity.ClassMap, threshold float64, opts ...Option) (*entity.AccessibilityResult, error) {
	e, err := NewEngine(classes, threshold, opts...)
	if err != nil {
		return nil, err
	}
	return e.Analyze(grid)
}

// Analyze detects stairs, doors, sidewalks, buildings and railings in grid
// and scores the entrance.
func (e *Engine) Analyze(grid *entity.LabelGrid) (*entity.AccessibilityResult, error) {
	if grid.Empty() {
		return nil, fmt.Errorf("%w: empty label grid", entity.ErrInvalidInput)
	}
	rng := e.newRand()

	res := &entity.AccessibilityResult{
		EntranceAccessible: true,
		Obstacles:          []entity.ObstacleTag{},
	}

	stairs := e.mask(grid, entity.ClassStairs)
	if stairs.Any() {
		res.HasStairs = true
		res.AddObstacle(entity.ObstacleStairs)
		f := measure(stairs)
		f.EstimatedSize = SizeFor(f.Ratio)
		res.Details.Stairs = f
	}

	door := e.mask(grid, entity.ClassDoor)
	if door.Any() {
		res.HasDoor = true
		f := measure(door)
		f.EstimatedWidth = WidthFor(f.Ratio)
		res.Details.Door = f

		if res.HasStairs {
			d := MinDistance(stairs, door, rng)
			res.Details.StairsToDoorDistance = finite(d)
			if d < e.threshold {
				res.EntranceAccessible = false
				res.AddObstacle(entity.ObstacleStairsAtEntrance)
			}
		}
	}

	sidewalk := e.mask(grid, entity.ClassSidewalk)
	if sidewalk.Any() {
		res.HasSidewalk = true
		if res.HasDoor {
			d := MinDistance(sidewalk, door, rng)
			res.Details.SidewalkToDoorDistance = finite(d)
			if !math.IsInf(d, 1) && d > e.threshold {
				res.AddObstacle(entity.ObstacleDisconnectedSidewalk)
			}
		}
	}

	if building := e.mask(grid, entity.ClassBuilding); building.Any() {
		res.HasBuilding = true
		res.Details.Building = measure(building)
	}

	if railing := e.mask(grid, entity.ClassRailing); railing.Any() {
		res.HasRailing = true
		if res.HasStairs {
			d := MinDistance(railing, stairs, rng)
			res.Details.RailingToStairsDistance = finite(d)
			if d < e.threshold {
				res.HasStairsRailing = true
			}
		}
	}

	// ADE20K has no ramp class; custom class maps may add one.
	res.HasRamp = e.mask(grid, entity.ClassRamp).Any()

	res.Score = Score(res)
	return res, nil
}

// mask returns nil when the class is not in the class map.
func (e *Engine) mask(grid *entity.LabelGrid, name string) *entity.ObjectMask {
	id, ok := e.classes.ID(name)
	if !ok {
		return nil
	}
	return grid.Mask(id)
}

func (e *Engine) newRand() *rand.Rand {
	if e.seed != nil {
		return rand.New(rand.NewPCG(*e.seed, *e.seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func measure(m *entity.ObjectMask) *entity.ObjectFinding {
	f := &entity.ObjectFinding{
		PixelCount: m.Count(),
		Ratio:      m.Ratio(),
	}
	if b, ok := m.Bounds(); ok {
		f.Bounds = &b
	}
	return f
}

func finite(d float64) *float64 {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return nil
	}
	return &d
}
