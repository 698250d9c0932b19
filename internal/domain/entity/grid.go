package entity

import "fmt"

// LabelGrid is a per-pixel class map produced by segmentation.
type LabelGrid struct {
	rows, cols int
	data       []int
}

// NewLabelGrid copies data (row-major) into a rows x cols grid.
func NewLabelGrid(rows, cols int, data []int) (*LabelGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: grid dimensions %dx%d", ErrInvalidInput, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d cells for %dx%d grid", ErrInvalidInput, len(data), rows, cols)
	}
	cp := make([]int, len(data))
	copy(cp, data)
	return &LabelGrid{rows: rows, cols: cols, data: cp}, nil
}

// LabelGridFromRows builds a grid from a slice of equally long rows.
func LabelGridFromRows(rows [][]int) (*LabelGrid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidInput)
	}
	cols := len(rows[0])
	data := make([]int, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidInput, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &LabelGrid{rows: len(rows), cols: cols, data: data}, nil
}

// Rows returns the grid height.
func (g *LabelGrid) Rows() int { return g.rows }

// Cols returns the grid width.
func (g *LabelGrid) Cols() int { return g.cols }

// Size returns the total number of cells.
func (g *LabelGrid) Size() int { return g.rows * g.cols }

// Empty reports whether the grid has no cells.
func (g *LabelGrid) Empty() bool { return g == nil || g.rows <= 0 || g.cols <= 0 || len(g.data) == 0 }

// At returns the class id at row y, column x.
func (g *LabelGrid) At(y, x int) int { return g.data[y*g.cols+x] }

// Mask isolates the cells equal to classID.
func (g *LabelGrid) Mask(classID int) *ObjectMask {
	m := &ObjectMask{rows: g.rows, cols: g.cols, cells: make([]bool, len(g.data))}
	for i, v := range g.data {
		if v == classID {
			m.cells[i] = true
			m.count++
		}
	}
	return m
}

// Point is a cell coordinate.
type Point struct {
	Y, X int
}

// ObjectMask is the footprint of one class within a grid.
type ObjectMask struct {
	rows, cols int
	cells      []bool
	count      int
}

// Any reports whether at least one cell is set.
func (m *ObjectMask) Any() bool { return m != nil && m.count > 0 }

// Count returns the number of set cells.
func (m *ObjectMask) Count() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Ratio returns the share of set cells in [0,1].
func (m *ObjectMask) Ratio() float64 {
	if m == nil || len(m.cells) == 0 {
		return 0
	}
	return float64(m.count) / float64(len(m.cells))
}

// Points lists the set cells in row-major order.
func (m *ObjectMask) Points() []Point {
	if m == nil || m.count == 0 {
		return nil
	}
	pts := make([]Point, 0, m.count)
	for i, set := range m.cells {
		if set {
			pts = append(pts, Point{Y: i / m.cols, X: i % m.cols})
		}
	}
	return pts
}

// Bounds returns the bounding box of the set cells.
func (m *ObjectMask) Bounds() (Region, bool) {
	if !m.Any() {
		return Region{}, false
	}
	minX, minY, maxX, maxY := m.cols, m.rows, -1, -1
	for i, set := range m.cells {
		if !set {
			continue
		}
		y, x := i/m.cols, i%m.cols
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return Region{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
		Area:   m.count,
	}, true
}
