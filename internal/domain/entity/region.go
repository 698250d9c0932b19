package entity

// Region is the bounding box of an object in grid cells.
type Region struct {
	X      int `json:"x"`      // left column
	Y      int `json:"y"`      // top row
	Width  int `json:"width"`  // width in cells
	Height int `json:"height"` // height in cells
	Area   int `json:"area"`   // number of object cells, not box area
}
