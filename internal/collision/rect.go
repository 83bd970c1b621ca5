package collision

import "math"

// Point is a screen-space coordinate.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned screen-space bounding rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Corners returns top-left, top-right, bottom-left, bottom-right.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X, Y: r.Y + r.Height},
		{X: r.X + r.Width, Y: r.Y + r.Height},
	}
}

// Translate returns r moved by dx, dy.
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// CornerDistance is the minimum Euclidean distance between any corner of a
// and any corner of b.
func CornerDistance(a, b Rect) float64 {
	best := math.Inf(1)
	bc := b.Corners()
	for _, p := range a.Corners() {
		for _, q := range bc {
			if d := math.Hypot(p.X-q.X, p.Y-q.Y); d < best {
				best = d
			}
		}
	}
	return best
}
