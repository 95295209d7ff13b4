// Package world provides the district map and spatial lookups for the
// ward simulation. Positions are continuous tile coordinates; districts
// are circular jurisdictions with a center and radius.
package world

import "math"

// Point is a position in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// District is an immutable jurisdiction definition, loaded once at startup.
type District struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Center        Point   `json:"center"`
	Radius        float64 `json:"radius"`
	Population    int     `json:"population"`
	EconomicValue float64 `json:"economic_value"`

	// Goods the district produces and consumes; supply ratios drift
	// toward these lists during the daily economic update.
	Produced []string `json:"produced"`
	Consumed []string `json:"consumed"`
}

// Contains reports whether a point falls inside the district's bounds.
func (d *District) Contains(p Point) bool {
	return Distance(d.Center, p) <= d.Radius
}

// Atlas indexes all districts for position and id lookups.
type Atlas struct {
	districts []*District
	byID      map[string]*District
}

// NewAtlas builds an atlas from district definitions.
func NewAtlas(districts []*District) *Atlas {
	byID := make(map[string]*District, len(districts))
	for _, d := range districts {
		byID[d.ID] = d
	}
	return &Atlas{districts: districts, byID: byID}
}

// At returns the district containing the point, or nil. When districts
// overlap, the one whose center is closest wins.
func (a *Atlas) At(p Point) *District {
	var best *District
	bestDist := math.MaxFloat64
	for _, d := range a.districts {
		dist := Distance(d.Center, p)
		if dist <= d.Radius && dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best
}

// ByID returns the district with the given id, or nil.
func (a *Atlas) ByID(id string) *District {
	return a.byID[id]
}

// All returns every district in definition order.
func (a *Atlas) All() []*District {
	return a.districts
}

// Len returns the district count.
func (a *Atlas) Len() int {
	return len(a.districts)
}
