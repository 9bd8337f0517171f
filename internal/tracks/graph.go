// Package tracks holds the observation graph linking shots to the 3D points
// they observed.
package tracks

import (
	"github.com/golang/geo/r2"
)

// Observation is the data carried by one (shot, point) edge. Feature is the
// normalised image position, roughly within [-0.5, 0.5] on both axes.
type Observation struct {
	FeatureID int
	Feature   r2.Point
	Scale     float64
	Color     [3]int
}

// Edge is one row of a tracks file.
type Edge struct {
	ShotID  string
	PointID string
	Observation
}

// Graph is the bipartite shot/point observation graph. Both indexes are built
// from the same edge list, so every shot listed for a point has edge data.
type Graph struct {
	byPoint map[string][]string
	byShot  map[string]map[string]Observation
	points  []string
	edges   int
}

// NewGraph indexes edges. A repeated (shot, point) pair replaces the earlier
// edge data but keeps the position of its first occurrence.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{
		byPoint: make(map[string][]string),
		byShot:  make(map[string]map[string]Observation),
	}
	for i := range edges {
		g.Add(edges[i])
	}
	return g
}

// Add inserts or replaces a single edge.
func (g *Graph) Add(e Edge) {
	if g.byPoint == nil {
		g.byPoint = make(map[string][]string)
		g.byShot = make(map[string]map[string]Observation)
	}
	points, ok := g.byShot[e.ShotID]
	if !ok {
		points = make(map[string]Observation)
		g.byShot[e.ShotID] = points
	}
	if _, dup := points[e.PointID]; !dup {
		if _, seen := g.byPoint[e.PointID]; !seen {
			g.points = append(g.points, e.PointID)
		}
		g.byPoint[e.PointID] = append(g.byPoint[e.PointID], e.ShotID)
		g.edges++
	}
	points[e.PointID] = e.Observation
}

// ShotsObserving lists the shots that observed pointID, in edge order. The
// slice is owned by the graph.
func (g *Graph) ShotsObserving(pointID string) []string {
	return g.byPoint[pointID]
}

// TrackLength is the number of shots that observed pointID.
func (g *Graph) TrackLength(pointID string) int {
	return len(g.byPoint[pointID])
}

// Observation returns the edge data for (shotID, pointID).
func (g *Graph) Observation(shotID, pointID string) (Observation, bool) {
	obs, ok := g.byShot[shotID][pointID]
	return obs, ok
}

// PointsSeenBy returns the number of points shotID observed.
func (g *Graph) PointsSeenBy(shotID string) int {
	return len(g.byShot[shotID])
}

func (g *Graph) NumEdges() int {
	return g.edges
}

func (g *Graph) NumPoints() int {
	return len(g.byPoint)
}

func (g *Graph) NumShots() int {
	return len(g.byShot)
}

// Edges flattens the graph back to an edge list, grouped by point in the
// order points were first seen.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for _, pointID := range g.points {
		for _, shotID := range g.byPoint[pointID] {
			out = append(out, Edge{
				ShotID:      shotID,
				PointID:     pointID,
				Observation: g.byShot[shotID][pointID],
			})
		}
	}
	return out
}
