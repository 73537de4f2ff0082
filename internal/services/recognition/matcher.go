package recognition

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
)

// Matcher finds the reference closest to an encoding.
type Matcher interface {
	Match(enc Encoding) Match
	Len() int
}

// LinearMatcher compares against every reference and keeps the nearest one.
type LinearMatcher struct {
	refs      []Reference
	tolerance float32
}

func NewLinearMatcher(refs []Reference, tolerance float32) *LinearMatcher {
	return &LinearMatcher{refs: refs, tolerance: tolerance}
}

func (m *LinearMatcher) Len() int {
	return len(m.refs)
}

func (m *LinearMatcher) Match(enc Encoding) Match {
	if len(m.refs) == 0 {
		return unknownMatch(float32(math.MaxFloat32))
	}

	best := -1
	bestDistance := float32(math.MaxFloat32)
	for i, ref := range m.refs {
		if d := Distance(ref.Encoding, enc); d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best < 0 || bestDistance > m.tolerance {
		return unknownMatch(bestDistance)
	}
	return Match{Label: m.refs[best].Label, Distance: bestDistance, Known: true, Index: best}
}

// HNSWMatcher answers nearest-reference queries from an HNSW graph. For the
// gallery sizes this viewer deals with the search is effectively exact.
type HNSWMatcher struct {
	graph     *hnsw.Graph[int]
	refs      []Reference
	tolerance float32
}

const hnswMaxNeighbors = 16

func NewHNSWMatcher(refs []Reference, tolerance float32) *HNSWMatcher {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i, ref := range refs {
		if len(ref.Encoding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(ref.Encoding)))
	}

	return &HNSWMatcher{graph: g, refs: refs, tolerance: tolerance}
}

func (m *HNSWMatcher) Len() int {
	return m.graph.Len()
}

func (m *HNSWMatcher) Match(enc Encoding) Match {
	if m.graph.Len() == 0 {
		return unknownMatch(float32(math.MaxFloat32))
	}

	neighbors := m.graph.Search([]float32(enc), 1)
	if len(neighbors) == 0 {
		return unknownMatch(float32(math.MaxFloat32))
	}

	idx := neighbors[0].Key
	d := Distance(m.refs[idx].Encoding, enc)
	if d > m.tolerance {
		return unknownMatch(d)
	}
	return Match{Label: m.refs[idx].Label, Distance: d, Known: true, Index: idx}
}

// NewMatcher builds the matcher named by kind ("linear" or "hnsw").
func NewMatcher(kind string, refs []Reference, tolerance float32) (Matcher, error) {
	switch kind {
	case "", "linear":
		return NewLinearMatcher(refs, tolerance), nil
	case "hnsw":
		return NewHNSWMatcher(refs, tolerance), nil
	default:
		return nil, fmt.Errorf("unknown matcher %q", kind)
	}
}
