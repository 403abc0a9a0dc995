package riverdiff

import (
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// A samplePoint is an ElevationSample's location in a k-d tree, remembering
// its position in the input so that results can be put back in input order.
type samplePoint struct {
	X, Y  float64
	Index int
}

func (p samplePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(samplePoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

func (p samplePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between p and c.
func (p samplePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(samplePoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

type samplePoints []samplePoint

func (p samplePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p samplePoints) Len() int                              { return len(p) }
func (p samplePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p samplePoints) Pivot(d kdtree.Dim) int {
	plane := samplePlane{samplePoints: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfRandoms(plane, 100))
}

type samplePlane struct {
	samplePoints
	kdtree.Dim
}

func (p samplePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.samplePoints[i].X < p.samplePoints[j].X
	case 1:
		return p.samplePoints[i].Y < p.samplePoints[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p samplePlane) Slice(start, end int) kdtree.SortSlicer {
	return samplePlane{samplePoints: p.samplePoints[start:end], Dim: p.Dim}
}

func (p samplePlane) Swap(i, j int) {
	p.samplePoints[i], p.samplePoints[j] = p.samplePoints[j], p.samplePoints[i]
}

// A sampleIndex finds the samples near a location.
type sampleIndex struct {
	tree *kdtree.Tree
}

func newSampleIndex(samples []ElevationSample) *sampleIndex {
	points := make(samplePoints, len(samples))
	for i, sample := range samples {
		points[i] = samplePoint{
			X:     sample.Point[0],
			Y:     sample.Point[1],
			Index: i,
		}
	}
	return &sampleIndex{
		tree: kdtree.New(points, false),
	}
}

// neighbors returns the input positions of the samples near (x, y) in
// ascending order, reusing the storage of indexes. If maxPoints is positive then at most maxPoints of
// the nearest samples are returned. If radius is positive then only samples
// within radius are returned.
func (s *sampleIndex) neighbors(indexes []int, x, y float64, maxPoints int, radius float64) []int {
	var heap kdtree.Heap
	query := samplePoint{X: x, Y: y}
	switch {
	case maxPoints > 0:
		keeper := kdtree.NewNKeeper(maxPoints)
		s.tree.NearestSet(keeper, query)
		heap = keeper.Heap
	default:
		keeper := kdtree.NewDistKeeper(radius * radius)
		s.tree.NearestSet(keeper, query)
		heap = keeper.Heap
	}
	indexes = indexes[:0]
	for _, item := range heap {
		point, ok := item.Comparable.(samplePoint)
		if !ok {
			continue
		}
		if radius > 0 && item.Dist > radius*radius {
			continue
		}
		indexes = append(indexes, point.Index)
	}
	slices.Sort(indexes)
	return indexes
}
