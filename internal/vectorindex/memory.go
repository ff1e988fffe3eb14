package vectorindex

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// hnswMaxNeighbors mirrors the M parameter used for the face graph.
const hnswMaxNeighbors = 16

// Memory is an in-process index over an HNSW graph. Points are lost on
// restart, so it only suits single-process tools and tests.
type Memory struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[string]
	points map[uuid.UUID]*Point
	dim    int
}

func NewMemory(dim int) *Memory {
	return &Memory{
		graph:  newGraph(),
		points: make(map[uuid.UUID]*Point),
		dim:    dim,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

func (m *Memory) Upsert(_ context.Context, p Point) (uuid.UUID, error) {
	if len(p.Vector) != m.dim {
		return uuid.Nil, fmt.Errorf("upsert point: vector has %d dims, want %d", len(p.Vector), m.dim)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.ID.String()
	if _, ok := m.points[p.ID]; ok {
		m.removeLocked(p.ID)
	}
	vec := append([]float32(nil), p.Vector...)
	m.graph.Add(hnsw.MakeNode(key, vec))
	p.Vector = vec
	m.points[p.ID] = &p
	return p.ID, nil
}

func (m *Memory) Query(_ context.Context, vector []float32, k int, minScore float64) ([]Hit, error) {
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query points: vector has %d dims, want %d", len(vector), m.dim)
	}
	if k <= 0 {
		k = 1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph.Len() == 0 {
		return nil, nil
	}

	var hits []Hit
	for _, n := range m.graph.Search(vector, k) {
		id, err := uuid.Parse(n.Key)
		if err != nil {
			continue
		}
		p, ok := m.points[id]
		if !ok {
			continue
		}
		score := cosine(vector, p.Vector)
		if float64(score) < minScore {
			continue
		}
		hits = append(hits, Hit{PointID: id, Score: score, Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

func (m *Memory) SetPersonID(_ context.Context, pointIDs []uuid.UUID, personID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range pointIDs {
		if p, ok := m.points[id]; ok {
			p.Payload.PersonID = personID
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, pointIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range pointIDs {
		if _, ok := m.points[id]; ok {
			m.removeLocked(id)
		}
	}
	return nil
}

// removeLocked drops a point; an emptied graph is replaced rather than
// left with a dangling entry node.
func (m *Memory) removeLocked(id uuid.UUID) {
	delete(m.points, id)
	if len(m.points) == 0 {
		m.graph = newGraph()
		return
	}
	m.graph.Delete(id.String())
}

func (m *Memory) Scan(_ context.Context, after uuid.UUID, limit int) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.points))
	for id := range m.points {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		p := m.points[id]
		points = append(points, Point{ID: p.ID, Payload: p.Payload})
	}
	return points, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of stored points.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Payload returns the payload of a stored point.
func (m *Memory) Payload(id uuid.UUID) (Payload, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return Payload{}, false
	}
	return p.Payload, true
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32(math.Max(-1, math.Min(1, s)))
}
