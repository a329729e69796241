package routing

import (
	"container/heap"
	"sort"

	"trip-planner/internal/models"
)

// projection is an immutable in-memory view of the edge set
type projection struct {
	nodes map[string]models.LocationNode
	adj   map[string][]models.RouteEdge
}

func newProjection(nodes []models.LocationNode, edges []models.RouteEdge) *projection {
	p := &projection{
		nodes: make(map[string]models.LocationNode, len(nodes)),
		adj:   make(map[string][]models.RouteEdge),
	}
	for _, n := range nodes {
		p.nodes[n.ID] = n
	}
	for _, e := range edges {
		p.adj[e.From] = append(p.adj[e.From], e)
	}
	for id := range p.adj {
		out := p.adj[id]
		sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	}
	return p
}

func (p *projection) edgeCount() int {
	n := 0
	for _, out := range p.adj {
		n += len(out)
	}
	return n
}

type queueItem struct {
	node string
	dist float64
}

// distQueue is a min-heap ordered by distance, then node id
type distQueue []queueItem

func (q distQueue) Len() int { return len(q) }
func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// shortestPath runs Dijkstra from source to target. Stale heap entries are
// skipped on pop instead of decreasing keys in place. Among equal-cost
// predecessors the smaller node id wins.
func (p *projection) shortestPath(source, target string) (*models.RouteSegment, bool) {
	if _, ok := p.nodes[source]; !ok {
		return nil, false
	}
	if _, ok := p.nodes[target]; !ok {
		return nil, false
	}
	if source == target {
		return &models.RouteSegment{
			From:  source,
			To:    target,
			Nodes: []string{source},
			Edges: []models.RouteEdge{},
		}, true
	}

	dist := map[string]float64{source: 0}
	prevEdge := make(map[string]models.RouteEdge)
	settled := make(map[string]bool)

	pq := &distQueue{{node: source, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queueItem)
		if settled[cur.node] || cur.dist > dist[cur.node] {
			continue
		}
		settled[cur.node] = true
		if cur.node == target {
			break
		}

		for _, e := range p.adj[cur.node] {
			if settled[e.To] {
				continue
			}
			nd := cur.dist + e.Distance
			old, seen := dist[e.To]
			switch {
			case !seen || nd < old:
				dist[e.To] = nd
				prevEdge[e.To] = e
				heap.Push(pq, queueItem{node: e.To, dist: nd})
			case nd == old && cur.node < prevEdge[e.To].From:
				prevEdge[e.To] = e
			}
		}
	}

	if !settled[target] {
		return nil, false
	}

	var edges []models.RouteEdge
	for at := target; at != source; {
		e := prevEdge[at]
		edges = append(edges, e)
		at = e.From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	nodes := make([]string, 0, len(edges)+1)
	nodes = append(nodes, source)
	for _, e := range edges {
		nodes = append(nodes, e.To)
	}

	return &models.RouteSegment{
		From:  source,
		To:    target,
		Nodes: nodes,
		Cost:  dist[target],
		Edges: edges,
	}, true
}
