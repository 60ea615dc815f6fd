package engine

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeType distinguishes pure ordering edges from refresh edges.
type EdgeType string

const (
	// EdgeOrder comes from before/require: the source is applied first.
	EdgeOrder EdgeType = "order"

	// EdgeNotify comes from subscribe/notify: the source is applied first
	// and a change to it refreshes the target.
	EdgeNotify EdgeType = "notify"
)

// GraphEdge is a directed edge between two directives.
type GraphEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// GraphNode is a directive in the ordering graph.
type GraphNode struct {
	ID string `json:"id"`

	// Level is the topological level (depth from roots).
	Level int `json:"level"`

	// Dependencies are the directives applied before this one.
	Dependencies []string `json:"dependencies"`

	// Dependents are the directives applied after this one.
	Dependents []string `json:"dependents"`
}

// OrderingGraph is the DAG implied by the relations of a catalog.
type OrderingGraph struct {
	Nodes map[string]*GraphNode `json:"nodes"`
	Edges []GraphEdge           `json:"edges"`
	Roots []string              `json:"roots"`

	// Levels groups node IDs that have no ordering between each other.
	Levels [][]string `json:"levels"`
}

// GraphBuilder builds the ordering graph of a catalog.
// It validates relation targets, detects cycles and assigns levels.
type GraphBuilder struct {
	directives map[string]*Directive

	// order is the emission order of node IDs
	order []string

	// adjacencyList maps a node to the nodes that come after it
	adjacencyList map[string][]string

	// reverseAdjacencyList maps a node to the nodes that come before it
	reverseAdjacencyList map[string][]string

	inDegree map[string]int
	edges    []GraphEdge
	levels   [][]string
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		directives:           make(map[string]*Directive),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
	}
}

// BuildGraph constructs the ordering graph for the catalog.
func (b *GraphBuilder) BuildGraph(catalog *Catalog) (*OrderingGraph, error) {
	if catalog == nil || len(catalog.Directives) == 0 {
		return &OrderingGraph{
			Nodes:  make(map[string]*GraphNode),
			Edges:  make([]GraphEdge, 0),
			Roots:  make([]string, 0),
			Levels: make([][]string, 0),
		}, nil
	}

	if err := b.initialize(catalog.Directives); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildOrderingGraph(), nil
}

// initialize indexes directives and turns relations into edges.
func (b *GraphBuilder) initialize(directives []Directive) error {
	for i := range directives {
		d := &directives[i]
		if d.Title == "" {
			return NewPermanentError(fmt.Sprintf("%s directive has empty title", d.Kind), nil).
				WithCode(ErrCodeInvalidInput)
		}

		id := d.Ref().String()
		if _, exists := b.directives[id]; exists {
			return NewPermanentError(fmt.Sprintf("duplicate directive: %s", id), nil).
				WithCode(ErrCodeDuplicateNode).WithSubject(id)
		}

		b.directives[id] = d
		b.order = append(b.order, id)
		b.adjacencyList[id] = make([]string, 0)
		b.reverseAdjacencyList[id] = make([]string, 0)
		b.inDegree[id] = 0
	}

	for _, id := range b.order {
		d := b.directives[id]
		rel := d.Relations

		for _, target := range rel.Before {
			if err := b.addEdge(id, id, target.String(), EdgeOrder); err != nil {
				return err
			}
		}
		for _, target := range rel.Require {
			if err := b.addEdge(id, target.String(), id, EdgeOrder); err != nil {
				return err
			}
		}
		for _, target := range rel.Subscribe {
			if err := b.addEdge(id, target.String(), id, EdgeNotify); err != nil {
				return err
			}
		}
		for _, target := range rel.Notify {
			if err := b.addEdge(id, id, target.String(), EdgeNotify); err != nil {
				return err
			}
		}
	}

	return nil
}

// addEdge records from -> to on behalf of the directive owner.
func (b *GraphBuilder) addEdge(owner, from, to string, edgeType EdgeType) error {
	for _, end := range []string{from, to} {
		if _, exists := b.directives[end]; !exists {
			return NewPermanentError(
				fmt.Sprintf("directive %s references undeclared directive %s", owner, end),
				nil,
			).WithCode(ErrCodeDanglingRef).WithSubject(owner)
		}
	}

	b.adjacencyList[from] = append(b.adjacencyList[from], to)
	b.reverseAdjacencyList[to] = append(b.reverseAdjacencyList[to], from)
	b.inDegree[to]++
	b.edges = append(b.edges, GraphEdge{From: from, To: to, Type: edgeType})
	return nil
}

// detectCycles uses depth-first search to detect circular relations.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range b.order {
		if visited[id] {
			continue
		}
		if cycle := b.detectCyclesUtil(id, visited, recStack, nil); cycle != nil {
			return NewPermanentError(
				fmt.Sprintf("circular relation detected: %s", strings.Join(cycle, " -> ")),
				nil,
			).WithCode(ErrCodeCycle)
		}
	}

	return nil
}

func (b *GraphBuilder) detectCyclesUtil(
	nodeID string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, next := range b.adjacencyList[nodeID] {
		if !visited[next] {
			if cycle := b.detectCyclesUtil(next, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[next] {
			for i, id := range path {
				if id == next {
					return append(append([]string(nil), path[i:]...), next)
				}
			}
		}
	}

	recStack[nodeID] = false
	return nil
}

// computeLevels assigns levels with Kahn's algorithm.
// Each level is sorted so the result does not depend on map iteration.
func (b *GraphBuilder) computeLevels() error {
	inDegree := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegree[id] = degree
	}

	current := make([]string, 0)
	for _, id := range b.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	processed := 0
	for len(current) > 0 {
		sort.Strings(current)
		b.levels = append(b.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, id := range current {
			for _, dependent := range b.adjacencyList[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(b.directives) {
		return NewPermanentError("failed to order all directives - possible cycle", nil).
			WithCode(ErrCodeInternal)
	}

	return nil
}

func (b *GraphBuilder) buildOrderingGraph() *OrderingGraph {
	graph := &OrderingGraph{
		Nodes:  make(map[string]*GraphNode, len(b.directives)),
		Edges:  append([]GraphEdge(nil), b.edges...),
		Roots:  make([]string, 0),
		Levels: b.levels,
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Level:        level,
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, id)
			}
		}
	}

	return graph
}

// GetLevels returns the computed levels.
func (b *GraphBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT renders the graph in Graphviz DOT format.
func (b *GraphBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Catalog {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			d := b.directives[id]
			sb.WriteString(fmt.Sprintf("    %q [fillcolor=%q, style=\"filled,rounded\"];\n",
				id, kindColor(d)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, edge := range b.edges {
		sb.WriteString(fmt.Sprintf("  %q -> %q [%s];\n", edge.From, edge.To, edgeStyle(edge.Type)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// kindColor picks a fill color per directive kind; tombstones are grey.
func kindColor(d *Directive) string {
	switch d.Kind {
	case KindPackage:
		return "lightgreen"
	case KindService:
		return "lightblue"
	case KindExec:
		return "lightcoral"
	case KindNeutronConfig, KindNeutronAPIConfig:
		if d.Config != nil && d.Config.Ensure == EnsureAbsent {
			return "lightgray"
		}
		return "lightyellow"
	default:
		return "white"
	}
}

func edgeStyle(edgeType EdgeType) string {
	if edgeType == EdgeNotify {
		return "style=dashed, color=blue"
	}
	return "style=solid, color=black"
}

// ValidateGraph cross-checks a built graph against the indexed directives.
func (b *GraphBuilder) ValidateGraph(graph *OrderingGraph) error {
	if len(graph.Nodes) != len(b.directives) {
		return NewPermanentError("graph node count mismatch", nil).
			WithCode(ErrCodeInternal)
	}

	for _, edge := range graph.Edges {
		if _, exists := graph.Nodes[edge.From]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.From), nil).
				WithCode(ErrCodeInternal)
		}
		if _, exists := graph.Nodes[edge.To]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.To), nil).
				WithCode(ErrCodeInternal)
		}
	}

	for _, rootID := range graph.Roots {
		if len(graph.Nodes[rootID].Dependencies) > 0 {
			return NewPermanentError(fmt.Sprintf("root node %s has dependencies", rootID), nil).
				WithCode(ErrCodeInternal)
		}
	}

	return nil
}

// Precedes reports whether a is ordered before b in the graph.
func (g *OrderingGraph) Precedes(a, b Ref) bool {
	from, ok := g.Nodes[a.String()]
	if !ok {
		return false
	}
	target := b.String()
	seen := map[string]bool{}
	stack := append([]string(nil), from.Dependents...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := g.Nodes[id]; ok {
			stack = append(stack, n.Dependents...)
		}
	}
	return false
}
