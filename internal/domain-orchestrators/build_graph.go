package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidGraph is returned for duplicate stages or dependencies on unknown stages
	ErrInvalidGraph = errors.New("invalid build graph")
	// ErrCycleFound is returned when stages depend on each other
	ErrCycleFound = errors.New("cycle detected in build graph")
)

// StageFunc runs one stage of the build graph
type StageFunc func(ctx context.Context) error

// Stage is a named node of the build graph
type Stage struct {
	Name      string
	DependsOn []string
	Run       StageFunc
}

// node links a stage to its neighbours
type node struct {
	stage *Stage
	prev  []*node
	next  []*node
}

// Graph is a validated build graph
type Graph struct {
	nodes  map[string]*node
	levels [][]string
}

// BuildGraph links stages into a graph, rejecting unknown dependencies and cycles
func BuildGraph(stages ...*Stage) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node, len(stages))}
	for _, s := range stages {
		if _, ok := g.nodes[s.Name]; ok {
			return nil, fmt.Errorf("%w: stage %q is already present", ErrInvalidGraph, s.Name)
		}
		g.nodes[s.Name] = &node{stage: s}
	}

	for _, s := range stages {
		for _, dep := range s.DependsOn {
			prev, ok := g.nodes[dep]
			if !ok {
				return nil, fmt.Errorf("%w: stage %s depends on %s but %s is not present", ErrInvalidGraph, s.Name, dep, dep)
			}
			if err := link(prev, g.nodes[s.Name]); err != nil {
				return nil, err
			}
		}
	}

	g.levels = g.computeLevels()
	return g, nil
}

func link(prev, next *node) error {
	if prev == next {
		return fmt.Errorf("%w: stage %q depends on itself", ErrCycleFound, next.stage.Name)
	}
	path := []string{next.stage.Name, prev.stage.Name}
	if err := visit(next.stage.Name, prev.prev, path); err != nil {
		return err
	}
	next.prev = append(next.prev, prev)
	prev.next = append(prev.next, next)
	return nil
}

// visit walks predecessors of a prospective link looking for the target
func visit(target string, nodes []*node, path []string) error {
	for _, n := range nodes {
		p := append(append([]string{}, path...), n.stage.Name)
		if n.stage.Name == target {
			for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
				p[i], p[j] = p[j], p[i]
			}
			return fmt.Errorf("%w: %s", ErrCycleFound, strings.Join(p, " -> "))
		}
		if err := visit(target, n.prev, p); err != nil {
			return err
		}
	}
	return nil
}

// computeLevels groups stages by depth; stages of one level have no edges between them
func (g *Graph) computeLevels() [][]string {
	depth := map[string]int{}
	var depthOf func(n *node) int
	depthOf = func(n *node) int {
		if d, ok := depth[n.stage.Name]; ok {
			return d
		}
		d := 0
		for _, p := range n.prev {
			d = max(d, depthOf(p)+1)
		}
		depth[n.stage.Name] = d
		return d
	}

	var levels [][]string
	for name, n := range g.nodes {
		d := depthOf(n)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], name)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}

// Levels returns stage names in execution order, grouped by depth
func (g *Graph) Levels() [][]string {
	return g.levels
}

// Execute runs every stage after its dependencies. Stages of the same level run
// concurrently; the first failure cancels the level and stops the graph.
func (g *Graph) Execute(ctx context.Context) error {
	for _, level := range g.levels {
		eg, egctx := errgroup.WithContext(ctx)
		for _, name := range level {
			stage := g.nodes[name].stage
			eg.Go(func() error {
				if stage.Run == nil {
					return nil
				}
				if err := stage.Run(egctx); err != nil {
					return fmt.Errorf("stage %s: %w", stage.Name, err)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
