package agent

import (
	"fmt"
	"strings"

	"github.com/TSGCFO/langchain-agent/core"
)

// subtaskGraph is the dependency graph of one decomposition. Edges point
// from a subtask to the subtasks it depends on.
type subtaskGraph struct {
	order []string // input order, used to make traversal deterministic
	nodes map[string]core.Subtask
	deps  map[string][]string
}

// newSubtaskGraph assigns a synthetic id (subtask-<n>, 1-based) to every
// subtask without one and resolves dependency references by id first, then
// by unique description. Unknown, ambiguous or duplicate references fail
// with core.ErrValidation.
func newSubtaskGraph(subtasks []core.Subtask) (*subtaskGraph, error) {
	g := &subtaskGraph{
		order: make([]string, 0, len(subtasks)),
		nodes: make(map[string]core.Subtask, len(subtasks)),
		deps:  make(map[string][]string, len(subtasks)),
	}

	byDesc := make(map[string][]string, len(subtasks))
	for i, st := range subtasks {
		if strings.TrimSpace(st.ID) == "" {
			st.ID = fmt.Sprintf("subtask-%d", i+1)
		}
		if _, dup := g.nodes[st.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate subtask id %q", core.ErrValidation, st.ID)
		}
		g.nodes[st.ID] = st
		g.order = append(g.order, st.ID)
		byDesc[st.Description] = append(byDesc[st.Description], st.ID)
	}

	for _, id := range g.order {
		st := g.nodes[id]
		resolved := make([]string, 0, len(st.DependsOn))
		for _, ref := range st.DependsOn {
			if _, ok := g.nodes[ref]; ok {
				resolved = append(resolved, ref)
				continue
			}
			switch ids := byDesc[ref]; len(ids) {
			case 1:
				resolved = append(resolved, ids[0])
			case 0:
				return nil, fmt.Errorf("%w: subtask %q depends on unknown subtask %q", core.ErrValidation, id, ref)
			default:
				return nil, fmt.Errorf("%w: subtask %q depends on ambiguous description %q", core.ErrValidation, id, ref)
			}
		}
		st.DependsOn = resolved
		g.nodes[id] = st
		g.deps[id] = resolved
	}
	return g, nil
}

// sorted returns the subtasks in dependency order using a depth-first
// traversal with an explicit visiting set. A node reached again while still
// being visited is a cycle and yields core.ErrCircularDependency.
func (g *subtaskGraph) sorted() ([]core.Subtask, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(g.nodes))
	out := make([]core.Subtask, 0, len(g.nodes))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s -> %s", core.ErrCircularDependency, strings.Join(path, " -> "), id)
		}
		marks[id] = visiting
		path = append(path, id)
		for _, dep := range g.deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[id] = done
		out = append(out, g.nodes[id])
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// orderSubtasks builds the graph and returns the execution order.
func orderSubtasks(subtasks []core.Subtask) ([]core.Subtask, error) {
	g, err := newSubtaskGraph(subtasks)
	if err != nil {
		return nil, err
	}
	return g.sorted()
}
