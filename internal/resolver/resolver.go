package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/fieldstack/internal/manifest"
)

// ErrCycle is matched by every *CycleError via errors.Is.
var ErrCycle = errors.New("resolver: dependency cycle")

// CycleError reports a dependency cycle. Cycle starts and ends with the same
// module name.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("resolver: dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Is lets errors.Is match ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Node captures a module plus its dependency metadata.
type Node struct {
	Name         string
	Manifest     manifest.Manifest
	Dependencies []string
	Dependents   []string
}

// Resolver builds the module dependency graph. Dependencies that name a
// module outside the graph are kept on the node but never traversed.
type Resolver struct {
	nodes      map[string]*Node
	orderedIDs []string
}

// New constructs a resolver for the provided manifests. When two manifests
// share a name the first one is used.
func New(manifests []manifest.Manifest) *Resolver {
	nodes := make(map[string]*Node, len(manifests))
	ordered := make([]string, 0, len(manifests))
	for _, m := range manifests {
		if _, exists := nodes[m.Name]; exists {
			continue
		}
		nodes[m.Name] = &Node{
			Name:         m.Name,
			Manifest:     m.Clone(),
			Dependencies: append([]string{}, m.Dependencies...),
		}
		ordered = append(ordered, m.Name)
	}
	for _, id := range ordered {
		node := nodes[id]
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok || containsString(dep.Dependents, node.Name) {
				continue
			}
			dep.Dependents = append(dep.Dependents, node.Name)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	return &Resolver{nodes: nodes, orderedIDs: ordered}
}

// Nodes returns the nodes in declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		out = append(out, r.nodes[id])
	}
	return out
}

// Node retrieves a module node by name.
func (r *Resolver) Node(name string) (*Node, bool) {
	node, ok := r.nodes[name]
	return node, ok
}

// Dependents returns the sorted names of modules that declare name as a
// dependency.
func (r *Resolver) Dependents(name string) []string {
	node, ok := r.nodes[name]
	if !ok || len(node.Dependents) == 0 {
		return nil
	}
	return append([]string{}, node.Dependents...)
}

// Order returns module names with dependencies before the modules that
// require them. Unrelated modules keep declaration order.
func (r *Resolver) Order() ([]string, error) {
	visited := make(map[string]bool, len(r.nodes))
	inProgress := make(map[string]bool)
	var stack []string
	ordered := make([]string, 0, len(r.nodes))

	var visit func(string) error
	visit = func(id string) error {
		if inProgress[id] {
			return &CycleError{Cycle: cyclePath(stack, id)}
		}
		if visited[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return nil
		}
		inProgress[id] = true
		stack = append(stack, id)
		for _, dep := range node.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(inProgress, id)
		visited[id] = true
		ordered = append(ordered, id)
		return nil
	}
	for _, id := range r.orderedIDs {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func cyclePath(stack []string, repeated string) []string {
	start := 0
	for i, id := range stack {
		if id == repeated {
			start = i
			break
		}
	}
	cycle := append([]string{}, stack[start:]...)
	return append(cycle, repeated)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
