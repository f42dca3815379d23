// Package workflow implements the Workflow Executor (spec.md §4.4): Kahn's
// algorithm topological ordering over node dependencies, per-node lifecycle
// (input transform -> mini-Swarm -> output transform) with skip/halt/goto
// control outcomes, and reset_context instance caching.
//
// Grounded on the teacher's workflow/executor.go (DAGExecutor computes a
// dependency-respecting execution order and runs one step per node)
// generalized from hector's capability-routed single-pass DAG to the
// spec's Kahn's-algorithm order plus transformer control flow the teacher
// did not have.
package workflow

import (
	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
)

// TopoOrder computes a topological ordering of cfg's nodes via Kahn's
// algorithm. start_node must appear in the result with zero in-degree; a
// dependency cycle (nodes left over once the queue drains) raises
// KindCircularDependency.
func TopoOrder(cfg *config.WorkflowConfig) ([]string, error) {
	indegree := make(map[string]int, len(cfg.Nodes))
	dependents := make(map[string][]string, len(cfg.Nodes))
	nodeSet := make(map[string]bool, len(cfg.Nodes))

	for _, n := range cfg.Nodes {
		nodeSet[n.Name] = true
		if _, ok := indegree[n.Name]; !ok {
			indegree[n.Name] = 0
		}
	}
	for _, n := range cfg.Nodes {
		for _, dep := range n.DependsOn {
			if !nodeSet[dep] {
				return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "TopoOrder",
					"node "+n.Name+" depends on unknown node "+dep, nil)
			}
			indegree[n.Name]++
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	if indegree[cfg.StartNode] != 0 {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "TopoOrder",
			"start_node "+cfg.StartNode+" must have zero in-degree", nil)
	}

	queue := make([]string, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if indegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}

	order := make([]string, 0, len(cfg.Nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(cfg.Nodes) {
		return nil, swarmerr.New(swarmerr.KindCircularDependency, "workflow", "TopoOrder",
			"workflow "+cfg.Name+" contains a dependency cycle", nil)
	}
	return order, nil
}
