package executor

// DAGNode wraps one IntentionExecutor in the agent-level intention DAG
// (§4.5): parallelism where resource locks allow, sequencing where they
// collide.
type DAGNode struct {
	Executor *IntentionExecutor
	Children []*DAGNode

	resourceLocks []string
	delegated     bool
}

// DAG is the per-agent intention graph rebuilt from the schedule's best
// chain each time the schedule concludes (§4.5).
type DAG struct {
	roots []*DAGNode

	// BeforeTick, if set, is called with each root node immediately before
	// its executor runs, letting the owning agent stamp which desire is
	// "active" on its shared task.Dispatcher for the duration of the call
	// (§4.7 ACTION events carry goal/intentionId; §5 ticking is
	// single-threaded cooperative, so a single mutable "active" slot is
	// safe).
	BeforeTick func(n *DAGNode)
}

// NewDAG builds an empty DAG.
func NewDAG() *DAG { return &DAG{} }

// Roots returns the current open (root) nodes.
func (d *DAG) Roots() []*DAGNode { return d.roots }

// Rebuild converts chain (the schedule's best intention chain, in
// declaration order) into a fresh DAG:
//   - nodes are ordered by the chain's position
//   - for each new node, walk existing roots; if it conflicts on any
//     resource lock with an open node, attach as a child of the deepest
//     conflicting node, else append at the root
//   - delegated nodes are always root (no local locks)
//
// (§4.5 step 3).
func Rebuild(chain []ChainEntry) *DAG {
	d := NewDAG()
	for _, entry := range chain {
		node := &DAGNode{Executor: entry.Executor, resourceLocks: entry.ResourceLocks, delegated: entry.Delegated}
		if entry.Delegated || len(entry.ResourceLocks) == 0 {
			d.roots = append(d.roots, node)
			continue
		}
		if parent := d.deepestConflict(d.roots, node); parent != nil {
			parent.Children = append(parent.Children, node)
		} else {
			d.roots = append(d.roots, node)
		}
	}
	return d
}

// ChainEntry is one link of a schedule's best chain, carrying just what
// the DAG needs (the full SearchNode lives in package schedule).
type ChainEntry struct {
	Executor      *IntentionExecutor
	ResourceLocks []string
	Delegated     bool
}

func conflicts(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

// deepestConflict walks nodes depth-first and returns the deepest node
// (across the whole subtree) that conflicts with candidate's locks.
func (d *DAG) deepestConflict(nodes []*DAGNode, candidate *DAGNode) *DAGNode {
	var found *DAGNode
	foundDepth := -1
	var walk func(n *DAGNode, depth int)
	walk = func(n *DAGNode, depth int) {
		if depth > foundDepth && conflicts(n.resourceLocks, candidate.resourceLocks) {
			found = n
			foundDepth = depth
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, root := range nodes {
		walk(root, 0)
	}
	return found
}

// Tick runs every open (root) executor once; concluded roots graduate
// their children to roots for the next tick (§4.5 step 4).
func (d *DAG) Tick() {
	var nextRoots []*DAGNode
	for _, n := range d.roots {
		if d.BeforeTick != nil {
			d.BeforeTick(n)
		}
		n.Executor.Execute()
		if n.Executor.State == Concluded {
			nextRoots = append(nextRoots, n.Children...)
		} else {
			nextRoots = append(nextRoots, n)
		}
	}
	d.roots = nextRoots
}

// NoDuplicateResourceLocks checks the §8 invariant: "the sum of open DAG
// nodes' plan resource locks contains no duplicate resource name".
func (d *DAG) NoDuplicateResourceLocks() bool {
	seen := make(map[string]struct{})
	for _, n := range d.roots {
		for _, lock := range n.resourceLocks {
			if _, ok := seen[lock]; ok {
				return false
			}
			seen[lock] = struct{}{}
		}
	}
	return true
}
