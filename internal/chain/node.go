package chain

import "sync/atomic"

// Node is the position of a stage inside a chain. Sibling links only reflect
// insertion order and are never used for dispatch.
type Node struct {
	stage *Stage
	chain atomic.Pointer[Chain]
	seq   uint64

	prev *Node
	next *Node

	// dependsOn lists the producers this node must run after.
	dependsOn []*Node
	// dependents lists the consumers that run after this node.
	dependents []*Node
}

func (n *Node) Stage() *Stage {
	return n.stage
}

// Chain returns the chain the node belongs to, or nil when detached.
func (n *Node) Chain() *Chain {
	return n.chain.Load()
}

// Next returns the following sibling.
func (n *Node) Next() *Node {
	if c := n.chain.Load(); c != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	return n.next
}

// Previous returns the preceding sibling.
func (n *Node) Previous() *Node {
	if c := n.chain.Load(); c != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	return n.prev
}

// DependsOn returns a copy of the producers of this node.
func (n *Node) DependsOn() []*Node {
	if c := n.chain.Load(); c != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	return append([]*Node(nil), n.dependsOn...)
}

// Dependents returns a copy of the consumers of this node.
func (n *Node) Dependents() []*Node {
	if c := n.chain.Load(); c != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	return append([]*Node(nil), n.dependents...)
}

func (n *Node) String() string {
	if n == nil || n.stage == nil {
		return "<nil>"
	}

	return n.stage.FullName()
}

func (n *Node) hasEdges() bool {
	return len(n.dependsOn) > 0 || len(n.dependents) > 0
}

func (n *Node) dependsOnDirect(producer *Node) bool {
	for _, p := range n.dependsOn {
		if p == producer {
			return true
		}
	}

	return false
}

func replaceIn(list []*Node, old, replacement *Node) {
	for i, n := range list {
		if n == old {
			list[i] = replacement
		}
	}
}
