// Package chain schedules pipeline stages in dependency order.
//
// A Chain holds nodes in sibling (insertion) order and a set of dependency edges.
// Dispatch runs every stage's handler in a deterministic topological order derived
// from the edges; ties are broken by insertion sequence. Stages can be hot-swapped
// with Replace without touching the edges that point at their position.
package chain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

// Edge is a recorded dependency: Consumer runs after Producer.
type Edge struct {
	Consumer *Node
	Producer *Node
}

// Chain is a dependency-ordered set of stages.
type Chain struct {
	mu          sync.Mutex
	dispatching atomic.Bool

	root  *Node
	head  *Node
	tail  *Node
	nodes map[*Node]struct{}
	seq   uint64

	// order is the cached dispatch order; nil when invalidated.
	order []*Node

	log *logger.Logger
}

// New creates a chain whose first node is the root stage.
func New(root *Stage, log *logger.Logger) (*Chain, error) {
	if root == nil {
		return nil, errors.New(errors.ErrCodeUnknownNode, "root stage is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	node := root.Node()
	if node.chain.Load() != nil {
		return nil, errors.Newf(errors.ErrCodeDuplicateNode, "stage %s already belongs to a chain", node)
	}

	c := &Chain{
		nodes: map[*Node]struct{}{},
		log:   log,
	}

	c.attach(node)
	c.root = node
	c.head = node
	c.tail = node

	return c, nil
}

// Root returns the root node.
func (c *Chain) Root() *Node {
	return c.root
}

// InsertBefore places node immediately before anchor in sibling order.
func (c *Chain) InsertBefore(node *Node, anchor *Node) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInsertLocked(node, anchor); err != nil {
		return nil, err
	}

	c.attach(node)

	node.next = anchor
	node.prev = anchor.prev
	if anchor.prev != nil {
		anchor.prev.next = node
	} else {
		c.head = node
	}
	anchor.prev = node

	c.log.Debug("Inserted stage", zap.String("stage", node.String()), zap.String("before", anchor.String()))

	return node, nil
}

// InsertAfter places node immediately after anchor in sibling order.
func (c *Chain) InsertAfter(node *Node, anchor *Node) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInsertLocked(node, anchor); err != nil {
		return nil, err
	}

	c.attach(node)

	node.prev = anchor
	node.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = node
	} else {
		c.tail = node
	}
	anchor.next = node

	c.log.Debug("Inserted stage", zap.String("stage", node.String()), zap.String("after", anchor.String()))

	return node, nil
}

// AddDependency records that consumer must run after producer. Adding an edge that
// already exists is a no-op. An edge that would close a cycle is rejected and the
// graph is left unchanged.
func (c *Chain) AddDependency(consumer *Node, producer *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMutableLocked(); err != nil {
		return err
	}

	if !c.containsLocked(consumer) {
		return errors.Newf(errors.ErrCodeUnknownNode, "consumer %s is not part of the chain", consumer)
	}

	if !c.containsLocked(producer) {
		return errors.Newf(errors.ErrCodeUnknownNode, "producer %s is not part of the chain", producer)
	}

	if consumer.dependsOnDirect(producer) {
		return nil
	}

	if consumer == producer || reaches(producer, consumer) {
		return errors.Newf(errors.ErrCodeCycle, "%s cannot depend on %s: dependency cycle", consumer, producer)
	}

	consumer.dependsOn = append(consumer.dependsOn, producer)
	producer.dependents = append(producer.dependents, consumer)
	c.order = nil

	return nil
}

// ValidateReplace runs the checks of Replace without changing the chain.
func (c *Chain) ValidateReplace(old *Node, replacement *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.validateReplaceLocked(old, replacement)
}

// Replace substitutes replacement at old's position. Every edge that referenced old
// references replacement afterwards, and replacement inherits old's insertion
// sequence so the dispatch order is unchanged. The old node is detached.
func (c *Chain) Replace(old *Node, replacement *Node) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validateReplaceLocked(old, replacement); err != nil {
		return nil, err
	}

	replacement.chain.Store(c)
	replacement.seq = old.seq
	replacement.prev = old.prev
	replacement.next = old.next

	if old.prev != nil {
		old.prev.next = replacement
	} else {
		c.head = replacement
	}

	if old.next != nil {
		old.next.prev = replacement
	} else {
		c.tail = replacement
	}

	if c.root == old {
		c.root = replacement
	}

	for _, p := range old.dependsOn {
		replaceIn(p.dependents, old, replacement)
	}

	for _, d := range old.dependents {
		replaceIn(d.dependsOn, old, replacement)
	}

	replacement.dependsOn = old.dependsOn
	replacement.dependents = old.dependents

	delete(c.nodes, old)
	c.nodes[replacement] = struct{}{}

	old.prev = nil
	old.next = nil
	old.dependsOn = nil
	old.dependents = nil
	old.chain.Store(nil)

	c.order = nil

	c.log.Debug("Replaced stage", zap.String("old", old.String()), zap.String("new", replacement.String()))

	return replacement, nil
}

// Dispatch invokes every stage's handler for the event in topological order.
// It returns false when a stage stopped propagation. A stage error or panic aborts
// the remaining stages and is returned as a *DispatchError.
func (c *Chain) Dispatch(ctx context.Context, event Event, interval types.Interval) (bool, error) {
	return c.DispatchWith(ctx, event, interval, nil)
}

// DispatchWith behaves like Dispatch and runs prepare once the dispatch slot is
// claimed, before the first stage. prepare is skipped when the chain is already
// dispatching.
func (c *Chain) DispatchWith(ctx context.Context, event Event, interval types.Interval, prepare func()) (bool, error) {
	if !c.dispatching.CompareAndSwap(false, true) {
		return false, errors.New(errors.ErrCodeConcurrentMutation, "chain is already dispatching")
	}
	defer c.dispatching.Store(false)

	if prepare != nil {
		prepare()
	}

	c.mu.Lock()
	order := c.orderLocked()
	c.mu.Unlock()

	for _, node := range order {
		stage := node.stage

		if err := ctx.Err(); err != nil {
			return false, &DispatchError{
				Stage:    stage.FullName(),
				Event:    event,
				Interval: interval,
				Err:      errors.Wrapf(errors.ErrCodeDispatch, err, "dispatch cancelled before stage %s", stage.FullName()),
			}
		}

		proceed, err := invoke(ctx, stage, event, interval)
		if err != nil {
			c.log.Debug("Stage failed",
				zap.String("stage", stage.FullName()),
				zap.String("event", event.String()),
				zap.Error(err),
			)

			return false, &DispatchError{
				Stage:    stage.FullName(),
				Event:    event,
				Interval: interval,
				Err:      errors.Wrapf(errors.ErrCodeDispatch, err, "stage %s failed on %s", stage.FullName(), event),
			}
		}

		if !proceed {
			c.log.Debug("Stage stopped propagation",
				zap.String("stage", stage.FullName()),
				zap.String("event", event.String()),
			)

			return false, nil
		}
	}

	return true, nil
}

func invoke(ctx context.Context, stage *Stage, event Event, interval types.Interval) (proceed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			proceed = false
			err = errors.Newf(errors.ErrCodeStagePanicked, "stage %s panicked: %v", stage.FullName(), r)
		}
	}()

	if stage.handler == nil {
		return true, nil
	}

	switch event {
	case EventIntervalOpen:
		return stage.handler.OnBeforeIntervalOpen(ctx, interval)
	case EventIntervalClose:
		return stage.handler.OnBeforeIntervalClose(ctx, interval)
	default:
		return false, fmt.Errorf("unknown event %s", event)
	}
}

// Order returns the dispatch order.
func (c *Chain) Order() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Node(nil), c.orderLocked()...)
}

// Nodes returns the nodes in sibling order.
func (c *Chain) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nodesLocked()
}

// Edges returns every dependency, grouped by consumer in sibling order.
func (c *Chain) Edges() []Edge {
	c.mu.Lock()
	defer c.mu.Unlock()

	var edges []Edge
	for _, n := range c.nodesLocked() {
		for _, p := range n.dependsOn {
			edges = append(edges, Edge{Consumer: n, Producer: p})
		}
	}

	return edges
}

func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.nodes)
}

// Contains reports whether the node belongs to this chain.
func (c *Chain) Contains(node *Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.containsLocked(node)
}

// IsDispatching reports whether a dispatch is in progress.
func (c *Chain) IsDispatching() bool {
	return c.dispatching.Load()
}

func (c *Chain) attach(node *Node) {
	c.seq++
	node.seq = c.seq
	node.chain.Store(c)
	c.nodes[node] = struct{}{}
	c.order = nil
}

func (c *Chain) containsLocked(node *Node) bool {
	if node == nil {
		return false
	}

	_, ok := c.nodes[node]

	return ok
}

func (c *Chain) nodesLocked() []*Node {
	nodes := make([]*Node, 0, len(c.nodes))
	for n := c.head; n != nil; n = n.next {
		nodes = append(nodes, n)
	}

	return nodes
}

func (c *Chain) orderLocked() []*Node {
	if c.order == nil {
		c.order = c.topoOrder()
	}

	return c.order
}

func (c *Chain) checkMutableLocked() error {
	if c.dispatching.Load() {
		return errors.New(errors.ErrCodeConcurrentMutation, "chain cannot be modified while dispatching")
	}

	return nil
}

func (c *Chain) checkInsertLocked(node *Node, anchor *Node) error {
	if err := c.checkMutableLocked(); err != nil {
		return err
	}

	if node == nil {
		return errors.New(errors.ErrCodeUnknownNode, "node is required")
	}

	if node.chain.Load() != nil {
		return errors.Newf(errors.ErrCodeDuplicateNode, "stage %s already belongs to a chain", node)
	}

	if !c.containsLocked(anchor) {
		return errors.Newf(errors.ErrCodeUnknownNode, "anchor %s is not part of the chain", anchor)
	}

	return nil
}

func (c *Chain) validateReplaceLocked(old *Node, replacement *Node) error {
	if err := c.checkMutableLocked(); err != nil {
		return err
	}

	if !c.containsLocked(old) {
		return errors.Newf(errors.ErrCodeUnknownNode, "stage %s is not part of the chain", old)
	}

	if replacement == nil {
		return errors.New(errors.ErrCodeDependencyViolation, "replacement stage is required")
	}

	if replacement.chain.Load() != nil {
		return errors.Newf(errors.ErrCodeDependencyViolation, "replacement %s already belongs to a chain", replacement)
	}

	if replacement.hasEdges() {
		return errors.Newf(errors.ErrCodeDependencyViolation, "replacement %s carries dependencies from another graph", replacement)
	}

	return nil
}
