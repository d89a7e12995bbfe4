package chain

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
)

// Handler is the behavior a stage runs for interval events.
// Returning false stops propagation to the remaining stages of the event.
type Handler interface {
	OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error)
	OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error)
}

// HandlerFuncs adapts plain functions to Handler. Nil functions continue propagation.
type HandlerFuncs struct {
	Open  func(ctx context.Context, interval types.Interval) (bool, error)
	Close func(ctx context.Context, interval types.Interval) (bool, error)
}

func (h HandlerFuncs) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	if h.Open == nil {
		return true, nil
	}

	return h.Open(ctx, interval)
}

func (h HandlerFuncs) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if h.Close == nil {
		return true, nil
	}

	return h.Close(ctx, interval)
}

// Stage is a named unit of the pipeline. A stage is created with exactly one Node
// and keeps it for its whole life.
type Stage struct {
	mu      sync.RWMutex
	name    string
	owner   string
	node    *Node
	handler Handler
	base    *logger.Logger
	log     *logger.Logger
}

// NewStage creates a stage and its node. The node is not part of any chain yet.
func NewStage(name string, handler Handler, log *logger.Logger) *Stage {
	if log == nil {
		log = logger.NewNopLogger()
	}

	stage := &Stage{
		name:    name,
		handler: handler,
		base:    log,
	}
	stage.node = &Node{stage: stage}
	stage.log = log.ForStage(stage.fullNameLocked())

	return stage
}

// Name returns the short name of the stage.
func (s *Stage) Name() string {
	return s.name
}

// Owner returns the display name of the strategy owning the stage.
func (s *Stage) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.owner
}

// SetOwner sets the owner display name. An empty owner detaches the stage from its owner.
func (s *Stage) SetOwner(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner == owner {
		return
	}

	s.owner = owner
	s.log = s.base.ForStage(s.fullNameLocked())
}

// FullName returns owner + "." + name, or name while no owner is set.
func (s *Stage) FullName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fullNameLocked()
}

func (s *Stage) fullNameLocked() string {
	if s.owner == "" {
		return s.name
	}

	return s.owner + "." + s.name
}

func (s *Stage) Node() *Node {
	return s.node
}

func (s *Stage) Handler() Handler {
	return s.handler
}

// Log returns the stage's logger tagged with its full name.
func (s *Stage) Log() *logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.log
}

func (s *Stage) IsDebug() bool {
	return s.Log().IsDebug()
}

func (s *Stage) String() string {
	return s.FullName()
}
