// Package broker routes order intents to an execution venue.
package broker

import (
	"context"

	"github.com/rxtech-lab/argo-chain/internal/types"
)

// Broker accepts intents and reports their fill state. Submit only acknowledges the
// order; fills are observed later through FillState.
type Broker interface {
	// Submit places the intent and returns the broker handle.
	Submit(ctx context.Context, intent types.OrderIntent) (types.Handle, error)
	// Cancel cancels a pending order. Cancelling a terminal order is a no-op.
	Cancel(ctx context.Context, handle types.Handle) error
	// FillState returns the current state of the order.
	FillState(ctx context.Context, handle types.Handle) (types.FillState, error)
}

// AccountReader exposes the account of a broker.
type AccountReader interface {
	AccountInfo() types.AccountInfo
}
