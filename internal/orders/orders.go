// Package orders holds the strategy's pending order intents.
//
// Intents live in four buckets keyed by direction (enter, exit) and timing (now, next
// interval). Rollover moves the next-interval buckets into the now buckets when a new
// default interval opens. Evaluator stages drain the now intents of the closing bar's
// symbol.
package orders

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
)

// Orders is the set of pending intents of one strategy.
type Orders struct {
	mu sync.Mutex

	enter *EnterCommon
	exit  *ExitCommon

	// snapshot holds copies of the next-interval buckets taken by Begin.
	snapshot map[*Bucket][]types.OrderIntent
	// exiting holds the exit quantity submitted per symbol during the current event.
	exiting map[string]float64
}

// New creates the intent set and binds each evaluator to its bucket.
func New(exitNow, enterNow, exitNextBar, enterNextBar *Evaluator) (*Orders, error) {
	o := &Orders{
		exiting: map[string]float64{},
	}

	o.enter = &EnterCommon{
		now:  newBucket(o, types.DirectionEnter, types.TimingNow),
		next: newBucket(o, types.DirectionEnter, types.TimingNext),
	}
	o.exit = &ExitCommon{
		now:  &ExitBucket{Bucket: newBucket(o, types.DirectionExit, types.TimingNow)},
		next: &ExitBucket{Bucket: newBucket(o, types.DirectionExit, types.TimingNext)},
	}

	bindings := []struct {
		evaluator *Evaluator
		bucket    *Bucket
	}{
		{exitNow, o.exit.now.Bucket},
		{enterNow, o.enter.now},
		{exitNextBar, o.exit.next.Bucket},
		{enterNextBar, o.enter.next},
	}

	for _, b := range bindings {
		if b.evaluator == nil {
			continue
		}

		if err := b.evaluator.bind(o, b.bucket); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Enter returns the enter intents.
func (o *Orders) Enter() *EnterCommon {
	return o.enter
}

// Exit returns the exit intents.
func (o *Orders) Exit() *ExitCommon {
	return o.exit
}

// Len returns the number of pending intents across all buckets.
func (o *Orders) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.enter.now.intents) + len(o.enter.next.intents) +
		len(o.exit.now.intents) + len(o.exit.next.intents)
}

// Rollover moves the next-interval intents into the now buckets and empties the
// next-interval buckets.
func (o *Orders) Rollover() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.enter.now.intents = append(o.enter.now.intents, o.enter.next.intents...)
	o.enter.next.intents = nil

	o.exit.now.intents = append(o.exit.now.intents, o.exit.next.intents...)
	o.exit.next.intents = nil

	o.snapshot = nil
}

// Begin starts an event. It copies the next-interval buckets for Rollback and
// forgets the exits submitted during the previous event.
func (o *Orders) Begin() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.snapshot = map[*Bucket][]types.OrderIntent{}
	for _, bucket := range []*Bucket{o.enter.next, o.exit.next.Bucket} {
		o.snapshot[bucket] = append([]types.OrderIntent(nil), bucket.intents...)
	}
	o.exiting = map[string]float64{}
}

// Rollback discards the intents of a failed event: every now intent is dropped and
// the next-interval buckets get back the contents copied by Begin.
func (o *Orders) Rollback() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.enter.now.intents = nil
	o.exit.now.intents = nil

	for bucket, intents := range o.snapshot {
		bucket.intents = intents
	}

	o.snapshot = nil
}

func (o *Orders) markExiting(symbol string, quantity float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.exiting[symbol] += quantity
}

// exitingQuantity returns the exit quantity already submitted for symbol in this event.
func (o *Orders) exitingQuantity(symbol string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.exiting[symbol]
}

// EnterCommon groups the enter buckets.
type EnterCommon struct {
	now  *Bucket
	next *Bucket
}

// Now returns the intents eligible in the current interval.
func (e *EnterCommon) Now() *Bucket {
	return e.now
}

// NextInterval returns the intents that become eligible when the next interval opens.
func (e *EnterCommon) NextInterval() *Bucket {
	return e.next
}

// ExitCommon groups the exit buckets.
type ExitCommon struct {
	now  *ExitBucket
	next *ExitBucket
}

func (e *ExitCommon) Now() *ExitBucket {
	return e.now
}

func (e *ExitCommon) NextInterval() *ExitBucket {
	return e.next
}

// Bucket is one of the four intent queues.
type Bucket struct {
	owner     *Orders
	direction types.Direction
	timing    types.Timing
	intents   []types.OrderIntent
}

func newBucket(owner *Orders, direction types.Direction, timing types.Timing) *Bucket {
	return &Bucket{
		owner:     owner,
		direction: direction,
		timing:    timing,
	}
}

func (b *Bucket) Direction() types.Direction {
	return b.direction
}

func (b *Bucket) Timing() types.Timing {
	return b.timing
}

// Add validates and queues an intent. A missing id or creation time is filled in and
// the direction is forced to the bucket's direction. It returns the intent id.
func (b *Bucket) Add(intent types.OrderIntent) (string, error) {
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}

	if intent.Reason.Reason == "" {
		intent.Reason.Reason = types.OrderReasonStrategy
	}

	intent.Direction = b.direction

	if err := intent.Validate(); err != nil {
		return "", err
	}

	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	for _, existing := range b.intents {
		if existing.ID == intent.ID {
			return "", errors.Newf(errors.ErrCodeInvalidIntent, "intent %s is already queued", intent.ID)
		}
	}

	b.intents = append(b.intents, intent)

	return intent.ID, nil
}

// BuyMarket queues a market buy. A zero quantity uses the current position size.
func (b *Bucket) BuyMarket(symbol string, quantity float64, message string) (string, error) {
	return b.Add(b.intent(symbol, types.PurchaseTypeBuy, types.OrderTypeMarket, quantity, 0, message))
}

// SellMarket queues a market sell.
func (b *Bucket) SellMarket(symbol string, quantity float64, message string) (string, error) {
	return b.Add(b.intent(symbol, types.PurchaseTypeSell, types.OrderTypeMarket, quantity, 0, message))
}

// BuyLimit queues a limit buy at price.
func (b *Bucket) BuyLimit(symbol string, quantity float64, price float64, message string) (string, error) {
	return b.Add(b.intent(symbol, types.PurchaseTypeBuy, types.OrderTypeLimit, quantity, price, message))
}

// SellLimit queues a limit sell at price.
func (b *Bucket) SellLimit(symbol string, quantity float64, price float64, message string) (string, error) {
	return b.Add(b.intent(symbol, types.PurchaseTypeSell, types.OrderTypeLimit, quantity, price, message))
}

// BuyStop queues a market buy that fires once the bar trades at or above stopPrice.
func (b *Bucket) BuyStop(symbol string, quantity float64, stopPrice float64, message string) (string, error) {
	intent := b.intent(symbol, types.PurchaseTypeBuy, types.OrderTypeMarket, quantity, 0, message)
	intent.Trigger = optional.Some(types.Trigger{Direction: types.TriggerAbove, Price: stopPrice})

	return b.Add(intent)
}

// SellStop queues a market sell that fires once the bar trades at or below stopPrice.
func (b *Bucket) SellStop(symbol string, quantity float64, stopPrice float64, message string) (string, error) {
	intent := b.intent(symbol, types.PurchaseTypeSell, types.OrderTypeMarket, quantity, 0, message)
	intent.Trigger = optional.Some(types.Trigger{Direction: types.TriggerBelow, Price: stopPrice})

	return b.Add(intent)
}

// Intents returns a copy of the queued intents in insertion order.
func (b *Bucket) Intents() []types.OrderIntent {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	return append([]types.OrderIntent(nil), b.intents...)
}

// Cancel removes the intent with the given id. It reports whether one was removed.
func (b *Bucket) Cancel(id string) bool {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	for i, intent := range b.intents {
		if intent.ID == id {
			b.intents = append(b.intents[:i], b.intents[i+1:]...)
			return true
		}
	}

	return false
}

func (b *Bucket) Clear() {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	b.intents = nil
}

func (b *Bucket) Len() int {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	return len(b.intents)
}

// retain keeps only the intents accepted by keep.
func (b *Bucket) retain(keep func(types.OrderIntent) bool) {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	kept := b.intents[:0]
	for _, intent := range b.intents {
		if keep(intent) {
			kept = append(kept, intent)
		}
	}

	b.intents = kept
}

func (b *Bucket) intent(symbol string, side types.PurchaseType, orderType types.OrderType, quantity float64, price float64, message string) types.OrderIntent {
	return types.OrderIntent{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		OrderType: orderType,
		Price:     price,
		Reason: types.Reason{
			Reason:  types.OrderReasonStrategy,
			Message: message,
		},
		Trigger: optional.None[types.Trigger](),
	}
}

// ExitBucket is an exit queue. Exits always close the open position, so the side of
// a queued exit is resolved from the position when it is submitted.
type ExitBucket struct {
	*Bucket
}

// GoFlat queues an exit of the whole position in symbol.
func (b *ExitBucket) GoFlat(symbol string, message string) (string, error) {
	return b.Flatten(symbol, types.OrderReasonGoFlat, message)
}

// Flatten queues a market exit of the whole position in symbol with the given reason.
func (b *ExitBucket) Flatten(symbol string, reason string, message string) (string, error) {
	intent := b.intent(symbol, types.PurchaseTypeSell, types.OrderTypeMarket, 0, 0, message)
	intent.Reason.Reason = reason

	return b.Add(intent)
}
