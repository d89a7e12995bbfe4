// Package positionsize decides the default quantity of enter intents.
package positionsize

import (
	"context"
	"math"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/internal/utils"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

const StageName = "PositionSize"

type Mode string

const (
	// ModeFixed always sizes to Config.Quantity.
	ModeFixed Mode = "fixed"
	// ModePercentOfEquity sizes to Config.Percentage of the account equity at the bar price.
	ModePercentOfEquity Mode = "percent_of_equity"
)

type Config struct {
	Mode             Mode    `yaml:"mode" json:"mode" validate:"omitempty,oneof=fixed percent_of_equity" jsonschema:"title=Mode,description=How the default quantity is computed,enum=fixed,enum=percent_of_equity,default=fixed"`
	Quantity         float64 `yaml:"quantity" json:"quantity" validate:"gte=0" jsonschema:"title=Quantity,description=Quantity used in fixed mode,minimum=0"`
	Percentage       float64 `yaml:"percentage" json:"percentage" validate:"gte=0,lte=1" jsonschema:"title=Percentage,description=Fraction of equity used in percent_of_equity mode,minimum=0,maximum=1"`
	DecimalPrecision int     `yaml:"decimal_precision" json:"decimal_precision" validate:"gte=0" jsonschema:"title=Decimal Precision,description=Decimal places kept when rounding quantities down,minimum=0"`
}

// PositionSize is the stage that computes the default size at every default-interval open.
type PositionSize struct {
	stage  *chain.Stage
	config Config

	mu         sync.Mutex
	account    broker.AccountReader
	commission commission_fee.CommissionFee
	size       float64
}

// New creates the position size stage. An empty mode means fixed.
func New(config Config, log *logger.Logger) (*PositionSize, error) {
	if config.Mode == "" {
		config.Mode = ModeFixed
	}

	if config.Mode != ModeFixed && config.Mode != ModePercentOfEquity {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown position size mode %q", config.Mode)
	}

	p := &PositionSize{
		config:     config,
		commission: commission_fee.NewZeroCommissionFee(),
	}
	p.stage = chain.NewStage(StageName, p, log)

	if config.Mode == ModeFixed {
		p.size = utils.RoundToDecimalPrecision(config.Quantity, config.DecimalPrecision)
	}

	return p, nil
}

func (p *PositionSize) Stage() *chain.Stage {
	return p.stage
}

func (p *PositionSize) Config() Config {
	return p.config
}

// Bind sets the account the percentage mode reads and the commission model.
// A nil commission model charges nothing.
func (p *PositionSize) Bind(account broker.AccountReader, commission commission_fee.CommissionFee) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.account = account

	if commission == nil {
		commission = commission_fee.NewZeroCommissionFee()
	}

	p.commission = commission
}

// Size returns the default quantity computed at the last default-interval open.
func (p *PositionSize) Size() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.size
}

// OnBeforeIntervalOpen recomputes the size from the open price.
func (p *PositionSize) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	if p.config.Mode != ModePercentOfEquity || !interval.IsDefault() {
		return true, nil
	}

	price := interval.Bar.Open
	if price <= 0 {
		return true, nil
	}

	p.mu.Lock()
	account, commission := p.account, p.commission
	p.mu.Unlock()

	if account == nil {
		return true, nil
	}

	info := account.AccountInfo()
	budget := math.Min(info.Equity*math.Min(p.config.Percentage, 1), info.BuyingPower)

	quantity := utils.RoundToDecimalPrecision(
		utils.CalculateMaxQuantity(budget, price, commission),
		p.config.DecimalPrecision,
	)

	p.mu.Lock()
	p.size = quantity
	p.mu.Unlock()

	if p.stage.IsDebug() {
		p.stage.Log().Debug("Position size updated",
			zap.Float64("equity", info.Equity),
			zap.Float64("price", price),
			zap.Float64("size", quantity),
		)
	}

	return true, nil
}

func (p *PositionSize) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	return true, nil
}
