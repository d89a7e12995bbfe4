package commission_fee

import (
	"fmt"
	"strings"
)

type CommissionFee interface {
	// Calculate the commission fee for a fill of quantity at price and returns the fee in quote currency
	Calculate(quantity float64, price float64) float64
}

type Broker string

const (
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerPercentage        Broker = "percentage"
	BrokerZero              Broker = "zero_commission"
)

var AllBrokers = []any{
	BrokerInteractiveBroker,
	BrokerPercentage,
	BrokerZero,
}

// DefaultPercentageRate is the rate used by the percentage model when none is configured (0.1%).
const DefaultPercentageRate = 0.001

func GetCommissionFeeHandler(broker Broker) CommissionFee {
	switch broker {
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerPercentage:
		return NewPercentageCommissionFee(DefaultPercentageRate)
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}

// ParseBroker converts a configured name into a Broker.
func ParseBroker(name string) (Broker, error) {
	switch b := Broker(strings.ToLower(strings.TrimSpace(name))); b {
	case BrokerInteractiveBroker, BrokerPercentage, BrokerZero:
		return b, nil
	case "":
		return BrokerZero, nil
	default:
		return "", fmt.Errorf("unknown commission model %q", name)
	}
}
