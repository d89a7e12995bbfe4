package utils

import (
	"math"

	"github.com/rxtech-lab/argo-chain/internal/broker/commission_fee"
)

// CalculateMaxQuantity calculates the maximum quantity that can be bought with the given balance, fees included.
func CalculateMaxQuantity(balance float64, price float64, commissionFee commission_fee.CommissionFee) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}

	// Initial rough estimate (ignoring fees)
	maxQty := balance / price

	// Iteratively refine by accounting for fees
	for i := 0; i < 10; i++ {
		totalCost := maxQty*price + commissionFee.Calculate(maxQty, price)
		if totalCost <= balance {
			break
		}

		maxQty = maxQty * (balance / totalCost)
	}

	// A flat minimum fee can exceed the whole balance.
	if maxQty*price+commissionFee.Calculate(maxQty, price) > balance {
		return 0
	}

	return maxQty
}

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateOrderQuantityByPercentage calculates the quantity of an order by the given percentage of the balance.
func CalculateOrderQuantityByPercentage(balance float64, price float64, commissionFee commission_fee.CommissionFee, percentage float64) float64 {
	if percentage <= 0 {
		return 0
	}

	return CalculateMaxQuantity(balance*math.Min(percentage, 1), price, commissionFee)
}
