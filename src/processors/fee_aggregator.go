package processors

import (
	"github.com/shopspring/decimal"

	"github.com/dansever/fleet-ai-sub002/src/models"
)

// Totals is a bid's all-in price collapsed onto the target
// currency/unit pair.
type Totals struct {
	BeforeTax float64 `json:"totalBeforeTax"`
	WithTax   float64 `json:"totalWithTax"`
}

// FeeAggregator folds per-unit fees into a bid's normalized price.
// Fees on an event basis (per_uplift, per_delivery) are excluded from
// the per-unit total: they do not scale with delivered volume and must
// be surfaced separately, or bid comparison stops being like-for-like.
type FeeAggregator struct {
	// taxRate is the flat rate applied when a bid does not declare
	// taxes included. A declared approximation, not a jurisdiction-aware
	// tax computation.
	taxRate decimal.Decimal
}

func NewFeeAggregator(taxRate float64) *FeeAggregator {
	return &FeeAggregator{taxRate: decimal.NewFromFloat(taxRate)}
}

// Aggregate computes the normalized totals of a converted bid. It
// starts from the converted base price (or the original when no
// conversion was needed), adds the differential for index-linked bids,
// then each per-unit fee.
func (a *FeeAggregator) Aggregate(bid *models.ConvertedBid) Totals {
	total := decimal.NewFromFloat(resolved(bid.BasePriceResult, bid.BasePrice))

	if bid.PriceType == models.PriceTypeIndexFormula && bid.IndexDifferential != 0 {
		total = total.Add(decimal.NewFromFloat(resolved(bid.DifferentialResult, bid.IndexDifferential)))
	}

	fees := []struct {
		value  float64
		basis  models.FeeBasis
		result *models.ConversionResult
	}{
		{bid.IntoPlaneFee, bid.IntoPlaneFeeBasis, bid.IntoPlaneFeeResult},
		{bid.HandlingFee, bid.HandlingFeeBasis, bid.HandlingFeeResult},
		{bid.OtherFee, bid.OtherFeeBasis, bid.OtherFeeResult},
	}
	for _, fee := range fees {
		if fee.value == 0 || !fee.basis.IsPerUnit() {
			continue
		}
		total = total.Add(decimal.NewFromFloat(resolved(fee.result, fee.value)))
	}

	withTax := total
	if !bid.IncludesTaxes {
		withTax = total.Mul(decimal.NewFromInt(1).Add(a.taxRate))
	}

	before, _ := total.Round(6).Float64()
	after, _ := withTax.Round(6).Float64()
	return Totals{BeforeTax: before, WithTax: after}
}

// resolved prefers a field's converted value and falls back to the
// original when the field needed no conversion or its conversion
// failed. Callers must inspect the per-field results to spot failures.
func resolved(result *models.ConversionResult, original float64) float64 {
	if result.Succeeded() {
		return result.Value
	}
	return original
}
