package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dansever/fleet-ai-sub002/src/cache"
	"github.com/dansever/fleet-ai-sub002/src/models"
	"github.com/dansever/fleet-ai-sub002/src/processors"
	"github.com/dansever/fleet-ai-sub002/src/units"
)

func newTestBidService(provider Provider) *BidConversionService {
	if provider == nil {
		provider = &fakeProvider{result: &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}}
	}
	converter := NewConversionService(units.NewConverter(), provider)
	aggregator := processors.NewFeeAggregator(0.10)
	return NewBidConversionService(converter, aggregator, cache.New(nil, "test_"), 5*time.Minute, time.Hour)
}

func TestConvertBidsValidatesRequest(t *testing.T) {
	svc := newTestBidService(nil)

	_, err := svc.ConvertBids(context.Background(), nil, models.ConversionTarget{Currency: "USD", UOM: "l"})
	assert.ErrorIs(t, err, ErrNoBids)

	bids := []models.PricedRecord{{ID: "bid-1", Currency: "USD", UOM: "gal", BasePrice: 2.3}}
	_, err = svc.ConvertBids(context.Background(), bids, models.ConversionTarget{})
	assert.ErrorIs(t, err, ErrMissingTarget)
}

func TestConvertBidsNormalizesBasePrice(t *testing.T) {
	svc := newTestBidService(nil)

	bids := []models.PricedRecord{{ID: "bid-1", Currency: "USD", UOM: "USG", BasePrice: 2.3}}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "USD", UOM: "L"})
	require.NoError(t, err)
	require.Len(t, result.ConvertedBids, 1)

	item := result.ConvertedBids[0]
	assert.Equal(t, models.StatusCompleted, item.ConversionStatus)
	require.True(t, item.BasePriceResult.Succeeded())
	assert.InDelta(t, 0.6076, item.BasePriceResult.Value, 1e-3)
	assert.InDelta(t, 0.6076, item.NormalizedTotalBeforeTax, 1e-3)
	assert.InDelta(t, 0.6076*1.1, item.NormalizedTotalWithTax, 1e-3)
	assert.False(t, item.LastConvertedAt.IsZero())
}

func TestConvertBidsSkipsFieldsNeedingNoConversion(t *testing.T) {
	svc := newTestBidService(nil)

	bids := []models.PricedRecord{{ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61, IncludesTaxes: true}}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "usd", UOM: "Liters"})
	require.NoError(t, err)

	item := result.ConvertedBids[0]
	assert.Nil(t, item.BasePriceResult, "same currency and unit needs no conversion")
	assert.InDelta(t, 0.61, item.NormalizedTotalBeforeTax, 1e-9)
	assert.Empty(t, result.Progress.Errors)
}

// One field's failure never aborts the batch: the failing bid still
// completes, its failure lands in the progress report, and the other
// bids convert normally.
func TestConvertBidsPartialFailureIsolation(t *testing.T) {
	svc := newTestBidService(nil)

	bids := []models.PricedRecord{
		{ID: "bid-1", Currency: "USD", UOM: "usg", BasePrice: 2.3},
		{ID: "bid-2", Currency: "USD", UOM: "flibber", BasePrice: 9.9},
		{ID: "bid-3", Currency: "USD", UOM: "bbl", BasePrice: 95.0},
	}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "USD", UOM: "l"})
	require.NoError(t, err)
	require.Len(t, result.ConvertedBids, 3)

	for _, item := range result.ConvertedBids {
		assert.Equal(t, models.StatusCompleted, item.ConversionStatus, "bid %s", item.ID)
	}
	assert.Equal(t, 3, result.Progress.Completed)
	require.Len(t, result.Progress.Errors, 1)
	assert.Contains(t, result.Progress.Errors[0], "bid-2")
	assert.Contains(t, result.Progress.Errors[0], "base_price")

	failed := result.ConvertedBids[1]
	require.NotNil(t, failed.BasePriceResult)
	assert.False(t, failed.BasePriceResult.Succeeded())
	assert.Equal(t, models.ErrCodeRateConversion, failed.BasePriceResult.ErrorCode)
}

func TestConvertBidsMalformedRecordMarksItemError(t *testing.T) {
	svc := newTestBidService(nil)

	bids := []models.PricedRecord{
		{ID: "bid-1", Currency: "", UOM: "l", BasePrice: 1.0},
		{ID: "bid-2", Currency: "USD", UOM: "l", BasePrice: 1.0, IncludesTaxes: true},
	}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "USD", UOM: "l"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, result.ConvertedBids[0].ConversionStatus)
	assert.NotEmpty(t, result.ConvertedBids[0].StatusMessage)
	assert.Equal(t, models.StatusCompleted, result.ConvertedBids[1].ConversionStatus)
	assert.Equal(t, 2, result.Progress.Completed)
}

func TestConvertBidsConvertsFeesCurrencyOnly(t *testing.T) {
	provider := &fakeProvider{result: &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}}
	svc := newTestBidService(provider)

	bids := []models.PricedRecord{{
		ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61,
		IntoPlaneFee: 0.10, HandlingFee: 0.05, HandlingFeeBasis: models.FeeBasisPerUplift,
		IncludesTaxes: true,
	}}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "EUR", UOM: "l"})
	require.NoError(t, err)

	item := result.ConvertedBids[0]
	require.True(t, item.IntoPlaneFeeResult.Succeeded())
	assert.InDelta(t, 0.092, item.IntoPlaneFeeResult.Value, 1e-6)
	assert.Equal(t, "(per uplift)", item.FeeNotes["handling_fee"])

	// per_uplift handling fee stays out of the per-unit total.
	expected := 0.61*0.92 + 0.092
	assert.InDelta(t, expected, item.NormalizedTotalBeforeTax, 1e-6)
}

// Fee amounts never reach the provider: only the unit amount goes out,
// and the actual values are scaled locally by the returned rate.
func TestConvertBidsScalesFeesByUnitExchangeRate(t *testing.T) {
	provider := &fakeProvider{result: &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}}
	svc := newTestBidService(provider)

	bids := []models.PricedRecord{{
		ID: "bid-1", Currency: "USD", UOM: "l",
		IntoPlaneFee: 12.5, OtherFee: 0.10, IncludesTaxes: true,
	}}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "EUR", UOM: "l"})
	require.NoError(t, err)

	assert.Equal(t, "Convert 1 USD to EUR", provider.lastIn)
	assert.Equal(t, 1, provider.calls, "one exchange rate covers both fees")

	item := result.ConvertedBids[0]
	require.True(t, item.IntoPlaneFeeResult.Succeeded())
	assert.InDelta(t, 12.5*0.92, item.IntoPlaneFeeResult.Value, 1e-9)
	require.True(t, item.OtherFeeResult.Succeeded())
	assert.InDelta(t, 0.10*0.92, item.OtherFeeResult.Value, 1e-9)
}

func TestConvertBidsIndexDifferential(t *testing.T) {
	svc := newTestBidService(nil)

	bids := []models.PricedRecord{{
		ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61,
		PriceType: models.PriceTypeIndexFormula, IndexDifferential: 4.2, DifferentialUnit: "usg",
		IncludesTaxes: true,
	}}
	result, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "USD", UOM: "l"})
	require.NoError(t, err)

	item := result.ConvertedBids[0]
	require.True(t, item.DifferentialResult.Succeeded())
	assert.InDelta(t, 4.2*0.264172, item.DifferentialResult.Value, 1e-4)
	assert.InDelta(t, 0.61+4.2*0.264172, item.NormalizedTotalBeforeTax, 1e-4)
}

func TestConvertBidsSharesCachedFactorsAcrossBids(t *testing.T) {
	provider := &fakeProvider{result: &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}}
	svc := newTestBidService(provider)

	bids := []models.PricedRecord{
		{ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61},
		{ID: "bid-2", Currency: "USD", UOM: "l", BasePrice: 0.64},
	}
	_, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "EUR", UOM: "l"})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "the currency factor must be fetched once and shared")
}

func TestConvertBidsMemoizesWholeRuns(t *testing.T) {
	provider := &fakeProvider{result: &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}}
	svc := newTestBidService(provider)

	bids := []models.PricedRecord{{ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61}}
	target := models.ConversionTarget{Currency: "EUR", UOM: "l"}

	first, err := svc.ConvertBids(context.Background(), bids, target)
	require.NoError(t, err)
	callsAfterFirst := provider.calls

	second, err := svc.ConvertBids(context.Background(), bids, target)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, provider.calls, "memoized run must not call the provider again")
	assert.Equal(t, first.Progress.Completed, second.Progress.Completed)
}

// A cached factor must produce bit-identical results to a fresh
// conversion, so a request cannot observe the cache state.
func TestCachedRateHitMatchesMissExactly(t *testing.T) {
	svc := newTestBidService(nil)

	first := svc.cachedRate(context.Background(), 2.3, "USD/usg", "USD/l")
	require.True(t, first.Succeeded())

	second := svc.cachedRate(context.Background(), 2.3, "USD/usg", "USD/l")
	require.True(t, second.Succeeded())
	require.NotNil(t, second.Meta)
	assert.Equal(t, "cache", second.Meta.Source)
	assert.Equal(t, first.Value, second.Value)
}

// A run that failed on a transient provider outage must not be pinned
// in the run cache; the next attempt goes back out and can succeed.
func TestConvertBidsDoesNotMemoizeFailedRuns(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider unavailable")}
	svc := newTestBidService(provider)

	bids := []models.PricedRecord{{ID: "bid-1", Currency: "USD", UOM: "l", BasePrice: 0.61, IncludesTaxes: true}}
	target := models.ConversionTarget{Currency: "EUR", UOM: "l"}

	first, err := svc.ConvertBids(context.Background(), bids, target)
	require.NoError(t, err)
	require.NotEmpty(t, first.Progress.Errors)

	provider.err = nil
	provider.result = &ProviderResult{Value: 0.92, Unit: "EUR", Meta: ProviderMeta{ExchangeRate: 0.92}}

	second, err := svc.ConvertBids(context.Background(), bids, target)
	require.NoError(t, err)
	assert.Empty(t, second.Progress.Errors)
	require.True(t, second.ConvertedBids[0].BasePriceResult.Succeeded())
	assert.InDelta(t, 0.61*0.92, second.ConvertedBids[0].BasePriceResult.Value, 1e-9)
}

func TestConvertBidsProgressIsMonotonic(t *testing.T) {
	svc := newTestBidService(nil)

	var snapshots []models.ConversionProgress
	observer := ProgressObserverFunc(func(p models.ConversionProgress) {
		snapshots = append(snapshots, p)
	})

	bids := []models.PricedRecord{
		{ID: "bid-1", Currency: "USD", UOM: "usg", BasePrice: 2.3},
		{ID: "bid-2", Currency: "USD", UOM: "flibber", BasePrice: 9.9},
		{ID: "bid-3", Currency: "USD", UOM: "bbl", BasePrice: 95.0},
	}
	_, err := svc.ConvertBids(context.Background(), bids, models.ConversionTarget{Currency: "USD", UOM: "l"}, observer)
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)

	prevCompleted, prevErrors := 0, 0
	for _, snapshot := range snapshots {
		assert.GreaterOrEqual(t, snapshot.Completed, prevCompleted, "completed must never decrease")
		assert.GreaterOrEqual(t, len(snapshot.Errors), prevErrors, "errors must never shrink")
		prevCompleted = snapshot.Completed
		prevErrors = len(snapshot.Errors)
	}
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, 3, final.Completed)
	assert.Equal(t, 3, final.Total)
}
