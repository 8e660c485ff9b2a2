package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/dansever/fleet-ai-sub002/src/cache"
	"github.com/dansever/fleet-ai-sub002/src/logger"
	"github.com/dansever/fleet-ai-sub002/src/models"
	"github.com/dansever/fleet-ai-sub002/src/processors"
	"github.com/dansever/fleet-ai-sub002/src/units"
	"github.com/dansever/fleet-ai-sub002/src/utils"
)

const (
	ckRateFactor     = "rate_%s_%s"
	ckCurrencyFactor = "cur_%s_%s"
	ckRunResult      = "run_%x"
)

// BidConversionService orchestrates multi-field bid conversion runs.
// Bids and their fields are processed sequentially: the provider is
// rate-limited and costed per call, so there is no internal fan-out.
type BidConversionService struct {
	converter  *ConversionService
	aggregator *processors.FeeAggregator
	cache      *cache.Cache
	rateTTL    time.Duration
	runTTL     time.Duration
	now        func() time.Time
}

func NewBidConversionService(
	converter *ConversionService,
	aggregator *processors.FeeAggregator,
	resultCache *cache.Cache,
	rateTTL time.Duration,
	runTTL time.Duration,
) *BidConversionService {
	return &BidConversionService{
		converter:  converter,
		aggregator: aggregator,
		cache:      resultCache,
		rateTTL:    rateTTL,
		runTTL:     runTTL,
		now:        time.Now,
	}
}

// ConvertBids normalizes every priced field of every bid onto the
// target currency/unit pair. One field's failure never aborts the
// batch: failures are recorded on the item and in the progress report,
// and the run continues. Only a structurally invalid request (no bids,
// no target) is a fatal error.
func (s *BidConversionService) ConvertBids(
	ctx context.Context,
	bids []models.PricedRecord,
	target models.ConversionTarget,
	observers ...ProgressObserver,
) (*models.BidConversionResult, error) {
	if len(bids) == 0 {
		return nil, ErrNoBids
	}
	if strings.TrimSpace(target.Currency) == "" || strings.TrimSpace(target.UOM) == "" {
		return nil, ErrMissingTarget
	}

	runKey := s.runCacheKey(bids, target)
	var cached models.BidConversionResult
	if s.cache.GetJSON(runKey, s.runTTL, &cached) {
		logger.L.Debug("Returning memoized bid conversion run", "key", runKey)
		publish(observers, cached.Progress)
		return &cached, nil
	}

	progress := models.ConversionProgress{Total: len(bids), Errors: []string{}}
	converted := make([]models.ConvertedBid, 0, len(bids))

	for _, bid := range bids {
		item := models.ConvertedBid{
			PricedRecord:     bid,
			ConversionStatus: models.StatusPending,
			FeeNotes:         map[string]string{},
		}
		progress.Current = bid.ID
		item.ConversionStatus = models.StatusConverting
		publish(observers, progress.Snapshot())

		if err := s.convertOne(ctx, &item, target, &progress); err != nil {
			item.ConversionStatus = models.StatusError
			item.StatusMessage = err.Error()
			progress.Errors = append(progress.Errors, fmt.Sprintf("%s: %v", bid.ID, err))
			logger.L.Warn("Bid conversion failed at the item level", "bidID", bid.ID, "error", err)
		} else {
			item.ConversionStatus = models.StatusCompleted
		}
		item.LastConvertedAt = s.now()

		converted = append(converted, item)
		progress.Completed++
		progress.Current = ""
		publish(observers, progress.Snapshot())
	}

	result := &models.BidConversionResult{ConvertedBids: converted, Progress: progress.Snapshot()}
	// Runs with field failures are not memoized: a transient provider
	// outage must not be pinned for the whole run TTL.
	if len(progress.Errors) == 0 {
		if err := s.cache.Set(runKey, result); err != nil {
			logger.L.Warn("Failed to memoize bid conversion run", "error", err)
		}
	}
	return result, nil
}

// convertOne resolves every convertible field of a single bid. Field
// failures are recorded and do not return an error; only a malformed
// record does.
func (s *BidConversionService) convertOne(
	ctx context.Context,
	item *models.ConvertedBid,
	target models.ConversionTarget,
	progress *models.ConversionProgress,
) error {
	bid := &item.PricedRecord
	if strings.TrimSpace(bid.ID) == "" {
		return fmt.Errorf("bid is missing an identifier")
	}
	if strings.TrimSpace(bid.Currency) == "" || strings.TrimSpace(bid.UOM) == "" {
		return fmt.Errorf("bid is missing its currency or unit of measure")
	}

	targetCur := strings.ToUpper(strings.TrimSpace(target.Currency))
	targetUOM := units.Normalize(target.UOM)
	bidCur := strings.ToUpper(strings.TrimSpace(bid.Currency))
	bidUOM := units.Normalize(bid.UOM)

	recordFailure := func(field string, result *models.ConversionResult) {
		progress.Errors = append(progress.Errors,
			fmt.Sprintf("%s: %s: %s", bid.ID, field, result.Message))
	}

	// Base price is inherently a rate, so currency and unit legs go out
	// as one request.
	if bid.BasePrice != 0 && (bidCur != targetCur || bidUOM != targetUOM) {
		result := s.cachedRate(ctx, bid.BasePrice, bidCur+"/"+bidUOM, targetCur+"/"+targetUOM)
		item.BasePriceResult = result
		if !result.Succeeded() {
			recordFailure("base_price", result)
		}
	}

	// Index differential follows the base price treatment.
	if bid.PriceType == models.PriceTypeIndexFormula && bid.IndexDifferential != 0 {
		diffCur := strings.ToUpper(strings.TrimSpace(bid.DifferentialCurrency))
		if diffCur == "" {
			diffCur = bidCur
		}
		diffUOM := bid.DifferentialUnit
		if strings.TrimSpace(diffUOM) == "" {
			diffUOM = bid.UOM
		}
		diffUOM = units.Normalize(diffUOM)
		if diffCur != targetCur || diffUOM != targetUOM {
			result := s.cachedRate(ctx, bid.IndexDifferential, diffCur+"/"+diffUOM, targetCur+"/"+targetUOM)
			item.DifferentialResult = result
			if !result.Succeeded() {
				recordFailure("index_differential", result)
			}
		}
	}

	// Flat fees only carry a currency dimension.
	fees := []struct {
		name   string
		value  float64
		basis  models.FeeBasis
		result **models.ConversionResult
	}{
		{"into_plane_fee", bid.IntoPlaneFee, bid.IntoPlaneFeeBasis, &item.IntoPlaneFeeResult},
		{"handling_fee", bid.HandlingFee, bid.HandlingFeeBasis, &item.HandlingFeeResult},
		{"other_fee", bid.OtherFee, bid.OtherFeeBasis, &item.OtherFeeResult},
	}
	for _, fee := range fees {
		if fee.value == 0 {
			continue
		}
		if note := fee.basis.Note(); note != "" {
			item.FeeNotes[fee.name] = note
		}
		if bidCur == targetCur {
			continue
		}
		result := s.cachedCurrency(ctx, fee.value, bidCur, targetCur)
		*fee.result = result
		if !result.Succeeded() {
			recordFailure(fee.name, result)
		}
	}

	totals := s.aggregator.Aggregate(item)
	item.NormalizedTotalBeforeTax = totals.BeforeTax
	item.NormalizedTotalWithTax = totals.WithTax
	return nil
}

// cachedRate runs a rate conversion through the factor cache. The
// factor is value-independent, so semantically identical requests from
// different bids share one entry.
func (s *BidConversionService) cachedRate(ctx context.Context, value float64, fromRate, toRate string) *models.ConversionResult {
	key := fmt.Sprintf(ckRateFactor, normalizeRateKey(fromRate), normalizeRateKey(toRate))

	var factor float64
	if s.cache.GetJSON(key, s.rateTTL, &factor) {
		if toCur, toDenom, err := splitRate(toRate); err == nil {
			converted := utils.RoundSig(value*factor, sigDigits)
			unit := toCur + "/" + toDenom
			return models.NewSuccessResult(converted, unit,
				fmt.Sprintf("Converted %g %s → %g %s", value, normalizeRateKey(fromRate), converted, unit),
				&models.ConversionMeta{Rate: factor, Precision: sigDigits, Source: "cache"})
		}
	}

	result := s.converter.ConvertRate(ctx, value, fromRate, toRate)
	if result.Succeeded() && result.Meta != nil && result.Meta.Rate != 0 {
		if err := s.cache.Set(key, result.Meta.Rate); err != nil {
			logger.L.Warn("Failed to cache rate factor", "key", key, "error", err)
		}
	}
	return result
}

// cachedCurrency runs a currency conversion through the factor cache.
// The provider is only ever asked for the unit amount; the actual value
// is scaled locally, so the exchange rate stays value-independent just
// like the rate factors.
func (s *BidConversionService) cachedCurrency(ctx context.Context, value float64, fromCurrency, toCurrency string) *models.ConversionResult {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	key := fmt.Sprintf(ckCurrencyFactor, from, to)

	var rate float64
	source := "cache"
	if !s.cache.GetJSON(key, s.rateTTL, &rate) {
		unitResult := s.converter.ConvertCurrency(ctx, 1, from, to)
		if !unitResult.Succeeded() {
			return unitResult
		}
		rate = unitResult.Value
		if unitResult.Meta != nil {
			source = unitResult.Meta.Source
		}
		if err := s.cache.Set(key, rate); err != nil {
			logger.L.Warn("Failed to cache currency factor", "key", key, "error", err)
		}
	}

	converted := utils.RoundSig(value*rate, sigDigits)
	return models.NewSuccessResult(converted, to,
		fmt.Sprintf("Converted %g %s → %g %s", value, from, converted, to),
		&models.ConversionMeta{Rate: rate, Precision: sigDigits, Source: source})
}

// runCacheKey derives a semantic key for one whole run from the bid set
// and the target pair.
func (s *BidConversionService) runCacheKey(bids []models.PricedRecord, target models.ConversionTarget) string {
	h := fnv.New64a()
	payload, _ := json.Marshal(bids)
	h.Write(payload)
	h.Write([]byte(strings.ToUpper(target.Currency)))
	h.Write([]byte(units.Normalize(target.UOM)))
	return fmt.Sprintf(ckRunResult, h.Sum64())
}

// normalizeRateKey folds a CURRENCY/UNIT string into its canonical
// form for cache keying. Malformed strings fold as-is; the conversion
// itself rejects them.
func normalizeRateKey(rateStr string) string {
	cur, denom, err := splitRate(rateStr)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rateStr))
	}
	return cur + "/" + denom
}

func publish(observers []ProgressObserver, snapshot models.ConversionProgress) {
	for _, observer := range observers {
		observer.Publish(snapshot)
	}
}
