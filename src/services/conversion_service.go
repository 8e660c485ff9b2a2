package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dansever/fleet-ai-sub002/src/models"
	"github.com/dansever/fleet-ai-sub002/src/units"
	"github.com/dansever/fleet-ai-sub002/src/utils"
)

// sigDigits is the significant-digit precision applied to converted
// values, chosen so repeated round-trips are stable.
const sigDigits = 10

// ConversionService performs scalar, rate and currency conversions. It
// delegates dimensional math to the scalar backend and currency
// exchange to the natural-language provider.
type ConversionService struct {
	backend  units.ScalarConverter
	provider Provider
}

func NewConversionService(backend units.ScalarConverter, provider Provider) *ConversionService {
	return &ConversionService{backend: backend, provider: provider}
}

// ConvertScalar converts value between two units of the same
// measurement category.
func (s *ConversionService) ConvertScalar(value float64, fromUnit, toUnit string) *models.ConversionResult {
	from := units.Normalize(fromUnit)
	to := units.Normalize(toUnit)

	if from == to {
		return models.NewSuccessResult(value, to,
			fmt.Sprintf("Converted %g %s → %g %s", value, from, value, to),
			&models.ConversionMeta{Rate: 1, Precision: sigDigits})
	}

	converted, err := s.convertWithChains(value, from, to)
	if err != nil {
		return models.NewFailureResult(models.ErrCodeConversion, err.Error(), categorySuggestion(from, to))
	}

	rounded := utils.RoundSig(converted, sigDigits)
	return models.NewSuccessResult(rounded, to,
		fmt.Sprintf("Converted %g %s → %g %s", value, from, rounded, to),
		&models.ConversionMeta{Precision: sigDigits})
}

// convertWithChains delegates to the backend, special-casing the fixed
// two-hop chains the backend cannot do natively. There is no generic
// multi-hop solver; any other unsupported pair fails.
func (s *ConversionService) convertWithChains(value float64, from, to string) (float64, error) {
	// mi/min is reached through mph: one hop to mph, then the fixed
	// per-hour to per-minute step.
	if to == "mi/min" {
		mph, err := s.backend.Convert(value, from, "mph")
		if err != nil {
			return 0, err
		}
		return mph / 60, nil
	}
	if from == "mi/min" {
		return s.backend.Convert(value*60, "mph", to)
	}
	return s.backend.Convert(value, from, to)
}

// ConvertRate converts a CURRENCY/UNIT rate onto another CURRENCY/UNIT
// pair: the denominator leg goes through the scalar backend, the
// currency leg through the provider. Same-currency requests never call
// the provider.
func (s *ConversionService) ConvertRate(ctx context.Context, value float64, fromRate, toRate string) *models.ConversionResult {
	fromCur, fromDenom, err := splitRate(fromRate)
	if err != nil {
		return models.NewFailureResult(models.ErrCodeInvalidRateFormat,
			fmt.Sprintf("invalid rate %q: %v", fromRate, err),
			"Use the CURRENCY/UNIT form, e.g. USD/gal")
	}
	toCur, toDenom, err := splitRate(toRate)
	if err != nil {
		return models.NewFailureResult(models.ErrCodeInvalidRateFormat,
			fmt.Sprintf("invalid rate %q: %v", toRate, err),
			"Use the CURRENCY/UNIT form, e.g. USD/gal")
	}

	// Denominator leg. One unit of the target denominator expressed in
	// source denominators, so USD/USG → USD/L multiplies by ~0.2642.
	unitFactor := 1.0
	if fromDenom != toDenom {
		denomResult := s.ConvertScalar(1, toDenom, fromDenom)
		if !denomResult.Succeeded() {
			return models.NewFailureResult(models.ErrCodeRateConversion,
				fmt.Sprintf("cannot convert rate denominator %s → %s: %s", fromDenom, toDenom, denomResult.Message),
				denomResult.Suggestion)
		}
		unitFactor = denomResult.Value
	}

	// Currency leg.
	currencyFactor := 1.0
	source := ""
	if fromCur != toCur {
		currencyResult := s.ConvertCurrency(ctx, 1, fromCur, toCur)
		if !currencyResult.Succeeded() {
			return currencyResult
		}
		currencyFactor = currencyResult.Value
		if currencyResult.Meta != nil {
			source = currencyResult.Meta.Source
		}
	}

	factor := unitFactor * currencyFactor
	converted := utils.RoundSig(value*factor, sigDigits)
	unit := toCur + "/" + toDenom
	return models.NewSuccessResult(converted, unit,
		fmt.Sprintf("Converted %g %s/%s → %g %s", value, fromCur, fromDenom, converted, unit),
		&models.ConversionMeta{Rate: factor, Precision: sigDigits, Source: source})
}

// ConvertCurrency converts an amount between two currencies via the
// provider. Same-currency requests short-circuit to a factor of 1.
func (s *ConversionService) ConvertCurrency(ctx context.Context, value float64, fromCurrency, toCurrency string) *models.ConversionResult {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == "" || to == "" {
		return models.NewFailureResult(models.ErrCodeInvalidInput,
			"currency codes must not be empty", "Provide ISO currency codes, e.g. USD or EUR")
	}

	if from == to {
		return models.NewSuccessResult(value, to,
			fmt.Sprintf("Same currency (%s); no conversion needed", to),
			&models.ConversionMeta{Rate: 1, Source: "identity"})
	}

	instruction := fmt.Sprintf("Convert %g %s to %s", value, from, to)
	result, err := s.provider.Convert(ctx, instruction)
	if err != nil {
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			return models.NewFailureResult(models.ErrCodeCurrencyConversion,
				provErr.Message,
				fmt.Sprintf("Check that %s and %s are valid currency codes", from, to))
		}
		return models.NewFailureResult(models.ErrCodeAgent, err.Error(),
			"Check that the conversion provider is reachable and returning valid JSON")
	}

	unit := result.Unit
	if unit == "" {
		unit = to
	}
	explanation := result.Explanation
	if explanation == "" {
		explanation = fmt.Sprintf("Converted %g %s → %g %s", value, from, result.Value, unit)
	}
	return models.NewSuccessResult(utils.RoundSig(result.Value, sigDigits), unit, explanation,
		&models.ConversionMeta{
			Rate:      result.Meta.ExchangeRate,
			Precision: result.Meta.Precision,
			Source:    result.Meta.Source,
		})
}

// splitRate splits a CURRENCY/UNIT string. Both sides must be
// non-empty; the numerator passes through as an upper-cased currency
// code, the denominator is normalized to its canonical unit symbol.
func splitRate(rateStr string) (currency, denom string, err error) {
	parts := strings.Split(strings.TrimSpace(rateStr), "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("expected exactly one CURRENCY/UNIT separator")
	}
	return strings.ToUpper(strings.TrimSpace(parts[0])), units.Normalize(parts[1]), nil
}

// categorySuggestion builds the actionable hint attached to failed
// scalar conversions: the first category list containing either input
// unit, in the fixed category order.
func categorySuggestion(from, to string) string {
	for _, cat := range units.Categories() {
		list := units.CanonicalUnits(cat)
		for _, u := range list {
			if u == from || u == to {
				matched := from
				if u == to {
					matched = to
				}
				return fmt.Sprintf("%q is a %s unit; supported %s units: %s",
					matched, cat, cat, strings.Join(list, ", "))
			}
		}
	}
	return "Neither unit is recognized; see the supported unit list"
}
