package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dansever/fleet-ai-sub002/src/models"
)

// Define common service errors
var (
	// ErrNoBids is returned when a batch request carries no bids.
	ErrNoBids = errors.New("no bids to convert")
	// ErrMissingTarget is returned when the tender's base currency or
	// base unit is missing.
	ErrMissingTarget = errors.New("tender base currency and base unit are required")
)

// ProviderMeta is the optional detail block of a provider response.
type ProviderMeta struct {
	ExchangeRate float64 `json:"exchangeRate,omitempty"`
	Precision    int     `json:"precision,omitempty"`
	Source       string  `json:"source,omitempty"`
}

// ProviderResult is the structured result of a natural-language
// conversion instruction.
type ProviderResult struct {
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	Explanation string       `json:"explanation"`
	Meta        ProviderMeta `json:"meta"`
}

// ProviderError is a structured rejection reported by the provider
// itself, as opposed to a transport or parse failure.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected conversion: %s (%s)", e.Message, e.Code)
}

// Provider is the natural-language conversion collaborator (an
// LLM-backed agent). It handles conversions the scalar backend cannot,
// primarily currency exchange. Instructions are single sentences of the
// form "Convert {value} {from} to {to}".
type Provider interface {
	Convert(ctx context.Context, instruction string) (*ProviderResult, error)
}

// ProgressObserver receives progress snapshots during a batch run. Each
// snapshot is a copy; observers never see the run's mutable state.
type ProgressObserver interface {
	Publish(progress models.ConversionProgress)
}

// ProgressObserverFunc adapts a function to the ProgressObserver interface.
type ProgressObserverFunc func(progress models.ConversionProgress)

func (f ProgressObserverFunc) Publish(progress models.ConversionProgress) { f(progress) }
