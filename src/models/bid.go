package models

import "time"

// FeeBasis is the event dimension a fee scales with. Only per_uom fees
// fold into the per-unit normalized price; per_uplift and per_delivery
// fees are event charges and are reported separately.
type FeeBasis string

const (
	FeeBasisPerUplift   FeeBasis = "per_uplift"
	FeeBasisPerDelivery FeeBasis = "per_delivery"
	FeeBasisPerUOM      FeeBasis = "per_uom"
)

// IsPerUnit reports whether a fee on this basis belongs in the per-unit
// total. An empty basis is treated as per_uom for backward compatibility.
func (b FeeBasis) IsPerUnit() bool {
	return b == FeeBasisPerUOM || b == ""
}

// Note is the human-readable annotation attached to fees on an
// event basis, e.g. "(per uplift)". Per-unit fees carry no note.
func (b FeeBasis) Note() string {
	switch b {
	case FeeBasisPerUplift:
		return "(per uplift)"
	case FeeBasisPerDelivery:
		return "(per delivery)"
	default:
		return ""
	}
}

// PriceType distinguishes fixed prices from index-linked ones.
type PriceType string

const (
	PriceTypeFixed        PriceType = "fixed"
	PriceTypeIndexFormula PriceType = "index_formula"
)

// PricedRecord is one fuel bid as submitted, priced in the vendor's own
// currency and unit of measure.
type PricedRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Currency string `json:"currency"`
	UOM      string `json:"uom"`

	PriceType PriceType `json:"price_type,omitempty"`
	BasePrice float64   `json:"base_price"`

	// Index differential, only meaningful for index-linked bids. It may
	// be quoted in a different currency/unit than the base price.
	IndexDifferential    float64 `json:"index_differential,omitempty"`
	DifferentialCurrency string  `json:"differential_currency,omitempty"`
	DifferentialUnit     string  `json:"differential_unit,omitempty"`

	// Flat fees with their bases. Fees are currency amounts; unit
	// conversion does not apply to them.
	IntoPlaneFee      float64  `json:"into_plane_fee,omitempty"`
	IntoPlaneFeeBasis FeeBasis `json:"into_plane_fee_basis,omitempty"`
	HandlingFee       float64  `json:"handling_fee,omitempty"`
	HandlingFeeBasis  FeeBasis `json:"handling_fee_basis,omitempty"`
	OtherFee          float64  `json:"other_fee,omitempty"`
	OtherFeeBasis     FeeBasis `json:"other_fee_basis,omitempty"`

	IncludesTaxes bool `json:"includes_taxes,omitempty"`
}

// ConversionStatus is the per-bid state machine value. Terminal states
// are final for one run; a new run always starts fresh at pending.
type ConversionStatus string

const (
	StatusPending    ConversionStatus = "pending"
	StatusConverting ConversionStatus = "converting"
	StatusCompleted  ConversionStatus = "completed"
	StatusError      ConversionStatus = "error"
)

// ConvertedBid is a PricedRecord augmented with one ConversionResult per
// convertible field and the normalized totals. It is produced per
// conversion run and never persisted as the system of record.
type ConvertedBid struct {
	PricedRecord

	BasePriceResult    *ConversionResult `json:"base_price_result,omitempty"`
	DifferentialResult *ConversionResult `json:"differential_result,omitempty"`
	IntoPlaneFeeResult *ConversionResult `json:"into_plane_fee_result,omitempty"`
	HandlingFeeResult  *ConversionResult `json:"handling_fee_result,omitempty"`
	OtherFeeResult     *ConversionResult `json:"other_fee_result,omitempty"`

	ConversionStatus ConversionStatus `json:"conversion_status"`
	StatusMessage    string           `json:"status_message,omitempty"`

	NormalizedTotalBeforeTax float64 `json:"normalized_total_before_tax"`
	NormalizedTotalWithTax   float64 `json:"normalized_total_with_tax"`

	// Human-readable notes for fees excluded from the per-unit total,
	// keyed by field name.
	FeeNotes map[string]string `json:"fee_notes,omitempty"`

	LastConvertedAt time.Time `json:"last_converted_at"`
}

// ConversionTarget is the base currency/unit pair everything is
// normalized onto, chosen per tender or contract.
type ConversionTarget struct {
	Currency string `json:"baseCurrency"`
	UOM      string `json:"baseUom"`
}

// ConversionProgress tracks a batch run. Completed never decreases and
// Errors never shrinks within one run.
type ConversionProgress struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Current   string   `json:"current,omitempty"`
	Errors    []string `json:"errors"`
}

// Snapshot returns a copy safe to hand to observers while the run
// keeps mutating the original.
func (p *ConversionProgress) Snapshot() ConversionProgress {
	cp := *p
	cp.Errors = append([]string(nil), p.Errors...)
	return cp
}

// BidConversionResult is the outcome of one orchestrator run.
type BidConversionResult struct {
	ConvertedBids []ConvertedBid     `json:"convertedBids"`
	Progress      ConversionProgress `json:"progress"`
}
