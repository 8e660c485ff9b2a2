package models

// ErrorCode classifies a failed conversion.
type ErrorCode string

const (
	ErrCodeConversion         ErrorCode = "CONVERSION_ERROR"
	ErrCodeInvalidRateFormat  ErrorCode = "INVALID_RATE_FORMAT"
	ErrCodeRateConversion     ErrorCode = "RATE_CONVERSION_ERROR"
	ErrCodeAgent              ErrorCode = "AGENT_ERROR"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeCurrencyConversion ErrorCode = "CURRENCY_CONVERSION_ERROR"
)

// ConversionRequest describes one scalar or rate conversion.
// For rate requests, FromRateUnit/ToRateUnit are strings of the form
// "CURRENCY/UNIT" and must split on "/" into exactly two non-empty parts.
type ConversionRequest struct {
	Value        float64 `json:"value"`
	FromUnit     string  `json:"from_unit"`
	ToUnit       string  `json:"to_unit"`
	IsRate       bool    `json:"is_rate"`
	FromRateUnit string  `json:"from_rate_unit,omitempty"`
	ToRateUnit   string  `json:"to_rate_unit,omitempty"`
}

// ConversionMeta carries optional detail about how a conversion was computed.
type ConversionMeta struct {
	Rate      float64 `json:"rate,omitempty"`
	Precision int     `json:"precision,omitempty"`
	Source    string  `json:"source,omitempty"`
}

// ConversionResult is the outcome of a single conversion call. It is
// created once per call and never mutated afterwards. OK selects
// between the success fields (Value, Unit, Explanation, Meta) and the
// failure fields (ErrorCode, Message, Suggestion).
type ConversionResult struct {
	OK          bool            `json:"ok"`
	Value       float64         `json:"value,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Meta        *ConversionMeta `json:"meta,omitempty"`
	ErrorCode   ErrorCode       `json:"error_code,omitempty"`
	Message     string          `json:"message,omitempty"`
	Suggestion  string          `json:"suggestion,omitempty"`
}

// Succeeded reports whether the result carries a converted value.
func (r *ConversionResult) Succeeded() bool {
	return r != nil && r.OK
}

// NewSuccessResult builds the success branch of a ConversionResult.
func NewSuccessResult(value float64, unit, explanation string, meta *ConversionMeta) *ConversionResult {
	return &ConversionResult{
		OK:          true,
		Value:       value,
		Unit:        unit,
		Explanation: explanation,
		Meta:        meta,
	}
}

// NewFailureResult builds the failure branch of a ConversionResult.
func NewFailureResult(code ErrorCode, message, suggestion string) *ConversionResult {
	return &ConversionResult{
		OK:         false,
		ErrorCode:  code,
		Message:    message,
		Suggestion: suggestion,
	}
}
