package utils

import (
	"encoding/json"
	"math"
	"net/http"
)

// JSONErrorResponse is the standard error body returned by handlers.
type JSONErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SendJSONError writes a JSON error body with the given status code.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(JSONErrorResponse{Success: false, Error: message})
}

// RoundFloat rounds val to the given number of decimal places.
func RoundFloat(val float64, places int) float64 {
	ratio := math.Pow(10, float64(places))
	return math.Round(val*ratio) / ratio
}

// RoundSig rounds val to the given number of significant decimal
// digits. Chosen so repeated round-trip conversions stay stable.
func RoundSig(val float64, digits int) float64 {
	if val == 0 || math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	magnitude := math.Ceil(math.Log10(math.Abs(val)))
	power := float64(digits) - magnitude
	ratio := math.Pow(10, power)
	return math.Round(val*ratio) / ratio
}
