package utils

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"
)

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// NormalizePhone strips formatting and prefixes the country code for local
// nine-digit mobile numbers ("987 654 321" -> "51987654321").
func NormalizePhone(phone string, countryCode string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, countryCode) && len(digits) > len(countryCode)+8 {
		return digits
	}
	return countryCode + strings.TrimLeft(digits, "0")
}
