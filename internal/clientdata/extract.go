// Package clientdata pulls structured customer facts out of free-form chat
// messages so the assistant does not re-ask for information the customer has
// already volunteered. Extraction is keyword based and intentionally
// conservative: a miss costs one extra question, a false positive pollutes
// the stored profile.
package clientdata

import (
	"regexp"
	"strings"
)

var brands = []string{"volkswagen", "vw", "toyota", "chevrolet", "ford", "nissan", "hyundai", "kia"}

var models = []string{"gol", "corolla", "aveo", "fiesta", "sentra", "accent", "rio"}

var comunas = []string{"la florida", "florida", "curicó", "curico", "santiago", "maipu", "las condes"}

// Years 1990 through 2029, matched as standalone tokens.
var yearRe = regexp.MustCompile(`\b(19[9]\d|20[0-2]\d)\b`)

// Extract scans a message for known customer facts. Keys match the CRM's
// Spanish field names (marca, modelo, año, combustible, start_stop, comuna).
func Extract(message string) map[string]string {
	lower := strings.ToLower(message)
	extracted := map[string]string{}

	for _, brand := range brands {
		if strings.Contains(lower, brand) {
			extracted["marca"] = title(brand)
			break
		}
	}

	for _, model := range models {
		if strings.Contains(lower, model) {
			extracted["modelo"] = title(model)
			break
		}
	}

	if m := yearRe.FindString(message); m != "" {
		extracted["año"] = m
	}

	if containsAny(lower, "bencinero", "gasolina", "nafta") {
		extracted["combustible"] = "Bencinero"
	} else if containsAny(lower, "diesel", "diésel") {
		extracted["combustible"] = "Diesel"
	}

	if containsAny(lower, "start stop", "start-stop", "startstop") {
		if containsAny(lower, "no", "sin", "no tiene") {
			extracted["start_stop"] = "No"
		} else {
			extracted["start_stop"] = "Sí"
		}
	}

	for _, comuna := range comunas {
		if strings.Contains(lower, comuna) {
			extracted["comuna"] = title(comuna)
			break
		}
	}

	return extracted
}

// MissingFields returns the required field names absent or empty in data.
func MissingFields(data map[string]string, required []string) []string {
	var missing []string
	for _, field := range required {
		if data[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// title uppercases the first letter of each space-separated word. ASCII only,
// which covers the keyword lists above.
func title(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
