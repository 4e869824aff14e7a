// Package normalize provides field-level normalization for raw catalog values.
//
// Nothing in this package returns an error or panics. The tolerant parsers
// (Int, Float, Bool) degrade unparseable input to the documented default so
// that a single bad cell can never abort ingestion of an otherwise usable row;
// recording the degradation is the caller's responsibility. The Try variants
// report success instead, for fields where a caller must distinguish a parsed
// zero from garbage.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// truthyTokens are the values Bool accepts as true, compared after Text
// canonicalization. Spanish feed files use "Sí"/"Verdadero"/"V" alongside the
// usual English spellings.
var truthyTokens = map[string]struct{}{
	"si":        {},
	"yes":       {},
	"true":      {},
	"1":         {},
	"verdadero": {},
	"v":         {},
}

// Text trims, lowercases and strips diacritics so that every downstream
// comparison, exact or fuzzy, operates on canonical text. Empty input yields
// the empty string.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	// NFD exposes combining marks, which are then removed and the rest
	// recomposed. The transformer chain carries internal buffers, so a fresh
	// chain is built per call rather than shared across goroutines.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Bool reports whether s is a truthy token. Matching is case and accent
// insensitive ("Sí", "SI" and "si" are all true). Anything outside the truthy
// set, including the empty string, is false.
func Bool(s string) bool {
	_, ok := truthyTokens[Text(s)]
	return ok
}

// Int parses a tolerant integer: thousands separators (commas, inner spaces)
// are stripped and decimal strings are truncated toward zero ("12.34" parses
// as 12). On failure it returns def.
func Int(s string, def int) int {
	if n, ok := TryInt(s); ok {
		return n
	}
	return def
}

// TryInt is Int with an explicit success report instead of a default.
func TryInt(s string) (int, bool) {
	cleaned := stripSeparators(s)
	if cleaned == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(cleaned); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// Float parses a tolerant float with thousands separators stripped
// ("461,999.0" parses as 461999.0). On failure it returns def.
func Float(s string, def float64) float64 {
	if f, ok := TryFloat(s); ok {
		return f
	}
	return def
}

// TryFloat is Float with an explicit success report instead of a default.
func TryFloat(s string) (float64, bool) {
	cleaned := stripSeparators(s)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func stripSeparators(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.NewReplacer(",", "", " ", "").Replace(s)
}

// Dimensions is the exterior dimensions record optionally carried by a
// vehicle, in meters.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// dimensionKeys maps accepted JSON keys to their canonical dimension. Feed
// files written in Spanish use largo/ancho/alto.
var dimensionKeys = map[string]string{
	"length": "length",
	"largo":  "length",
	"width":  "width",
	"ancho":  "width",
	"height": "height",
	"alto":   "height",
}

// ParseDimensions parses a JSON-encoded dimensions object. Malformed or empty
// input yields ok=false, never an error: dimensions are a soft-fail field and
// must not reject the row that carries them.
func ParseDimensions(s string) (Dimensions, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dimensions{}, false
	}
	var raw map[string]json.Number
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Dimensions{}, false
	}
	var d Dimensions
	var found bool
	for key, num := range raw {
		canonical, ok := dimensionKeys[Text(key)]
		if !ok {
			continue
		}
		val, err := num.Float64()
		if err != nil {
			continue
		}
		found = true
		switch canonical {
		case "length":
			d.Length = val
		case "width":
			d.Width = val
		case "height":
			d.Height = val
		}
	}
	if !found {
		return Dimensions{}, false
	}
	return d, true
}
