// Package extract holds the shared extraction heuristics that turn
// loosely-typed provider output into typed fields. Every adapter applies the
// same rules so downstream normalization sees a uniform shape regardless of
// which backend answered.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pocketledger/expense-cli/internal/model"
)

// ParseLoose decodes a provider reply into a generic object. It tries a
// strict JSON parse first, then falls back to the first brace-delimited
// object in the text (chat models often wrap JSON in prose or code fences).
func ParseLoose(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil, eris.New("extract: no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return nil, eris.Wrap(err, "extract: parse embedded object")
	}
	return obj, nil
}

// Amount takes the first of several candidate keys, strips everything but
// digits and the decimal point, and parses. Parse failures and negative
// values yield 0.
func Amount(data map[string]any) float64 {
	raw, ok := firstPresent(data, "amount", "money", "price", "total")
	if !ok {
		return 0
	}

	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil || f < 0 {
			return 0
		}
		return f
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, v)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	return 0
}

// Confidence takes a candidate key or defaults to 0.5, clamped to [0,1].
func Confidence(data map[string]any) float64 {
	raw, ok := firstPresent(data, "confidence", "score")
	if !ok {
		return 0.5
	}
	f, ok := asFloat(raw)
	if !ok {
		return 0.5
	}
	return Clamp01(f)
}

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Timestamp takes the first present candidate key; otherwise the supplied
// standardization time is formatted as RFC 3339.
func Timestamp(data map[string]any, now time.Time) string {
	raw, ok := firstPresent(data, "timestamp", "time", "date")
	if ok {
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return now.UTC().Format(time.RFC3339)
}

// Category takes the first present candidate key or defaults to "Other".
func Category(data map[string]any) string {
	return firstString(data, "Other", "category", "type", "classification")
}

// Merchant takes the first present candidate key or defaults to
// "unknown merchant".
func Merchant(data map[string]any) string {
	return firstString(data, "unknown merchant", "merchant", "store", "shop", "vendor")
}

// Description takes the first present candidate key or defaults to empty.
func Description(data map[string]any) string {
	return firstString(data, "", "description", "note", "memo", "remark")
}

// Suggestions collects alternative-category suggestions if present.
func Suggestions(data map[string]any) []string {
	raw, ok := firstPresent(data, "suggestions", "alternatives")
	if !ok {
		return nil
	}
	list, isList := raw.([]any)
	if !isList {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, isStr := item.(string); isStr {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Standardize applies all heuristics to a parsed provider reply and produces
// the common result shape. NeedsConfirmation follows the default policy
// (confidence below the confirmation threshold).
func Standardize(data map[string]any, method model.InputMethod, providerName string, now time.Time) *model.StandardizedResult {
	conf := Confidence(data)
	raw, _ := json.Marshal(data)
	return &model.StandardizedResult{
		Amount:            Amount(data),
		Category:          Category(data),
		Merchant:          Merchant(data),
		Description:       Description(data),
		Timestamp:         Timestamp(data, now),
		Confidence:        conf,
		InputMethod:       method,
		RawData:           raw,
		Suggestions:       Suggestions(data),
		NeedsConfirmation: conf < model.ConfirmationThreshold,
		Provider:          providerName,
	}
}

// DefaultResult is the minimal low-confidence result substituted when a
// provider reply cannot be parsed into a structured object. Adapters treat it
// as a soft success: a structurally broken reply will not be fixed by
// retrying.
func DefaultResult(method model.InputMethod, providerName string, now time.Time) *model.StandardizedResult {
	return &model.StandardizedResult{
		Amount:            0,
		Category:          "Other",
		Merchant:          "unknown merchant",
		Description:       "",
		Timestamp:         now.UTC().Format(time.RFC3339),
		Confidence:        0.1,
		InputMethod:       method,
		NeedsConfirmation: true,
		Provider:          providerName,
	}
}

func firstPresent(data map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(data map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fallback
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
