// Package normalize turns standardized provider results into canonical
// transaction records: amount validation, category and merchant cleanup, tag
// synthesis, and anomaly detection.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pocketledger/expense-cli/internal/model"
)

// Tag values synthesized by the normalizer.
const (
	TagMobilePayment = "mobile-payment"
	TagVoiceInput    = "voice-input"
	TagReceipt       = "paper-receipt"
	TagTextInput     = "text-input"

	TagLargeAmount = "large-amount"
	TagSmallAmount = "small-amount"

	TagMorning   = "morning"
	TagAfternoon = "afternoon"
	TagEvening   = "evening"
	TagLateNight = "late-night"

	TagReimbursable = "reimbursable"
)

// Anomaly labels, at most one per record, first match wins.
const (
	AnomalyHighValue          = "high-value anomaly"
	AnomalyZeroAmount         = "zero-amount anomaly"
	AnomalyLateNightHighValue = "late-night high-value anomaly"
)

// Normalizer converts standardized results into transaction records. It is
// deterministic apart from the generated record ID and safe for concurrent
// use.
type Normalizer struct {
	tables   Tables
	currency string
	nowFunc  func() time.Time
	idFunc   func(now time.Time) string
}

// Option configures the normalizer.
type Option func(*Normalizer)

// WithTables overrides the default lookup tables.
func WithTables(t Tables) Option {
	return func(n *Normalizer) {
		n.tables = t
	}
}

// WithCurrency overrides the default CNY currency code.
func WithCurrency(code string) Option {
	return func(n *Normalizer) {
		if code != "" {
			n.currency = code
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(n *Normalizer) {
		n.nowFunc = fn
	}
}

// WithIDFunc overrides record ID generation, for tests.
func WithIDFunc(fn func(now time.Time) string) Option {
	return func(n *Normalizer) {
		n.idFunc = fn
	}
}

// New creates a normalizer with the default tables and CNY currency.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		tables:   DefaultTables(),
		currency: "CNY",
		nowFunc:  time.Now,
		idFunc:   generateID,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// generateID builds a time-based identifier with a random suffix. Collisions
// are treated as negligible, not guaranteed impossible.
func generateID(now time.Time) string {
	return fmt.Sprintf("expense_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Normalize converts a standardized result into a canonical record. The
// function is total: any input yields a well-formed record. Re-running it on
// its own output changes nothing but the generated ID.
func (n *Normalizer) Normalize(res *model.StandardizedResult) *model.TransactionRecord {
	now := n.nowFunc()

	amount := validateAmount(res.Amount)
	confidence := clamp01(res.Confidence)

	timestamp := strings.TrimSpace(res.Timestamp)
	if timestamp == "" {
		timestamp = now.UTC().Format(time.RFC3339)
	}
	hour := timestampHour(timestamp, now)

	merchant := n.normalizeMerchant(res.Merchant)
	category := n.normalizeCategory(res.Category)
	if override, ok := n.merchantCategory(merchant); ok {
		category = override
	}

	record := &model.TransactionRecord{
		ID:          n.idFunc(now),
		Amount:      amount,
		Category:    category,
		Merchant:    merchant,
		Description: res.Description,
		Timestamp:   timestamp,
		Confidence:  confidence,
		InputMethod: res.InputMethod,
		RawData:     res.RawData,
		Currency:    n.currency,
		Verified:    confidence > model.ConfirmationThreshold,
		SyncStatus:  model.SyncPending,
		CreatedAt:   now,
	}
	record.Tags = n.buildTags(record, hour)
	record.Anomaly = detectAnomaly(amount, hour)
	return record
}

// validateAmount maps non-finite and negative amounts to 0 and rounds to two
// decimal places.
func validateAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeCategory resolves synonyms to canonical categories. A value that
// is already canonical passes through; everything else becomes Other.
func (n *Normalizer) normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return CategoryOther
	}
	if canonical, ok := n.tables.CategorySynonyms[strings.ToLower(category)]; ok {
		return canonical
	}
	if Canonical(category) {
		return category
	}
	return CategoryOther
}

// normalizeMerchant trims the name and strips each known corporate suffix at
// most once, in table order.
func (n *Normalizer) normalizeMerchant(merchant string) string {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return "unknown merchant"
	}
	for _, suffix := range n.tables.MerchantSuffixes {
		if trimmed, ok := strings.CutSuffix(merchant, suffix); ok {
			merchant = strings.TrimSpace(trimmed)
		}
	}
	if merchant == "" {
		return "unknown merchant"
	}
	return merchant
}

// merchantCategory returns a category override when the merchant name
// contains a known brand keyword.
func (n *Normalizer) merchantCategory(merchant string) (string, bool) {
	lower := strings.ToLower(merchant)
	for _, rule := range n.tables.MerchantRules {
		if rule.Category == "" {
			continue
		}
		for _, kw := range rule.Match {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// buildTags synthesizes the full de-duplicated tag set: input method, amount
// bucket, time-of-day bucket, brand keywords, and reimbursement hint.
func (n *Normalizer) buildTags(record *model.TransactionRecord, hour int) []string {
	var tags []string

	switch record.InputMethod {
	case model.InputScreenshot:
		tags = append(tags, TagMobilePayment)
	case model.InputVoice:
		tags = append(tags, TagVoiceInput)
	case model.InputReceipt:
		tags = append(tags, TagReceipt)
	case model.InputText:
		tags = append(tags, TagTextInput)
	}

	if record.Amount > 1000 {
		tags = append(tags, TagLargeAmount)
	} else if record.Amount < 10 {
		tags = append(tags, TagSmallAmount)
	}

	switch {
	case hour >= 6 && hour < 12:
		tags = append(tags, TagMorning)
	case hour >= 12 && hour < 18:
		tags = append(tags, TagAfternoon)
	case hour >= 18 && hour < 24:
		tags = append(tags, TagEvening)
	default:
		tags = append(tags, TagLateNight)
	}

	merchantLower := strings.ToLower(record.Merchant)
	for _, rule := range n.tables.MerchantRules {
		if rule.Tag == "" {
			continue
		}
		for _, kw := range rule.Match {
			if strings.Contains(merchantLower, strings.ToLower(kw)) {
				tags = append(tags, rule.Tag)
				break
			}
		}
	}

	descriptionLower := strings.ToLower(record.Description)
	for _, kw := range n.tables.ReimbursementKeywords {
		if strings.Contains(descriptionLower, strings.ToLower(kw)) {
			tags = append(tags, TagReimbursable)
			break
		}
	}

	return dedupe(tags)
}

// detectAnomaly returns at most one anomaly label; first match wins.
func detectAnomaly(amount float64, hour int) string {
	switch {
	case amount > 10000:
		return AnomalyHighValue
	case amount == 0:
		return AnomalyZeroAmount
	case hour >= 0 && hour < 6 && amount > 500:
		return AnomalyLateNightHighValue
	}
	return ""
}

// timestampHour parses the record timestamp and returns its hour of day,
// falling back to the reference clock for unparsable values.
func timestampHour(timestamp string, now time.Time) int {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, timestamp); err == nil {
			return t.Hour()
		}
	}
	return now.Hour()
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
