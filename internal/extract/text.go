package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// OCR replies are a flat detection list, not structured JSON; the fields are
// recovered from the joined text with tolerant patterns. Fullwidth digits and
// punctuation (common in CJK receipts) are folded to their narrow forms first.

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`¥\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(\d+(?:\.\d{1,2})?)\s*(?:元|yuan)`),
	regexp.MustCompile(`(?i)(?:金额|amount)[：:]\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(?:总计|合计|total)[：:]\s*(\d+(?:\.\d{1,2})?)`),
}

var merchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:收款方|merchant)[：:]\s*(\S+)`),
	regexp.MustCompile(`(?:商户|store)[：:]\s*(\S+)`),
	regexp.MustCompile(`(?:店铺|shop)[：:]\s*(\S+)`),
}

var timePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`(\d{4}[-/]\d{2}[-/]\d{2}\s+\d{2}:\d{2}:\d{2})`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`(\d{4}[-/]\d{2}[-/]\d{2})`), "2006-01-02"},
	{regexp.MustCompile(`(\d{2}:\d{2}:\d{2})`), "15:04:05"},
}

// NormalizeOCRText folds fullwidth characters so the amount and timestamp
// patterns match regardless of the glyph width the OCR engine emitted.
func NormalizeOCRText(text string) string {
	return width.Narrow.String(text)
}

// AmountFromText extracts the first matching amount from OCR text, or 0.
func AmountFromText(text string) float64 {
	text = NormalizeOCRText(text)
	for _, re := range amountPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			f, err := strconv.ParseFloat(m[1], 64)
			if err == nil && f >= 0 {
				return f
			}
		}
	}
	return 0
}

// MerchantFromText extracts a labelled merchant name from OCR text, or the
// locale default when none is found.
func MerchantFromText(text string) string {
	for _, re := range merchantPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	return "unknown merchant"
}

// TimestampFromText extracts the first matching date or time from OCR text
// and returns it as RFC 3339. Time-only matches are anchored to the supplied
// reference date. Returns "" when nothing matches.
func TimestampFromText(text string, now time.Time) string {
	text = NormalizeOCRText(strings.ReplaceAll(text, "/", "-"))
	for _, p := range timePatterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		t, err := time.Parse(p.layout, m[1])
		if err != nil {
			continue
		}
		switch p.layout {
		case "2006-01-02 15:04:05", "2006-01-02":
			return t.UTC().Format(time.RFC3339)
		case "15:04:05":
			anchored := time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			return anchored.Format(time.RFC3339)
		}
	}
	return ""
}
