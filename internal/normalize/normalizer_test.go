package normalize

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/expense-cli/internal/model"
)

func newTestNormalizer(opts ...Option) *Normalizer {
	base := []Option{
		WithNowFunc(func() time.Time {
			return time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
		}),
		WithIDFunc(func(now time.Time) string {
			return fmt.Sprintf("expense_%d_testsuff", now.UnixMilli())
		}),
	}
	return New(append(base, opts...)...)
}

func TestNormalizeBasicRecord(t *testing.T) {
	n := newTestNormalizer()

	record := n.Normalize(&model.StandardizedResult{
		Amount:      35.008,
		Category:    "餐饮",
		Merchant:    "星巴克旗舰店",
		Description: "coffee",
		Timestamp:   "2026-03-15T09:15:00Z",
		Confidence:  0.92,
		InputMethod: model.InputText,
	})

	assert.Equal(t, 35.01, record.Amount)
	assert.Equal(t, CategoryFood, record.Category)
	assert.Equal(t, "星巴克", record.Merchant)
	assert.Equal(t, "CNY", record.Currency)
	assert.True(t, record.Verified)
	assert.Equal(t, model.SyncPending, record.SyncStatus)
	assert.Empty(t, record.Anomaly)
	assert.NotEmpty(t, record.ID)

	assert.True(t, record.HasTag(TagTextInput))
	assert.True(t, record.HasTag(TagMorning))
	assert.True(t, record.HasTag("coffee"))
}

func TestAmountValidation(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"negative becomes zero", -5, 0},
		{"nan becomes zero", math.NaN(), 0},
		{"inf becomes zero", math.Inf(1), 0},
		{"rounds down", 12.342, 12.34},
		{"rounds up", 12.348, 12.35},
		{"exact passes through", 99.99, 99.99},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := n.Normalize(&model.StandardizedResult{Amount: tt.in, Confidence: 0.9, InputMethod: model.InputText})
			assert.Equal(t, tt.want, record.Amount)
		})
	}
}

func TestCategoryNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"餐饮", CategoryFood},
		{"dining", CategoryFood},
		{"出行", CategoryTransport},
		{"Transport", CategoryTransport}, // canonical passes through
		{"Food", CategoryFood},
		{"nonsense", CategoryOther}, // unknown non-canonical defaults
		{"", CategoryOther},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			record := n.Normalize(&model.StandardizedResult{
				Amount: 50, Category: tt.in, Merchant: "somewhere", Confidence: 0.9,
				InputMethod: model.InputText,
			})
			assert.Equal(t, tt.want, record.Category)
		})
	}
}

func TestMerchantNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips flagship suffix", "小米旗舰店", "小米"},
		{"strips company suffix", "海底捞有限公司", "海底捞"},
		{"strips city qualifier", "华为(深圳)", "华为"},
		{"strips english suffix", "Acme Co., Ltd.", "Acme"},
		{"multiple suffixes in order", "苹果专营店", "苹果"},
		{"empty becomes unknown", "   ", "unknown merchant"},
		{"plain name untouched", "全家便利店", "全家便利店"},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := n.Normalize(&model.StandardizedResult{
				Amount: 50, Merchant: tt.in, Confidence: 0.9, InputMethod: model.InputText,
			})
			assert.Equal(t, tt.want, record.Merchant)
		})
	}
}

func TestMerchantCategoryOverride(t *testing.T) {
	n := newTestNormalizer()

	// The synonym table would keep this as Shopping, but the brand keyword
	// wins.
	record := n.Normalize(&model.StandardizedResult{
		Amount: 42, Category: "购物", Merchant: "滴滴出行", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Equal(t, CategoryTransport, record.Category)
	assert.True(t, record.HasTag("ride-hailing"))
}

func TestAmountBucketTags(t *testing.T) {
	n := newTestNormalizer()

	large := n.Normalize(&model.StandardizedResult{Amount: 1500, Confidence: 0.9, InputMethod: model.InputText})
	assert.True(t, large.HasTag(TagLargeAmount))

	small := n.Normalize(&model.StandardizedResult{Amount: 5, Confidence: 0.9, InputMethod: model.InputText})
	assert.True(t, small.HasTag(TagSmallAmount))

	mid := n.Normalize(&model.StandardizedResult{Amount: 500, Confidence: 0.9, InputMethod: model.InputText})
	assert.False(t, mid.HasTag(TagLargeAmount))
	assert.False(t, mid.HasTag(TagSmallAmount))
}

func TestTimeOfDayTags(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{7, TagMorning},
		{11, TagMorning},
		{12, TagAfternoon},
		{17, TagAfternoon},
		{18, TagEvening},
		{23, TagEvening},
		{0, TagLateNight},
		{5, TagLateNight},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			ts := fmt.Sprintf("2026-03-15T%02d:10:00Z", tt.hour)
			record := n.Normalize(&model.StandardizedResult{
				Amount: 50, Timestamp: ts, Confidence: 0.9, InputMethod: model.InputText,
			})
			assert.True(t, record.HasTag(tt.want), "hour %d should carry %s", tt.hour, tt.want)
		})
	}
}

func TestReimbursableTag(t *testing.T) {
	n := newTestNormalizer()

	record := n.Normalize(&model.StandardizedResult{
		Amount: 200, Description: "团建聚餐，需要发票", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.True(t, record.HasTag(TagReimbursable))

	english := n.Normalize(&model.StandardizedResult{
		Amount: 200, Description: "team dinner, invoice required", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.True(t, english.HasTag(TagReimbursable))
}

func TestTagDeduplication(t *testing.T) {
	// Starbucks matches two brand keywords ("星巴克" and "starbucks") but the
	// coffee tag must appear once.
	n := newTestNormalizer()
	record := n.Normalize(&model.StandardizedResult{
		Amount: 35, Merchant: "星巴克starbucks", Confidence: 0.9,
		InputMethod: model.InputText,
	})

	count := 0
	for _, tag := range record.Tags {
		if tag == "coffee" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAnomalyPrecedence(t *testing.T) {
	n := newTestNormalizer()

	high := n.Normalize(&model.StandardizedResult{
		Amount: 15000, Timestamp: "2026-03-15T14:00:00Z", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Equal(t, AnomalyHighValue, high.Anomaly)

	// High value wins even in late-night hours.
	highNight := n.Normalize(&model.StandardizedResult{
		Amount: 15000, Timestamp: "2026-03-15T03:00:00Z", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Equal(t, AnomalyHighValue, highNight.Anomaly)

	zero := n.Normalize(&model.StandardizedResult{
		Amount: 0, Timestamp: "2026-03-15T14:00:00Z", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Equal(t, AnomalyZeroAmount, zero.Anomaly)

	lateNight := n.Normalize(&model.StandardizedResult{
		Amount: 600, Timestamp: "2026-03-15T03:00:00Z", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Equal(t, AnomalyLateNightHighValue, lateNight.Anomaly)

	none := n.Normalize(&model.StandardizedResult{
		Amount: 600, Timestamp: "2026-03-15T14:00:00Z", Confidence: 0.9,
		InputMethod: model.InputText,
	})
	assert.Empty(t, none.Anomaly)
}

func TestVerifiedThreshold(t *testing.T) {
	n := newTestNormalizer()

	over := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.81, InputMethod: model.InputText})
	assert.True(t, over.Verified)

	at := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.8, InputMethod: model.InputText})
	assert.False(t, at.Verified, "threshold is strict")

	under := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.5, InputMethod: model.InputText})
	assert.False(t, under.Verified)
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer()

	first := n.Normalize(&model.StandardizedResult{
		Amount:      128.567,
		Category:    "吃饭",
		Merchant:    "海底捞(上海)有限公司",
		Description: "晚餐，要发票",
		Timestamp:   "2026-03-15T19:45:00Z",
		Confidence:  0.87,
		InputMethod: model.InputReceipt,
	})

	second := n.Normalize(&model.StandardizedResult{
		Amount:      first.Amount,
		Category:    first.Category,
		Merchant:    first.Merchant,
		Description: first.Description,
		Timestamp:   first.Timestamp,
		Confidence:  first.Confidence,
		InputMethod: first.InputMethod,
	})

	assert.Equal(t, first.Amount, second.Amount)
	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Merchant, second.Merchant)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.ElementsMatch(t, first.Tags, second.Tags)
	assert.Equal(t, first.Anomaly, second.Anomaly)
	assert.Equal(t, first.Verified, second.Verified)
}

func TestCustomCurrency(t *testing.T) {
	n := newTestNormalizer(WithCurrency("USD"))
	record := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.9, InputMethod: model.InputText})
	assert.Equal(t, "USD", record.Currency)
}

func TestGeneratedIDShape(t *testing.T) {
	n := New(WithNowFunc(func() time.Time {
		return time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	}))
	record := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.9, InputMethod: model.InputText})
	require.Regexp(t, `^expense_\d+_[0-9a-f-]{8}$`, record.ID)

	other := n.Normalize(&model.StandardizedResult{Amount: 10, Confidence: 0.9, InputMethod: model.InputText})
	assert.NotEqual(t, record.ID, other.ID)
}
