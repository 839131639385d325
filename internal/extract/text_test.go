package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAmountFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"yen sign", "支付成功 ¥35.50 星巴克", 35.5},
		{"yuan suffix", "合计128元", 128},
		{"labelled amount", "金额: 99.90", 99.9},
		{"labelled total", "合计: 45.00 谢谢惠顾", 45},
		{"english total", "Total: 12.34", 12.34},
		{"fullwidth digits", "金额：３５．５０", 35.5},
		{"first match wins", "¥10.00 合计: 20.00", 10},
		{"no amount", "欢迎光临", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountFromText(tt.text))
		})
	}
}

func TestMerchantFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"labelled payee", "收款方: 星巴克咖啡 金额: 35", "星巴克咖啡"},
		{"labelled store", "商户: 全家便利店", "全家便利店"},
		{"labelled shop", "店铺: 小米之家", "小米之家"},
		{"english merchant", "merchant: Starbucks", "Starbucks"},
		{"no label", "随便一行文字", "unknown merchant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MerchantFromText(tt.text))
		})
	}
}

func TestTimestampFromText(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"full datetime", "交易时间 2026-03-10 08:15:30", "2026-03-10T08:15:30Z"},
		{"slash separators", "2026/03/10 08:15:30 支付成功", "2026-03-10T08:15:30Z"},
		{"date only", "日期: 2026-03-10", "2026-03-10T00:00:00Z"},
		{"time only anchored to today", "08:15:30 消费", "2026-03-15T08:15:30Z"},
		{"nothing", "欢迎光临", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimestampFromText(tt.text, now))
		})
	}
}

func TestNormalizeOCRText(t *testing.T) {
	assert.Equal(t, "金额:35.50", NormalizeOCRText("金额：３５．５０"))
}
