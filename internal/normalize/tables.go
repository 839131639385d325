package normalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Canonical expense categories. Anything outside this set normalizes to
// CategoryOther.
const (
	CategoryFood          = "Food"
	CategoryShopping      = "Shopping"
	CategoryTransport     = "Transport"
	CategoryEntertainment = "Entertainment"
	CategoryHealthcare    = "Healthcare"
	CategoryEducation     = "Education"
	CategoryUtilities     = "Utilities"
	CategoryTravel        = "Travel"
	CategoryOther         = "Other"
)

// MerchantRule maps brand keywords found in a merchant name to a category
// override and an optional tag. Matching is case-insensitive substring.
type MerchantRule struct {
	Match    []string `yaml:"match"`
	Category string   `yaml:"category,omitempty"`
	Tag      string   `yaml:"tag,omitempty"`
}

// Tables holds the lookup data driving category, merchant, and tag
// normalization. The defaults are bilingual; deployments can override them
// from a YAML file.
type Tables struct {
	// CategorySynonyms maps lowercased free-form category names to canonical
	// values.
	CategorySynonyms map[string]string `yaml:"category_synonyms"`
	// MerchantSuffixes are stripped from the end of merchant names, once per
	// matching suffix, in order.
	MerchantSuffixes []string `yaml:"merchant_suffixes"`
	// MerchantRules refine category and tags from known brand names.
	MerchantRules []MerchantRule `yaml:"merchant_rules"`
	// ReimbursementKeywords in the description mark a record as reimbursable.
	ReimbursementKeywords []string `yaml:"reimbursement_keywords"`
}

// Canonical reports whether the category is one of the closed set.
func Canonical(category string) bool {
	switch category {
	case CategoryFood, CategoryShopping, CategoryTransport, CategoryEntertainment,
		CategoryHealthcare, CategoryEducation, CategoryUtilities, CategoryTravel,
		CategoryOther:
		return true
	}
	return false
}

// DefaultTables returns the built-in lookup data.
func DefaultTables() Tables {
	return Tables{
		CategorySynonyms: map[string]string{
			"食物": CategoryFood,
			"吃饭": CategoryFood,
			"饮食": CategoryFood,
			"餐饮": CategoryFood,
			"dining": CategoryFood,
			"meal":   CategoryFood,

			"购买":  CategoryShopping,
			"买东西": CategoryShopping,
			"消费":  CategoryShopping,
			"购物":  CategoryShopping,

			"出行":  CategoryTransport,
			"交通":  CategoryTransport,
			"交通费": CategoryTransport,

			"娱乐": CategoryEntertainment,
			"玩乐": CategoryEntertainment,

			"医疗": CategoryHealthcare,
			"看病": CategoryHealthcare,

			"学习": CategoryEducation,
			"教育": CategoryEducation,

			"生活":   CategoryUtilities,
			"缴费":   CategoryUtilities,
			"生活缴费": CategoryUtilities,

			"旅游": CategoryTravel,
			"旅行": CategoryTravel,

			"其他": CategoryOther,
		},
		MerchantSuffixes: []string{
			"有限公司",
			"(北京)", "(上海)", "(深圳)", "(广州)",
			"（北京）", "（上海）", "（深圳）", "（广州）",
			"专营店",
			"旗舰店",
			" Co., Ltd.",
			" Co. Ltd.",
			" Flagship Store",
		},
		MerchantRules: []MerchantRule{
			{Match: []string{"星巴克", "starbucks"}, Category: CategoryFood, Tag: "coffee"},
			{Match: []string{"瑞幸", "luckin"}, Category: CategoryFood, Tag: "coffee"},
			{Match: []string{"肯德基", "kfc"}, Category: CategoryFood, Tag: "fast-food"},
			{Match: []string{"麦当劳", "mcdonald"}, Category: CategoryFood, Tag: "fast-food"},
			{Match: []string{"必胜客", "pizza hut"}, Category: CategoryFood},
			{Match: []string{"海底捞"}, Category: CategoryFood},
			{Match: []string{"滴滴", "didi"}, Category: CategoryTransport, Tag: "ride-hailing"},
			{Match: []string{"uber"}, Category: CategoryTransport, Tag: "ride-hailing"},
			{Match: []string{"美团", "meituan"}, Category: CategoryFood, Tag: "delivery"},
			{Match: []string{"饿了么", "eleme"}, Category: CategoryFood, Tag: "delivery"},
			{Match: []string{"京东", "jd.com"}, Category: CategoryShopping},
			{Match: []string{"淘宝", "taobao"}, Category: CategoryShopping},
			{Match: []string{"天猫", "tmall"}, Category: CategoryShopping},
			{Match: []string{"苏宁", "suning"}, Category: CategoryShopping},
			{Match: []string{"万达", "wanda"}, Category: CategoryEntertainment},
			{Match: []string{"华为", "huawei"}, Category: CategoryShopping},
			{Match: []string{"苹果", "apple store"}, Category: CategoryShopping},
			{Match: []string{"小米", "xiaomi"}, Category: CategoryShopping},
		},
		ReimbursementKeywords: []string{"发票", "invoice", "receipt needed"},
	}
}

// LoadTables reads table overrides from a YAML file and merges them over the
// defaults. Empty sections keep the built-in data.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()

	raw, err := os.ReadFile(path)
	if err != nil {
		return tables, eris.Wrap(err, "normalize: read tables file")
	}

	var override Tables
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return tables, eris.Wrap(err, "normalize: parse tables file")
	}

	if len(override.CategorySynonyms) > 0 {
		for k, v := range override.CategorySynonyms {
			tables.CategorySynonyms[k] = v
		}
	}
	if len(override.MerchantSuffixes) > 0 {
		tables.MerchantSuffixes = override.MerchantSuffixes
	}
	if len(override.MerchantRules) > 0 {
		tables.MerchantRules = override.MerchantRules
	}
	if len(override.ReimbursementKeywords) > 0 {
		tables.ReimbursementKeywords = override.ReimbursementKeywords
	}

	return tables, nil
}
