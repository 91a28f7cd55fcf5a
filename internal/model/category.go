package model

import (
	"fmt"
	"strings"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
)

// Category is the closed set of filing kinds the ledger records.
// Each category has its own sheet, label table and normalizer but shares the
// (issuer, filing date, amount) keying.
type Category string

const (
	// CategoryContract covers single sales/supply contract filings (단일판매ㆍ공급계약).
	CategoryContract Category = "contract"
	// CategoryInvestment covers new facility investment filings (신규시설투자).
	CategoryInvestment Category = "investment"
	// CategoryMerger covers merger registration statements (증권신고서(합병)).
	CategoryMerger Category = "merger"
)

// Categories returns every supported category in processing order.
func Categories() []Category {
	return []Category{CategoryContract, CategoryInvestment, CategoryMerger}
}

// ParseCategory maps a configuration value onto a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryContract, CategoryInvestment, CategoryMerger:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, s)
	}
}

// ParseCategories parses a comma separated list, dropping blanks and repeats.
func ParseCategories(csv string) ([]Category, error) {
	var out []Category
	seen := make(map[Category]bool)
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty category list", apperrors.ErrUnknownCategory)
	}
	return out, nil
}
