package dart

import (
	"fmt"
	"regexp"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// EntryRule selects the document inside a filing bundle.
type EntryRule int

const (
	// FirstDocumentEntry picks the first .xml or .html entry.
	FirstDocumentEntry EntryRule = iota
	// FirstEntry picks the first entry whatever its name. Registration
	// statements put the main body first and attachments after it.
	FirstEntry
)

// Filter selects the filings of one category from the filing list.
type Filter struct {
	Category   model.Category
	DetailType string // pblntf_detail_ty
	Include    *regexp.Regexp
	Exclude    *regexp.Regexp // nil keeps everything Include matches
	Entry      EntryRule
}

// Match reports whether a report name belongs to the category. Amendments
// and withdrawals are excluded so only the final filing is recorded.
func (f Filter) Match(reportName string) bool {
	if f.Include != nil && !f.Include.MatchString(reportName) {
		return false
	}
	return f.Exclude == nil || !f.Exclude.MatchString(reportName)
}

var filters = map[model.Category]Filter{
	model.CategoryContract: {
		Category:   model.CategoryContract,
		DetailType: "I001",
		Include:    regexp.MustCompile(`단일판매`),
		Exclude:    regexp.MustCompile(`정정|해지`),
	},
	model.CategoryInvestment: {
		Category:   model.CategoryInvestment,
		DetailType: "I001",
		Include:    regexp.MustCompile(`신규시설`),
		Exclude:    regexp.MustCompile(`자회사|철회`),
	},
	model.CategoryMerger: {
		Category:   model.CategoryMerger,
		DetailType: "C004",
		Include:    regexp.MustCompile(`증권신고서\(합병`),
		Entry:      FirstEntry,
	},
}

// FilterFor returns the list filter of a category.
func FilterFor(c model.Category) (Filter, error) {
	f, ok := filters[c]
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, c)
	}
	return f, nil
}
