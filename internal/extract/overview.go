package extract

import (
	"regexp"
	"strings"
)

const (
	overviewHeading = "1. 사업의 개요"
	companyStatus   = "나. 회사의 현황"
)

var overviewEnd = regexp.MustCompile(`(?:1\. 합병의 개요|2\. 주요 제품 및 서비스)`)

// BusinessOverviews returns the first paragraph of every "사업의 개요"
// block in document order. Merger registrations describe the merging company
// first and the target second.
func BusinessOverviews(doc *Document) []string {
	raw := doc.Raw()

	var starts []int
	for off := 0; ; {
		i := strings.Index(raw[off:], overviewHeading)
		if i < 0 {
			break
		}
		starts = append(starts, off+i)
		off += i + len(overviewHeading)
	}

	out := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(raw)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		block := raw[start:end]

		if _, after, ok := strings.Cut(block, companyStatus); ok {
			block = after
		} else if loc := overviewEnd.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}

		sub, err := NewDocument(block)
		if err != nil {
			out = append(out, "")
			continue
		}
		out = append(out, sub.FirstParagraph())
	}
	return out
}
