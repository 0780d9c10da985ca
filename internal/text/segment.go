// Package text splits narration into timed subtitle segments.
package text

import (
	"strings"
	"unicode"
)

const (
	// terminatorWindow is how far around a target cut point a sentence end is searched for.
	terminatorWindow = 15
	// clauseLookback is how far back from a target cut point a clause boundary is searched for.
	clauseLookback = 20

	rebalancePasses  = 3
	defaultTolerance = 10
)

// Segmenter splits narration text into a fixed number of display segments.
type Segmenter struct {
	// TargetChars fixes the segment length in runes. Zero divides the text
	// evenly across the requested segments.
	TargetChars int
	// Tolerance is the allowed deviation from TargetChars before Rebalance
	// moves words. Zero means defaultTolerance.
	Tolerance int
}

// Segment returns exactly n segments. Joining them with single spaces
// reproduces the words of text in order.
func (s Segmenter) Segment(text string, n int) []string {
	if n < 1 {
		n = 1
	}
	text = strings.TrimSpace(text)
	if n == 1 {
		return []string{text}
	}

	runes := []rune(text)
	target := s.TargetChars
	if target <= 0 {
		target = (len(runes) + n - 1) / n
	}
	if target < 1 {
		target = 1
	}

	segments := make([]string, 0, n)
	pos := 0
	for i := 0; i < n-1 && pos < len(runes); i++ {
		cut := findCut(runes, pos, pos+target)
		segments = append(segments, strings.TrimSpace(string(runes[pos:cut])))
		pos = cut
	}
	if pos < len(runes) {
		segments = append(segments, strings.TrimSpace(string(runes[pos:])))
	}
	for len(segments) < n {
		segments = append(segments, "")
	}

	if s.TargetChars > 0 {
		tol := s.Tolerance
		if tol <= 0 {
			tol = defaultTolerance
		}
		segments = Rebalance(segments, s.TargetChars, tol)
	}
	return segments
}

// findCut picks the end (exclusive) of the segment starting at pos whose
// nominal end is ideal. The result is always in (pos, len(runes)].
func findCut(runes []rune, pos, ideal int) int {
	if ideal >= len(runes) {
		return len(runes)
	}

	// sentence terminator, nearest to the ideal point first, earlier wins ties
	for d := 0; d <= terminatorWindow; d++ {
		for _, idx := range [2]int{ideal - d, ideal + d} {
			if idx <= pos || idx >= len(runes) {
				continue
			}
			if isTerminator(runes[idx]) {
				return idx + 1
			}
			if d == 0 {
				break
			}
		}
	}

	// clause boundary, searching backward
	for idx := ideal; idx > pos && idx >= ideal-clauseLookback; idx-- {
		if isClauseBoundary(runes[idx]) {
			return idx + 1
		}
	}

	return ideal
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isClauseBoundary(r rune) bool {
	switch r {
	case ',', '，', '、', ';':
		return true
	}
	return unicode.IsSpace(r)
}
