package text

import (
	"strings"
	"unicode/utf8"
)

// Rebalance moves whole words between neighbouring segments so that each one
// gets within tolerance of target runes. A move happens only for a segment
// outside tolerance and only when it strictly reduces the combined deviation
// of the pair, so a balanced slice comes back unchanged.
func Rebalance(segments []string, target, tolerance int) []string {
	out := make([]string, len(segments))
	copy(out, segments)
	if len(out) < 2 || target <= 0 {
		return out
	}

	for pass := 0; pass < rebalancePasses; pass++ {
		moved := false
		for i := 0; i < len(out)-1; i++ {
			a, b := out[i], out[i+1]
			la, lb := runeLen(a), runeLen(b)

			switch {
			case la > target+tolerance:
				head, word := splitLastWord(a)
				if word == "" || head == "" {
					continue
				}
				nb := joinWords(word, b)
				if improves(la, lb, runeLen(head), runeLen(nb), target) {
					out[i], out[i+1] = head, nb
					moved = true
				}
			case la < target-tolerance:
				word, tail := splitFirstWord(b)
				if word == "" {
					continue
				}
				na := joinWords(a, word)
				if improves(la, lb, runeLen(na), runeLen(tail), target) {
					out[i], out[i+1] = na, tail
					moved = true
				}
			}
		}
		if !moved {
			break
		}
	}
	return out
}

// Balanced reports whether every segment is within tolerance of target.
func Balanced(segments []string, target, tolerance int) bool {
	for _, s := range segments {
		if d := runeLen(s) - target; d > tolerance || d < -tolerance {
			return false
		}
	}
	return true
}

func improves(la, lb, na, nb, target int) bool {
	return abs(na-target)+abs(nb-target) < abs(la-target)+abs(lb-target)
}

func splitLastWord(s string) (head, word string) {
	idx := strings.LastIndexAny(s, " \t\n")
	if idx < 0 {
		return "", s
	}
	return strings.TrimSpace(s[:idx]), s[idx+1:]
}

func splitFirstWord(s string) (word, tail string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t\n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

func joinWords(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
