package suggest

import (
	"strings"
	"unicode/utf8"
)

const (
	fuzzyMinLen      = 4
	fuzzyMaxDistance = 2
	fuzzyMaxWords    = 4
)

// fuzzyContains reports whether some run of 1 to 4 consecutive words of text
// is within maxDist edits of keyword.
func fuzzyContains(text, keyword string, maxDist int) bool {
	words := strings.Fields(text)
	keyLen := utf8.RuneCountInString(keyword)
	for i := range words {
		var b strings.Builder
		for j := i; j < len(words) && j < i+fuzzyMaxWords; j++ {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[j])
			cand := b.String()
			if abs(utf8.RuneCountInString(cand)-keyLen) > maxDist {
				continue
			}
			if levenshtein(cand, keyword) <= maxDist {
				return true
			}
		}
	}
	return false
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// score sums group weights over text. An exact substring earns the full
// weight; a fuzzy hit on a keyword of 4+ characters earns 70%. Every group
// that hits once the running total already exceeds its weight adds 0.03.
func score(groups []group, text string) float64 {
	total := 0.0
	for _, g := range groups {
		hit := false
		for _, kw := range g.keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(text, kw) {
				total += g.weight
				hit = true
				break
			}
			if utf8.RuneCountInString(kw) >= fuzzyMinLen && fuzzyContains(text, kw, fuzzyMaxDistance) {
				total += g.weight * 0.7
				hit = true
				break
			}
		}
		if hit && total > g.weight {
			total += 0.03
		}
	}
	return total
}
