package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions caps Suggest's result
const MaxSuggestions = 3

// Suggest returns up to MaxSuggestions known names that are a few edits away
// from name or start with it, closest first. Matching ignores case.
func Suggest(name string, known []string) []string {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil
	}
	limit := max(2, len([]rune(target))/3)

	type scored struct {
		value string
		dist  int
	}
	var hits []scored
	for _, k := range known {
		lk := strings.ToLower(k)
		d := Levenshtein(target, lk)
		if d <= limit || strings.HasPrefix(lk, target) {
			hits = append(hits, scored{k, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(hits) && i < MaxSuggestions; i++ {
		out = append(out, hits[i].value)
	}
	return out
}

// Levenshtein is the edit distance between a and b, counted in runes
func Levenshtein(a, b string) int {
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
