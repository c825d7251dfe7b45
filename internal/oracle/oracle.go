// Package oracle turns repeated OCR readings of one captcha challenge into a
// single answer, abstaining whenever the readings disagree too evenly.
package oracle

import (
	"regexp"
	"sort"
	"strings"
)

var validSolution = regexp.MustCompile(`^[A-Z0-9]{5,8}$`)

// Oracle accumulates accepted candidates for one login round. It is not safe
// for concurrent use; each login owns a fresh instance.
type Oracle struct {
	candidates []string
}

func New() *Oracle {
	return &Oracle{}
}

// Add records raw if it looks like a captcha solution and reports whether it was accepted
func (o *Oracle) Add(raw string) bool {
	candidate := strings.TrimSpace(raw)
	if !validSolution.MatchString(candidate) {
		return false
	}
	o.candidates = append(o.candidates, candidate)
	return true
}

// Len returns the number of accepted candidates
func (o *Oracle) Len() int { return len(o.candidates) }

// Candidates returns a copy of the accepted candidates in insertion order
func (o *Oracle) Candidates() []string {
	out := make([]string, len(o.candidates))
	copy(out, o.candidates)
	return out
}

// Guess returns the consensus solution. first reports whether it equals the
// first accepted candidate; ok is false when there is no consensus yet.
func (o *Oracle) Guess() (solution string, first bool, ok bool) {
	switch len(o.candidates) {
	case 0, 1:
		return "", false, false
	case 2:
		if o.candidates[0] == o.candidates[1] {
			return o.candidates[0], true, true
		}
		return "", false, false
	}

	group, ok := o.dominantLengthGroup()
	if !ok {
		return "", false, false
	}

	guess := make([]byte, len(group[0]))
	for i := range guess {
		c, ok := plurality(group, i)
		if !ok {
			return "", false, false
		}
		guess[i] = c
	}
	solution = string(guess)
	return solution, solution == o.candidates[0], true
}

// dominantLengthGroup returns the candidates sharing the most common length,
// or false when the two largest groups are the same size
func (o *Oracle) dominantLengthGroup() ([]string, bool) {
	byLen := make(map[int][]string)
	for _, c := range o.candidates {
		byLen[len(c)] = append(byLen[len(c)], c)
	}
	groups := make([][]string, 0, len(byLen))
	for _, g := range byLen {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })

	if len(groups) > 1 && len(groups[0]) == len(groups[1]) {
		return nil, false
	}
	return groups[0], true
}

// plurality returns the most frequent byte at pos, or false on a tie for first place
func plurality(group []string, pos int) (byte, bool) {
	counts := make(map[byte]int)
	for _, c := range group {
		counts[c[pos]]++
	}
	var best byte
	bestCount, runnerUp := 0, 0
	for c, n := range counts {
		switch {
		case n > bestCount:
			best, runnerUp, bestCount = c, bestCount, n
		case n > runnerUp:
			runnerUp = n
		}
	}
	return best, bestCount != runnerUp
}
