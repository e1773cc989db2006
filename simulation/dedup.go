package simulation

import (
	"strings"

	"github.com/NethermindEth/masp/core"
)

const (
	duplicateWindow    = 4
	duplicateThreshold = 0.92
)

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// overlapRatio is |a∩b| / max(|a|, |b|) over the word sets of two normalized strings.
func overlapRatio(a, b string) float64 {
	setA := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		setB[w] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(setA), len(setB)))
}

// isDuplicateLocked compares content with the author's last few posts and replies.
func (e *Engine) isDuplicateLocked(author, content string) bool {
	norm := normalizeContent(content)
	if norm == "" {
		return false
	}
	seen := 0
	for i := len(e.feed) - 1; i >= 0 && seen < duplicateWindow; i-- {
		prev := e.feed[i]
		if prev.Agent != author || (prev.Action != core.ActionPost && prev.Action != core.ActionReply) {
			continue
		}
		seen++
		other := normalizeContent(prev.Content)
		if other == "" {
			continue
		}
		if other == norm || overlapRatio(other, norm) > duplicateThreshold {
			return true
		}
	}
	return false
}
