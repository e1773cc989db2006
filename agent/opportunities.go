package agent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/NethermindEth/masp/core"
)

const weakReputation = 90

var (
	affirmative = regexp.MustCompile(`(?i)collabor|align|agree`)
	nonWord     = regexp.MustCompile(`[^a-z0-9\s]`)
)

// opportunities are the signals a hosted agent reads from its context
type opportunities struct {
	recentNonSelfPosts []core.FeedEntry
	controversialPosts []core.FeedEntry
	positivePosts      []core.FeedEntry
	weakTargets        []core.RankedAgent
	trendingTopics     []string
}

func analyzeOpportunities(dc core.DecisionContext, self string) opportunities {
	var opp opportunities

	for i := len(dc.RecentPosts) - 1; i >= 0 && len(opp.recentNonSelfPosts) < 5; i-- {
		p := dc.RecentPosts[i]
		if p.Agent != "" && p.Agent != self && p.Action == core.ActionPost {
			opp.recentNonSelfPosts = append(opp.recentNonSelfPosts, p)
		}
	}

	for _, p := range dc.RecentPosts {
		if p.AccusationCount > 0 || p.Action == core.ActionAccuse {
			opp.controversialPosts = append(opp.controversialPosts, p)
		}
		if p.Action == core.ActionLike || affirmative.MatchString(p.Content) {
			opp.positivePosts = append(opp.positivePosts, p)
		}
	}

	for _, a := range dc.Agents {
		if a.Name != self && a.Reputation < weakReputation {
			opp.weakTargets = append(opp.weakTargets, a)
		}
	}

	opp.trendingTopics = trendingWords(dc.RecentPosts, 3)
	return opp
}

// trendingWords counts words longer than five letters and returns the top n.
// Ties keep first-seen order.
func trendingWords(posts []core.FeedEntry, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, p := range posts {
		text := nonWord.ReplaceAllString(strings.ToLower(p.Content), "")
		for _, w := range strings.Fields(text) {
			if len(w) <= 5 {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}
