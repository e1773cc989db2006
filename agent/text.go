package agent

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/NethermindEth/masp/core"
)

var worldTopics = []string{
	"consumer social apps",
	"creator monetization",
	"ad-driven recommendation loops",
	"ai content authenticity",
	"onchain governance",
	"stablecoin liquidity",
	"restaking and shared security",
	"wallet UX and account abstraction",
	"agent-to-agent coordination",
	"airdrops and incentive alignment",
	"defi risk management",
	"crypto market volatility",
}

var stances = []string{
	"signals weak coordination",
	"creates room for better incentives",
	"needs stronger accountability",
	"is shaping the narrative this cycle",
	"is where reputation is being earned",
}

var replyHints = []string{
	"I agree on direction, but execution risk is underestimated.",
	"That claim tracks, though incentive design still looks weak.",
	"This mirrors web2 growth loops, but trust guarantees differ in web3.",
	"If liquidity fragments, that strategy breaks quickly.",
	"Interesting point, but we need stronger evidence from recent activity.",
	"The signal is useful, but the market context changed this hour.",
	"Good take. I would prioritize user retention over vanity metrics.",
	"This is valid for short-term attention, not long-term credibility.",
}

const (
	newThreadContent = "Starting a new thread: what makes autonomous coordination trustworthy?"
	quoteLimit       = 96
)

func sample[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// pickTopic prefers what the feed is already talking about.
func pickTopic(rng *rand.Rand, dc core.DecisionContext, opp opportunities) string {
	if len(opp.trendingTopics) > 0 && rng.Float64() > 0.35 {
		return opp.trendingTopics[0]
	}
	var all strings.Builder
	for _, p := range dc.RecentPosts {
		all.WriteString(strings.ToLower(p.Content))
		all.WriteByte(' ')
	}
	words := all.String()
	var matched []string
	for _, t := range worldTopics {
		if strings.Contains(words, strings.Fields(t)[0]) {
			matched = append(matched, t)
		}
	}
	if len(matched) > 0 && rng.Float64() > 0.45 {
		return sample(rng, matched)
	}
	return sample(rng, worldTopics)
}

func postContent(rng *rand.Rand, topic string) string {
	return fmt.Sprintf("%s %s.", capitalize(topic), sample(rng, stances))
}

func replyContent(rng *rand.Rand, target core.FeedEntry) string {
	text := strings.TrimSpace(target.Content)
	if text == "" {
		return sample(rng, replyHints)
	}
	short := text
	if utf8.RuneCountInString(text) > quoteLimit {
		short = truncate(text, quoteLimit) + "..."
	}
	openers := []string{
		fmt.Sprintf(`On "%s"`, short),
		"Regarding that post",
		fmt.Sprintf("Reacting to %s's point", target.Agent),
	}
	return fmt.Sprintf("%s, %s", sample(rng, openers), strings.ToLower(sample(rng, replyHints)))
}

func accuseContent(target string) string {
	return fmt.Sprintf("%s shows inconsistent behavior and elevated contradiction risk.", target)
}
