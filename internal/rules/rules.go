// Package rules evaluates incoming chat messages against independently
// configured keyword groups.
package rules

import (
	"strings"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/text"
)

// Group is an immutable rule set mapping source chats and keyword criteria to
// one notification recipient.
type Group struct {
	Name             string
	Recipient        int64
	IncludeQuestions bool

	chats           map[int64]struct{}
	excludedSenders map[int64]struct{}
	keywords        []string
	excludedWords   []string
}

// Message is the part of an incoming chat message the rule engine reads.
type Message struct {
	SenderID int64
	ChatID   int64
	Text     string
}

// NewGroup builds a Group from its configuration. Keywords are normalized
// the same way message text is; keywords that normalize to nothing are dropped.
func NewGroup(cfg config.GroupConfig) *Group {
	g := &Group{
		Name:             cfg.Name,
		Recipient:        cfg.Recipient,
		IncludeQuestions: cfg.IncludeQuestions,
		chats:            make(map[int64]struct{}, len(cfg.Chats)),
		excludedSenders:  make(map[int64]struct{}, len(cfg.ExcludedSenders)),
		keywords:         normalizeAll(cfg.Keywords),
		excludedWords:    normalizeAll(cfg.ExcludedKeywords),
	}
	for _, id := range cfg.Chats {
		g.chats[id] = struct{}{}
	}
	for _, id := range cfg.ExcludedSenders {
		g.excludedSenders[id] = struct{}{}
	}
	return g
}

// NewGroups builds groups in configuration order.
func NewGroups(cfgs []config.GroupConfig) []*Group {
	groups := make([]*Group, 0, len(cfgs))
	for _, c := range cfgs {
		groups = append(groups, NewGroup(c))
	}
	return groups
}

// Watches reports whether chatID is one of the group's source chats.
func (g *Group) Watches(chatID int64) bool {
	_, ok := g.chats[chatID]
	return ok
}

// Excludes reports whether messages from senderID are ignored by the group.
func (g *Group) Excludes(senderID int64) bool {
	_, ok := g.excludedSenders[senderID]
	return ok
}

// Match reports whether msg, with its normalized text, is admitted to the group.
func (g *Group) Match(msg Message, normalized string) bool {
	if !g.Watches(msg.ChatID) || g.Excludes(msg.SenderID) {
		return false
	}

	if !containsAny(normalized, g.keywords) && !(g.IncludeQuestions && text.IsQuestion(msg.Text)) {
		return false
	}

	return !containsAny(normalized, g.excludedWords)
}

// Classify returns the groups msg is admitted to, in group order.
func Classify(msg Message, normalized string, groups []*Group) []*Group {
	var matched []*Group
	for _, g := range groups {
		if g.Match(msg, normalized) {
			matched = append(matched, g)
		}
	}
	return matched
}

// Recipients returns the set of recipient ids across groups.
func Recipients(groups []*Group) map[int64]struct{} {
	out := make(map[int64]struct{}, len(groups))
	for _, g := range groups {
		out[g.Recipient] = struct{}{}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := text.Normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}
