package responder

import (
	"context"
	"fmt"
	"strings"
)

// rule maps trigger phrases to a canned reply. Matching is a case-insensitive
// substring check, evaluated in order, first hit wins.
type rule struct {
	triggers []string
	reply    string
}

var rules = []rule{
	{
		triggers: []string{"hello", "hi"},
		reply:    "Hello! I'm your AI assistant. How can I help you today?",
	},
	{
		triggers: []string{"how are you"},
		reply:    "I'm doing great! Thanks for asking. How can I assist you?",
	},
	{
		triggers: []string{"what can you do"},
		reply:    "I can help you with various tasks, answer questions, and convert voice messages. Just let me know what you need!",
	},
	{
		triggers: []string{"thank you", "thanks"},
		reply:    "You're welcome! I'm happy to help.",
	},
	{
		triggers: []string{"bye", "goodbye"},
		reply:    "Goodbye! Have a great day!",
	},
}

// RuleStrategy answers from a fixed phrase table without calling any
// provider. It never fails.
type RuleStrategy struct{}

// NewRuleStrategy creates a rule-based strategy.
func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

// Name returns the strategy name.
func (s *RuleStrategy) Name() string { return "rules" }

// Respond pattern-matches the lowercased query against the phrase table. An
// unmatched query echoes back inside a templated acknowledgment. The
// knowledge digest is ignored: canned replies are not knowledge-grounded.
func (s *RuleStrategy) Respond(_ context.Context, query, _ string) string {
	lowered := strings.ToLower(query)
	for _, r := range rules {
		for _, trigger := range r.triggers {
			if strings.Contains(lowered, trigger) {
				return r.reply
			}
		}
	}
	return fmt.Sprintf("I received your message: '%s'. I can chat, answer questions, and convert voice messages.", query)
}
