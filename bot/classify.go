package bot

import (
	"regexp"
	"slices"
	"strings"
)

// ActionKind is the classifier's verdict for one inbound event.
type ActionKind int

const (
	// Ignore: not actionable (own message, DM, non-message event, no trigger).
	Ignore ActionKind = iota
	// DirectCommand: the content started with the command prefix.
	DirectCommand
	// MentionCommand: the bot was mentioned; Text has the mentions stripped.
	MentionCommand
)

// Action is the classification result. Text carries the command text for the
// two command kinds and is empty for Ignore.
type Action struct {
	Kind ActionKind
	Text string
}

// messageTypes are the event type markers treated as "new message". The empty
// string is the gateway's default and counts as one. Everything else (edits,
// deletions, typing indicators) is ignored.
var messageTypes = map[string]bool{
	"":                true,
	"new_message":     true,
	"message_created": true,
}

// Classifier decides whether a chat event is an actionable command. It is
// built once per authentication, when the bot identity becomes known.
type Classifier struct {
	identity Identity
	prefix   string
	idToken  string
	namePat  *regexp.Regexp
}

// NewClassifier builds a classifier for the given identity and command prefix.
func NewClassifier(identity Identity, prefix string) *Classifier {
	c := &Classifier{
		identity: identity,
		prefix:   prefix,
	}
	if identity.ID != "" {
		c.idToken = "<@" + identity.ID + ">"
	}
	if identity.Name != "" {
		c.namePat = regexp.MustCompile("(?i)" + regexp.QuoteMeta("@"+identity.Name))
	}
	return c
}

// Classify applies the triage rules in order: event-type gate, own-message
// gate, DM gate, command prefix, mention.
func (c *Classifier) Classify(ev Event) Action {
	if !messageTypes[ev.Type] {
		return Action{Kind: Ignore}
	}
	if ev.SenderID == c.identity.ID {
		return Action{Kind: Ignore}
	}
	if ev.IsDirect {
		return Action{Kind: Ignore}
	}
	if strings.HasPrefix(ev.Content, c.prefix) {
		return Action{Kind: DirectCommand, Text: strings.TrimSpace(ev.Content[len(c.prefix):])}
	}
	if c.mentioned(ev) {
		return Action{Kind: MentionCommand, Text: c.stripMentions(ev.Content)}
	}
	return Action{Kind: Ignore}
}

func (c *Classifier) mentioned(ev Event) bool {
	if c.identity.ID == "" {
		return false
	}
	if slices.Contains(ev.Mentions, c.identity.ID) {
		return true
	}
	if c.idToken != "" && strings.Contains(ev.Content, c.idToken) {
		return true
	}
	return c.namePat != nil && c.namePat.MatchString(ev.Content)
}

// stripMentions removes every id-token occurrence first, then every name-token
// occurrence, and trims the remainder.
func (c *Classifier) stripMentions(content string) string {
	if c.idToken != "" {
		content = strings.ReplaceAll(content, c.idToken, "")
	}
	if c.namePat != nil {
		content = c.namePat.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}
