package bot

import "encoding/json"

// Identity is the authenticated bot's id and display name. It is set once
// after a successful authentication and read by the classifier to detect
// self-authored messages and mentions.
type Identity struct {
	ID   string
	Name string
}

// Event is one inbound chat event. Transient; nothing retains it after the
// handler returns.
type Event struct {
	Type      string   `json:"type"`
	SenderID  string   `json:"senderId"`
	ChannelID string   `json:"channelId"`
	ServerID  string   `json:"serverId"`
	Content   string   `json:"content"`
	IsDirect  bool     `json:"isDirect"`
	Mentions  []string `json:"mentions"`
}

// DecodeMessageEvent unpacks a messageEvent payload. The gateway sends either
// a flat event or an envelope {"type": ..., "data": {...}}; both shapes occur
// in the wild and both are accepted.
func DecodeMessageEvent(raw json.RawMessage) (Event, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, err
	}
	var ev Event
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			return Event{}, err
		}
		ev.Type = envelope.Type
		return ev, nil
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
