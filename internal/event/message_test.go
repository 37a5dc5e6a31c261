package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndCandidateText(t *testing.T) {
	payload := `{
		"type": "message",
		"text": "shared a note",
		"channel": "C123",
		"bot_id": "B999",
		"ts": "1700000000.000200",
		"attachments": [
			{"title_link": "https://notes.granola.ai/d/card", "fallback": "Acme notes"},
			{"from_url": "https://example.com", "text": ""}
		],
		"blocks": [
			{"type": "section", "text": {"type": "mrkdwn", "text": "section body"}},
			{"type": "rich_text", "elements": [
				{"type": "rich_text_section", "elements": [
					{"type": "text"},
					{"type": "link", "url": "https://notes.granola.ai/d/nested"}
				]},
				{"type": "link", "url": "https://notes.granola.ai/d/direct"}
			]},
			{"type": "divider"}
		]
	}`

	m, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "C123", m.Channel)
	assert.Equal(t, "B999", m.BotID)
	assert.Equal(t,
		"shared a note https://notes.granola.ai/d/card Acme notes https://example.com section body "+
			"https://notes.granola.ai/d/nested https://notes.granola.ai/d/direct",
		m.CandidateText())
}

func TestCandidateText_Empty(t *testing.T) {
	m, err := Decode([]byte(`{"type":"message"}`))
	require.NoError(t, err)
	assert.Equal(t, "", m.CandidateText())
}

func TestCandidateText_SectionWithoutText(t *testing.T) {
	m := &Message{Blocks: []Block{{Type: "section"}, {Type: "context", Text: &BlockText{Text: "ignored"}}}}
	assert.Equal(t, "", m.CandidateText())
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"text": 12`))
	assert.Error(t, err)
}

func TestTime(t *testing.T) {
	m := &Message{TimeStamp: "1700000000.500000"}
	assert.Equal(t, int64(1700000000), m.Time().Unix())
	assert.InDelta(t, float64(500*time.Millisecond), float64(m.Time().Nanosecond()), float64(time.Millisecond))

	assert.Equal(t, int64(0), (&Message{}).Time().Unix())
	assert.Equal(t, int64(0), (&Message{TimeStamp: "not-a-ts"}).Time().Unix())
}

func TestIgnoredSubtype(t *testing.T) {
	for _, st := range []string{"message_changed", "message_deleted", "channel_join", "channel_leave"} {
		assert.True(t, (&Message{Subtype: st}).IgnoredSubtype(), st)
	}
	assert.False(t, (&Message{Subtype: "bot_message"}).IgnoredSubtype())
	assert.False(t, (&Message{}).IgnoredSubtype())
}
