// Package event models the inbound Slack message payload.
//
// Every field is optional. An absent string field decodes to "" and an absent
// array to nil, and both are treated the same way: the field contributes nothing.
package event

import (
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Subtypes that never carry a new link.
var ignoredSubtypes = map[string]struct{}{
	"message_changed": {},
	"message_deleted": {},
	"channel_join":    {},
	"channel_leave":   {},
}

type Message struct {
	Type        string       `json:"type"`
	Subtype     string       `json:"subtype"`
	Text        string       `json:"text"`
	User        string       `json:"user"`
	BotID       string       `json:"bot_id"`
	Channel     string       `json:"channel"`
	TimeStamp   string       `json:"ts"`
	Attachments []Attachment `json:"attachments"`
	Blocks      []Block      `json:"blocks"`
}

// Attachment is a legacy rich card, used by the Granola Slack app for shared notes.
type Attachment struct {
	TitleLink   string `json:"title_link"`
	FromURL     string `json:"from_url"`
	OriginalURL string `json:"original_url"`
	Text        string `json:"text"`
	Fallback    string `json:"fallback"`
}

type Block struct {
	Type     string     `json:"type"`
	Text     *BlockText `json:"text"`
	Elements []Element  `json:"elements"`
}

type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Element struct {
	Type     string    `json:"type"`
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IgnoredSubtype reports edits, deletions and membership changes.
func (m *Message) IgnoredSubtype() bool {
	_, ok := ignoredSubtypes[m.Subtype]
	return ok
}

// Time parses the Slack "seconds.micros" timestamp. A missing or malformed ts is the zero epoch.
func (m *Message) Time() time.Time {
	secs, err := strconv.ParseFloat(m.TimeStamp, 64)
	if err != nil {
		return time.Unix(0, 0)
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second)))
}

// CandidateText joins every text-bearing field with a space, in this order:
// text; per attachment title_link, from_url, original_url, text, fallback;
// per block the section text, link element urls and link urls nested in rich_text_section.
func (m *Message) CandidateText() string {
	sources := make([]string, 0, 4)
	add := func(s string) {
		if s != "" {
			sources = append(sources, s)
		}
	}

	add(m.Text)
	for _, a := range m.Attachments {
		add(a.TitleLink)
		add(a.FromURL)
		add(a.OriginalURL)
		add(a.Text)
		add(a.Fallback)
	}
	for _, b := range m.Blocks {
		if b.Type == "section" && b.Text != nil {
			add(b.Text.Text)
		}
		for _, el := range b.Elements {
			if el.Type == "link" {
				add(el.URL)
			}
			if el.Type == "rich_text_section" {
				for _, sub := range el.Elements {
					if sub.Type == "link" {
						add(sub.URL)
					}
				}
			}
		}
	}

	return strings.Join(sources, " ")
}
