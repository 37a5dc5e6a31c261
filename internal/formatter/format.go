// Package formatter renders scraped note content as a Slack mrkdwn message.
package formatter

import (
	"strings"

	"github.com/IliaW/granola-scraper-bot/internal/model"
)

const (
	TruncationNotice = "\n\n... _(content truncated)_"
	// cutThreshold is the share of the limit below which a newline is not used as the cut point.
	cutThreshold = 0.7
)

// Format renders the optional dealflow header, the title block and the content lines,
// truncated to maxLength at a line boundary where possible.
func Format(title string, lines []model.ContentLine, header *model.TitleClassification,
	maxLength int) model.FormattedMessage {
	parts := make([]string, 0, len(lines)+6)
	if header != nil && !header.Empty() {
		if header.CompanyName != "" {
			parts = append(parts, "Company/Founder: "+header.CompanyName)
		}
		if header.TeamMemberName != "" {
			parts = append(parts, "On Call: "+header.TeamMemberName)
		}
		parts = append(parts, "")
	}
	parts = appendBody(parts, title, lines)

	return truncate(strings.Join(parts, "\n"), maxLength)
}

// Body is the undecorated rendering of title and lines, without header or truncation.
func Body(title string, lines []model.ContentLine) string {
	return strings.Join(appendBody(nil, title, lines), "\n")
}

func appendBody(parts []string, title string, lines []model.ContentLine) []string {
	if title != "" {
		parts = append(parts, "📋 *"+title+"*", "")
	}
	for i, line := range lines {
		switch line.Kind {
		case model.Heading:
			if i > 0 && len(parts) > 0 && parts[len(parts)-1] != "" {
				parts = append(parts, "")
			}
			parts = append(parts, "*"+line.Text+"*")
		case model.SubItem:
			parts = append(parts, "    ◦ "+line.Text)
		default:
			parts = append(parts, "• "+line.Text)
		}
	}
	return parts
}

func truncate(text string, maxLength int) model.FormattedMessage {
	runes := []rune(text)
	if maxLength <= 0 || len(runes) <= maxLength {
		return model.FormattedMessage{Text: text}
	}

	cut := runes[:maxLength]
	if i := lastNewline(cut); i >= 0 && float64(i) > float64(maxLength)*cutThreshold {
		cut = cut[:i]
	}

	return model.FormattedMessage{
		Text:      strings.TrimRight(string(cut), " \t\r\n") + TruncationNotice,
		Truncated: true,
	}
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
