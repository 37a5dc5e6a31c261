package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/IliaW/granola-scraper-bot/internal/model"
)

// primaryScript walks the note editor and reports headings and list item paragraphs
// in document order. Filtering happens in collectLines.
const primaryScript = `(() => {
	const editor = document.querySelector('.ProseMirror');
	if (!editor) return [];
	const out = [];
	for (const el of editor.querySelectorAll('*')) {
		const cls = typeof el.className === 'string' ? el.className : '';
		const heading = el.classList.contains('viewSource_view-source-heading__sJegq') ||
			cls.includes('heading') ||
			el.matches('[data-node-view-content] > div');
		if (heading && el.closest('.node-heading')) {
			out.push({type: 'heading', text: el.innerText || ''});
		}
		if (el.tagName === 'LI') {
			const p = el.querySelector('.viewSource_view-source-paragraph__SnPk6, [data-node-view-content]');
			if (p) {
				const nested = el.parentElement !== null && el.parentElement.closest('li') !== null;
				out.push({type: nested ? 'subitem' : 'item', text: p.innerText || ''});
			}
		}
	}
	return out;
})()`

// Page chrome that leaks into the note body.
var (
	primaryChrome = []string{
		"download", "new chat", "ask anything",
		"list action", "write follow", "all recipes",
		"list q&a", "click to", "sign in", "log in",
	}
	fallbackChrome = []string{"download", "new chat", "ask anything", "sign in", "log in"}
)

// minTextLength is the shortest line text kept.
const minTextLength = 3

type rawLine struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (r rawLine) kind() model.LineKind {
	switch r.Type {
	case "heading":
		return model.Heading
	case "subitem":
		return model.SubItem
	default:
		return model.Item
	}
}

// collectLines trims, dedupes by exact text and drops chrome, keeping document order.
func collectLines(raw []rawLine, chrome []string) []model.ContentLine {
	seen := make(map[string]struct{}, len(raw))
	lines := make([]model.ContentLine, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if utf8.RuneCountInString(text) < minTextLength {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		if isChrome(text, chrome) {
			continue
		}
		lines = append(lines, model.ContentLine{Kind: r.kind(), Text: text})
	}
	return lines
}

func isChrome(text string, chrome []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range chrome {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
