// Package pipeline turns an inbound Slack message with a Granola link into one outbound post.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IliaW/granola-scraper-bot/config"
	"github.com/IliaW/granola-scraper-bot/internal/classifier"
	"github.com/IliaW/granola-scraper-bot/internal/event"
	"github.com/IliaW/granola-scraper-bot/internal/formatter"
	"github.com/IliaW/granola-scraper-bot/internal/locator"
	"github.com/IliaW/granola-scraper-bot/internal/model"
	"github.com/IliaW/granola-scraper-bot/internal/scraper"
)

// Second look at the content in case the page rendered a login wall below the title.
var accessDeniedContent = []string{"don't have access", "login to access"}

type Poster interface {
	PostMessage(ctx context.Context, channel string, text string) error
}

type Directory interface {
	ChannelName(ctx context.Context, id string) (string, bool)
	UserName(ctx context.Context, id string) (string, bool)
}

type Pipeline struct {
	Cfg        *config.Config
	Log        *slog.Logger
	Scraper    scraper.PageScraper
	Poster     Poster
	Directory  Directory
	Classifier *classifier.Classifier
	// BotID is our own bot id; messages carrying it are dropped.
	BotID string
	// StartTime is when the process started; older messages are dropped.
	StartTime time.Time
}

// Handle processes a single message event and posts at most one message.
func (p *Pipeline) Handle(ctx context.Context, m *event.Message) {
	if m.BotID != "" {
		p.Log.Debug("received bot message.", slog.String("bot_id", m.BotID),
			slog.Int("attachments", len(m.Attachments)), slog.Int("blocks", len(m.Blocks)),
			slog.Bool("granola_link", locator.Contains(m.CandidateText())))
	}
	if p.BotID != "" && m.BotID == p.BotID {
		p.Log.Debug("skipping own bot message.")
		return
	}
	if m.IgnoredSubtype() {
		return
	}
	if m.Time().Before(p.StartTime) {
		return
	}

	found, ok := locator.Locate(m.CandidateText())
	if !ok || m.Channel == "" {
		return
	}
	url := locator.Normalize(found)
	log := p.Log.With(slog.String("url", url), slog.String("channel", m.Channel))
	log.Info("processing granola link.")

	result := p.Scraper.Scrape(ctx, model.ScrapeRequest{URL: url, Timeout: p.Cfg.RequestTimeoutDuration()})
	if !result.OK() {
		log.Error("scrape failed.", slog.String("reason", result.Failure.Reason.String()),
			slog.String("err", result.Failure.Message))
		p.post(ctx, log, m.Channel, failureNotice(url, result.Failure))
		return
	}

	success := result.Success
	content := strings.TrimSpace(formatter.Body("", success.Lines))
	if len([]rune(content)) < p.Cfg.MinContentLength {
		log.Error("scrape returned empty content.")
		p.post(ctx, log, m.Channel, emptyNotice(url))
		return
	}
	if containsAny(strings.ToLower(content), accessDeniedContent) {
		log.Error("note requires authentication.")
		p.post(ctx, log, m.Channel, lockedNotice(url))
		return
	}

	header := p.dealflowHeader(ctx, m, success.Title)
	msg := formatter.Format(success.Title, success.Lines, header, p.Cfg.MaxContentLength)
	log.Info("scrape succeeded.", slog.Int("length", len(msg.Text)), slog.Bool("truncated", msg.Truncated))
	p.post(ctx, log, m.Channel, msg.Text)
}

// dealflowHeader returns nil unless the channel is a dealflow channel.
func (p *Pipeline) dealflowHeader(ctx context.Context, m *event.Message, title string) *model.TitleClassification {
	name, ok := p.Directory.ChannelName(ctx, m.Channel)
	if !ok || !p.Cfg.IsDealflowChannel(name) {
		return nil
	}

	header := p.Classifier.Classify(title)
	if header.TeamMemberName == "" {
		if user, ok := p.Directory.UserName(ctx, m.User); ok {
			header.TeamMemberName = user
		}
	}
	return &header
}

func (p *Pipeline) post(ctx context.Context, log *slog.Logger, channel string, text string) {
	if err := p.Poster.PostMessage(ctx, channel, text); err != nil {
		log.Error("failed to post message.", slog.String("err", err.Error()))
	}
}

// failureNotice always carries the url. Timeouts and internal errors share the generic notice.
func failureNotice(url string, f *model.Failure) string {
	switch f.Reason {
	case model.AccessDenied:
		return lockedNotice(url)
	case model.EmptyContent:
		return emptyNotice(url)
	default:
		return fmt.Sprintf("⚠️ *Could not fetch Granola content*\nURL: `%s`\nError: %s", url, f.Message)
	}
}

func lockedNotice(url string) string {
	return fmt.Sprintf("🔒 *Could not access the page*\nURL: `%s`\n\n_Make the page public in Granola to share it._", url)
}

func emptyNotice(url string) string {
	return fmt.Sprintf("📭 *This Granola note is empty*\nURL: `%s`", url)
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
