// Package slackbot wraps the Slack Web API and Socket Mode for the bot.
package slackbot

import (
	"context"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"github.com/slack-go/slack"

	"github.com/IliaW/granola-scraper-bot/config"
)

// webAPI is the part of *slack.Client the bot uses.
type webAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Client posts messages and resolves channel and user names. Resolved names are
// cached for the life of the process. Failed lookups are not cached.
type Client struct {
	api      webAPI
	log      *slog.Logger
	channels *cache.Cache
	users    *cache.Cache
}

func NewClient(cfg *config.SlackConfig, log *slog.Logger) (*Client, *slack.Client) {
	api := slack.New(cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(cfg.Debug),
	)
	return newClient(api, log), api
}

func newClient(api webAPI, log *slog.Logger) *Client {
	return &Client{
		api:      api,
		log:      log,
		channels: cache.New(cache.NoExpiration, 0),
		users:    cache.New(cache.NoExpiration, 0),
	}
}

// BotID returns the bot id of our own token, or "" if auth.test fails.
func (c *Client) BotID(ctx context.Context) string {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		c.log.Warn("could not fetch own bot id.", slog.String("err", err.Error()))
		return ""
	}
	c.log.Info("own bot id resolved.", slog.String("bot_id", resp.BotID))
	return resp.BotID
}

// PostMessage posts text as a new top-level message. It is called once per event and never retried.
func (c *Client) PostMessage(ctx context.Context, channel string, text string) error {
	c.log.Info("posting new message.", slog.String("channel", channel), slog.Int("length", len(text)))
	_, ts, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	)
	if err != nil {
		c.log.Error("failed to post message.", slog.String("channel", channel), slog.String("err", err.Error()))
		return err
	}
	c.log.Info("message posted.", slog.String("ts", ts))
	return nil
}

func (c *Client) ChannelName(ctx context.Context, id string) (string, bool) {
	if name, ok := c.channels.Get(id); ok {
		return name.(string), true
	}
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		c.log.Warn("could not get channel info.", slog.String("channel", id), slog.String("err", err.Error()))
		return "", false
	}
	if ch.Name == "" {
		return "", false
	}
	c.channels.Set(id, ch.Name, cache.NoExpiration)
	return ch.Name, true
}

// UserName prefers the display name, then the real name, then the account name.
func (c *Client) UserName(ctx context.Context, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	if name, ok := c.users.Get(id); ok {
		return name.(string), true
	}
	u, err := c.api.GetUserInfoContext(ctx, id)
	if err != nil {
		c.log.Warn("could not get user info.", slog.String("user", id), slog.String("err", err.Error()))
		return "", false
	}
	name := firstNonEmpty(u.Profile.DisplayName, u.RealName, u.Profile.RealName, u.Name)
	if name == "" {
		return "", false
	}
	c.users.Set(id, name, cache.NoExpiration)
	return name, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
