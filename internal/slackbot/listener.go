package slackbot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/IliaW/granola-scraper-bot/internal/event"
)

// Slack redelivers an event when the ack is late. Ids are remembered long enough to drop those.
const deliveryMemory = 30 * time.Minute

type MessageHandler func(context.Context, *event.Message)

type callback struct {
	Type    string              `json:"type"`
	EventID string              `json:"event_id"`
	Event   jsoniter.RawMessage `json:"event"`
}

type innerEvent struct {
	Type string `json:"type"`
}

// Listener receives Socket Mode events and runs the handler for every message in its own goroutine.
type Listener struct {
	socket  *socketmode.Client
	handler MessageHandler
	log     *slog.Logger
	seen    *cache.Cache
	wg      sync.WaitGroup
}

func NewListener(api *slack.Client, handler MessageHandler, log *slog.Logger) *Listener {
	return &Listener{
		socket:  socketmode.New(api),
		handler: handler,
		log:     log,
		seen:    cache.New(deliveryMemory, deliveryMemory),
	}
}

// Run blocks until ctx is done. The websocket is closed on return; running handlers are not
// cancelled, use Wait to let them finish.
func (l *Listener) Run(ctx context.Context) error {
	handlerCtx := context.WithoutCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-l.socket.Events:
				if !ok {
					return
				}
				l.dispatch(handlerCtx, evt)
			}
		}
	}()

	l.log.Info("connecting to slack socket mode...")
	err := l.socket.RunContext(ctx)
	if ctx.Err() != nil {
		<-stopped
		l.log.Info("socket mode connection closed.")
		return nil
	}
	return err
}

// Wait blocks until in-flight handlers finish or timeout passes. It reports whether all finished.
func (l *Listener) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *Listener) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		l.log.Info("connecting to slack...")
	case socketmode.EventTypeConnected:
		l.log.Info("connected to slack! listening for messages.")
	case socketmode.EventTypeConnectionError:
		l.log.Warn("slack connection failed. retrying...")
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		l.socket.Ack(*evt.Request)
		msg, ok := l.decode(evt.Request.Payload)
		if !ok {
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					l.log.Error("PANIC in message handler!", slog.Any("err", r))
				}
			}()
			l.handler(ctx, msg)
		}()
	}
}

// decode unpacks a message event from an events_api envelope payload.
func (l *Listener) decode(payload []byte) (*event.Message, bool) {
	var cb callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		l.log.Error("failed to unmarshal event envelope.", slog.String("err", err.Error()))
		return nil, false
	}
	var inner innerEvent
	if err := json.Unmarshal(cb.Event, &inner); err != nil || inner.Type != "message" {
		return nil, false
	}
	if cb.EventID != "" {
		if err := l.seen.Add(cb.EventID, struct{}{}, cache.DefaultExpiration); err != nil {
			l.log.Debug("duplicate delivery skipped.", slog.String("event_id", cb.EventID))
			return nil, false
		}
	}
	msg, err := event.Decode(cb.Event)
	if err != nil {
		l.log.Error("failed to unmarshal message event.", slog.String("err", err.Error()))
		return nil, false
	}
	return msg, true
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary
