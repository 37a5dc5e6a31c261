package slackbot

import (
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testListener() *Listener {
	return &Listener{log: discardLogger(), seen: cache.New(deliveryMemory, deliveryMemory)}
}

func TestDecode_Message(t *testing.T) {
	l := testListener()
	payload := `{"type":"event_callback","event_id":"Ev1","event":{"type":"message","channel":"C1",
		"user":"U1","text":"see https://notes.granola.ai/d/abc","ts":"1700000000.000100"}}`

	msg, ok := l.decode([]byte(payload))
	require.True(t, ok)
	assert.Equal(t, "C1", msg.Channel)
	assert.Equal(t, "U1", msg.User)
	assert.Equal(t, "see https://notes.granola.ai/d/abc", msg.Text)
}

func TestDecode_DuplicateDelivery(t *testing.T) {
	l := testListener()
	payload := []byte(`{"type":"event_callback","event_id":"Ev1","event":{"type":"message","text":"hi"}}`)

	_, ok := l.decode(payload)
	assert.True(t, ok)
	_, ok = l.decode(payload)
	assert.False(t, ok)
}

func TestDecode_SkipsOtherEvents(t *testing.T) {
	l := testListener()

	_, ok := l.decode([]byte(`{"type":"event_callback","event_id":"Ev2","event":{"type":"reaction_added"}}`))
	assert.False(t, ok)
	_, ok = l.decode([]byte(`{"type":"event_callback"}`))
	assert.False(t, ok)
	_, ok = l.decode([]byte(`not json`))
	assert.False(t, ok)
}

func TestWait(t *testing.T) {
	l := testListener()
	assert.True(t, l.Wait(time.Second))

	l.wg.Add(1)
	assert.False(t, l.Wait(10*time.Millisecond))
	l.wg.Done()
	assert.True(t, l.Wait(time.Second))
}
