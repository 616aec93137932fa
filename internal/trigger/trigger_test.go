package trigger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DispatchExtractsParams(t *testing.T) {
	r := NewRouter()
	var got Event
	r.Handle("/promo_queue/{sid}/{rid}", func(_ context.Context, ev Event) error {
		got = ev
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), Event{ID: "e1", Path: "promo_queue/s1/170000"}))
	assert.Equal(t, map[string]string{"sid": "s1", "rid": "170000"}, got.Params)
}

func TestRouter_Accepts(t *testing.T) {
	r := NewRouter()
	r.Handle("/queue/{uid}", func(context.Context, Event) error { return nil })

	assert.True(t, r.Accepts("queue/u1"))
	assert.True(t, r.Accepts("/queue/u1/"))
	assert.False(t, r.Accepts("queue"))
	assert.False(t, r.Accepts("queue/u1/extra"))
	assert.False(t, r.Accepts("sessions/s1"))
}

func TestRouter_DispatchUnknownPath(t *testing.T) {
	r := NewRouter()
	assert.Error(t, r.Dispatch(context.Background(), Event{ID: "e", Path: "nope"}))
}

func TestEvent_Empty(t *testing.T) {
	assert.True(t, Event{}.Empty())
	assert.True(t, Event{ID: "e"}.Empty())
	assert.True(t, Event{ID: "e", Data: json.RawMessage("null")}.Empty())
	assert.True(t, Event{ID: "e", Data: json.RawMessage(" {} ")}.Empty())
	assert.True(t, Event{Data: json.RawMessage(`{"a":1}`)}.Empty())
	assert.False(t, Event{ID: "e", Data: json.RawMessage(`{"a":1}`)}.Empty())
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "projects-p-events-1", SanitizeID("projects/p/events/1"))
}

func TestLocalFeed_PublishDispatchesWithUniqueIDs(t *testing.T) {
	r := NewRouter()
	var mu sync.Mutex
	ids := map[string]bool{}
	r.Handle("/queue/{uid}", func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		ids[ev.ID] = true
		assert.Equal(t, "u1", ev.Params["uid"])
		return nil
	})
	f := NewLocalFeed(r)

	require.NoError(t, f.Publish(context.Background(), "queue/u1", []byte(`{"a":1}`)))
	require.NoError(t, f.Publish(context.Background(), "queue/u1", []byte(`{"a":2}`)))
	f.Wait()

	assert.Len(t, ids, 2)
}
