package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

var base = time.Date(2026, 5, 17, 8, 0, 0, 0, time.UTC)

// clock advances one second per reading so status changes are ordered.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recorder struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recorder) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) ops() []model.SyncOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SyncOperation, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Operation
	}
	return out
}

// faultyStore passes everything through to Store except the armed number
// of Update calls, which abort, and Delete calls, which fail.
type faultyStore struct {
	store.Store
	mu             sync.Mutex
	aborts         int
	deleteFailures int
}

func (f *faultyStore) abortUpdates(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = n
}

func (f *faultyStore) failDeletes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFailures = n
}

func (f *faultyStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	f.mu.Lock()
	abort := f.aborts > 0
	if abort {
		f.aborts--
	}
	f.mu.Unlock()
	if abort {
		return store.ErrAborted
	}
	return f.Store.Update(ctx, fn)
}

func (f *faultyStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	fail := f.deleteFailures > 0
	if fail {
		f.deleteFailures--
	}
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("store: delete %s: connection reset", path)
	}
	return f.Store.Delete(ctx, path)
}

type env struct {
	t      *testing.T
	store  *store.Redis
	faults *faultyStore
	clock  *clock
	notes  *recorder
	proc   *Processor
	promo  *Promoter
	router *trigger.Router
	seq    int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := store.NewRedis(rdb, store.WithRetries(1000))
	faults := &faultyStore{Store: st}
	c := &clock{t: base}
	notes := &recorder{}
	dedup := NewDedupGuard(st, 0)
	e := &env{
		t:      t,
		store:  st,
		faults: faults,
		clock:  c,
		notes:  notes,
		proc:   NewProcessor(faults, dedup, notes, 0, WithClock(c.Now)),
		promo:  NewPromoter(faults, dedup, notes, WithClock(c.Now)),
		router: trigger.NewRouter(),
	}
	e.router.Handle(QueuePattern, e.proc.HandleRequest)
	e.router.Handle(PromotionPattern, e.promo.HandlePromotion)
	return e
}

func (e *env) seedSession(id string, start, end time.Time, capacity int) {
	e.t.Helper()
	ctx := context.Background()
	require.NoError(e.t, e.store.Set(ctx, SessionPath(id), model.Session{ID: id, Start: start, End: end}))
	seats := model.Seats{Capacity: capacity}
	seats.Refresh()
	require.NoError(e.t, e.store.Set(ctx, SeatsPath(id), seats))
}

// submit writes the queue entry and delivers its trigger event.
func (e *env) submit(uid, sid string, action model.Action) (string, trigger.Event) {
	e.t.Helper()
	e.seq++
	rid := fmt.Sprintf("req-%d", e.seq)
	req := model.Request{SessionID: sid, Action: action, RequestID: rid}
	ok, err := e.store.Create(context.Background(), QueuePath(uid), req, 0)
	require.NoError(e.t, err)
	require.True(e.t, ok, "queue slot of %s must be free", uid)

	data, err := json.Marshal(req)
	require.NoError(e.t, err)
	ev := trigger.Event{ID: "evt/" + uid + "/" + rid, Path: QueuePath(uid), Data: data}
	require.NoError(e.t, e.router.Dispatch(context.Background(), ev))
	return rid, ev
}

// promote delivers every pending promotion trigger of sid.
func (e *env) promote(sid string) {
	e.t.Helper()
	ctx := context.Background()
	rids, err := e.store.Children(ctx, store.Join(pathPromoQueue, sid))
	require.NoError(e.t, err)
	for _, rid := range rids {
		ev := trigger.Event{ID: "promo-" + sid + "-" + rid, Path: PromoPath(sid, rid), Data: json.RawMessage("true")}
		require.NoError(e.t, e.router.Dispatch(ctx, ev))
	}
}

func (e *env) seats(sid string) model.Seats {
	e.t.Helper()
	var s model.Seats
	require.NoError(e.t, e.store.Get(context.Background(), SeatsPath(sid), &s))
	return s
}

func (e *env) reservation(sid, uid string) model.Reservation {
	e.t.Helper()
	var r model.Reservation
	err := e.store.Get(context.Background(), ReservationPath(sid, uid), &r)
	if err != nil {
		require.ErrorIs(e.t, err, store.ErrNotFound)
	}
	return r
}

func (e *env) queued(uid string) bool {
	e.t.Helper()
	err := e.store.Get(context.Background(), QueuePath(uid), nil)
	if err == nil {
		return true
	}
	require.ErrorIs(e.t, err, store.ErrNotFound)
	return false
}
