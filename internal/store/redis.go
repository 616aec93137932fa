package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
)

const (
	defaultRetries = 25
	indexPrefix    = "idx:"
)

// Redis implements Store on top of a Redis server.  Each path is one string
// key holding JSON, and the direct children of every parent path are kept in
// a set under "idx:<parent>".  Update uses WATCH/MULTI/EXEC and re-runs the
// transaction function on conflict.
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	retries int
	feed    ChangeFeed
	log     *log.Logger
}

// Option configures a Redis store.
type Option func(*Redis)

// WithPrefix namespaces every key as "<p>:<path>".
func WithPrefix(p string) Option {
	return func(r *Redis) {
		if p = strings.TrimSuffix(p, ":"); p != "" {
			r.prefix = p + ":"
		}
	}
}

// WithRetries sets how many times a conflicting transaction is retried.
func WithRetries(n int) Option {
	return func(r *Redis) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithChangeFeed publishes committed writes to feed.
func WithChangeFeed(feed ChangeFeed) Option { return func(r *Redis) { r.feed = feed } }

// WithLogger overrides the store logger.
func WithLogger(l *log.Logger) Option { return func(r *Redis) { r.log = l } }

// NewRedis returns a Store backed by rdb.
func NewRedis(rdb redis.UniversalClient, opts ...Option) *Redis {
	r := &Redis{rdb: rdb, retries: defaultRetries, log: logging.New("store")}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Redis) key(path string) string { return r.prefix + Clean(path) }

func (r *Redis) indexKey(parent string) string { return r.prefix + indexPrefix + parent }

func (r *Redis) Get(ctx context.Context, path string, v any) error {
	b, err := r.rdb.Get(ctx, r.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: get %s: %w", path, err)
	}
	return decode(path, b, v)
}

func (r *Redis) GetMany(ctx context.Context, paths []string) ([][]byte, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = r.key(p)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: mget: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (r *Redis) Set(ctx context.Context, path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	parent, name := split(path)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(path), b, 0)
		if parent != "" {
			p.SAdd(ctx, r.indexKey(parent), name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return r.publish(ctx, Clean(path), b)
}

func (r *Redis) Create(ctx context.Context, path string, v any, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("store: encode %s: %w", path, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.rdb.SetNX(ctx, r.key(path), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: create %s: %w", path, err)
	}
	if !ok {
		return false, nil
	}
	if parent, name := split(path); parent != "" && ttl == 0 {
		if err := r.rdb.SAdd(ctx, r.indexKey(parent), name).Err(); err != nil {
			return true, fmt.Errorf("store: index %s: %w", path, err)
		}
	}
	return true, r.publish(ctx, Clean(path), b)
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	parent, name := split(path)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(path))
		if parent != "" {
			p.SRem(ctx, r.indexKey(parent), name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", path, err)
	}
	return nil
}

func (r *Redis) Children(ctx context.Context, path string) ([]string, error) {
	names, err := r.rdb.SMembers(ctx, r.indexKey(Clean(path))).Result()
	if err != nil {
		return nil, fmt.Errorf("store: children %s: %w", path, err)
	}
	sort.Strings(names)
	return names, nil
}

// fnError marks an error returned by the caller's transaction function so it
// is not confused with a commit conflict.
type fnError struct{ err error }

func (e *fnError) Error() string { return e.err.Error() }
func (e *fnError) Unwrap() error { return e.err }

func (r *Redis) Update(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt <= r.retries; attempt++ {
		tx := &redisTx{store: r, ctx: ctx}
		err := r.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx.rtx = rtx
			if err := fn(tx); err != nil {
				return &fnError{err: err}
			}
			if len(tx.writes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				tx.flush(p)
				return nil
			})
			return err
		})
		var fe *fnError
		switch {
		case err == nil:
			return tx.publish()
		case errors.As(err, &fe):
			return fe.err
		case errors.Is(err, redis.TxFailedErr):
			r.log.Debugf("transaction conflict, attempt %d", attempt+1)
			continue
		default:
			return fmt.Errorf("store: update: %w", err)
		}
	}
	return ErrAborted
}

func (r *Redis) publish(ctx context.Context, path string, data []byte) error {
	if r.feed == nil || !r.feed.Accepts(path) {
		return nil
	}
	if err := r.feed.Publish(ctx, path, data); err != nil {
		return fmt.Errorf("store: publish change %s: %w", path, err)
	}
	return nil
}

type write struct {
	path string
	data []byte // nil means delete
}

type redisTx struct {
	store  *Redis
	ctx    context.Context
	rtx    *redis.Tx
	writes []write
}

// pending returns the buffered write for path, if any.
func (t *redisTx) pending(path string) (write, bool) {
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].path == path {
			return t.writes[i], true
		}
	}
	return write{}, false
}

func (t *redisTx) Get(path string, v any) error {
	path = Clean(path)
	if w, ok := t.pending(path); ok {
		if w.data == nil {
			return ErrNotFound
		}
		return decode(path, w.data, v)
	}
	key := t.store.key(path)
	if err := t.rtx.Watch(t.ctx, key).Err(); err != nil {
		return fmt.Errorf("store: watch %s: %w", path, err)
	}
	b, err := t.rtx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: get %s: %w", path, err)
	}
	return decode(path, b, v)
}

func (t *redisTx) Children(path string) ([]string, error) {
	key := t.store.indexKey(Clean(path))
	if err := t.rtx.Watch(t.ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("store: watch %s: %w", path, err)
	}
	names, err := t.rtx.SMembers(t.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: children %s: %w", path, err)
	}
	sort.Strings(names)
	return names, nil
}

func (t *redisTx) Set(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	t.writes = append(t.writes, write{path: Clean(path), data: b})
	return nil
}

func (t *redisTx) Delete(path string) {
	t.writes = append(t.writes, write{path: Clean(path)})
}

func (t *redisTx) flush(p redis.Pipeliner) {
	for _, w := range t.writes {
		parent, name := split(w.path)
		if w.data == nil {
			p.Del(t.ctx, t.store.key(w.path))
			if parent != "" {
				p.SRem(t.ctx, t.store.indexKey(parent), name)
			}
			continue
		}
		p.Set(t.ctx, t.store.key(w.path), w.data, 0)
		if parent != "" {
			p.SAdd(t.ctx, t.store.indexKey(parent), name)
		}
	}
}

func (t *redisTx) publish() error {
	var first error
	for _, w := range t.writes {
		if w.data == nil {
			continue
		}
		if err := t.store.publish(t.ctx, w.path, w.data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decode(path string, b []byte, v any) error {
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}
