package trigger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
)

// LocalFeed delivers store writes to a Router in-process, one goroutine per
// write.  It is used when no broker is configured and in tests.
type LocalFeed struct {
	router *Router
	log    *log.Logger
	wg     sync.WaitGroup
}

// NewLocalFeed returns a feed dispatching into router.
func NewLocalFeed(router *Router) *LocalFeed {
	return &LocalFeed{router: router, log: logging.New("trigger-local")}
}

func (f *LocalFeed) Accepts(path string) bool { return f.router.Accepts(path) }

// Publish dispatches asynchronously under a fresh event id.  Handlers run
// with a background context since the writer's request may end first.
func (f *LocalFeed) Publish(_ context.Context, path string, data []byte) error {
	ev := Event{ID: uuid.NewString(), Path: path, Data: append([]byte(nil), data...)}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.router.Dispatch(context.Background(), ev); err != nil {
			f.log.Errorf("dispatch %s (%s): %v", ev.Path, ev.ID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched handler, including those triggered by
// writes made inside handlers, has returned.
func (f *LocalFeed) Wait() { f.wg.Wait() }
