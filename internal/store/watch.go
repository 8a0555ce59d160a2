package store

import (
	"context"
	"sync"
	"time"

	"github.com/avosseler/costmanager/internal/models"
)

// watchGracePeriod keeps a query's shared watcher alive briefly after its last
// subscriber leaves, so a watch torn down and immediately re-established
// attaches to the live watcher instead of thrashing the subscriber set.
const watchGracePeriod = 5 * time.Second

// notifier fans a change signal out to every live watcher feed. Feeds are
// conflated: a watcher that has not drained its signal gets no second one
// queued behind it.
type notifier struct {
	mu    sync.Mutex
	feeds map[*feed]struct{}
}

type feed struct {
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{feeds: make(map[*feed]struct{})}
}

func (n *notifier) publish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for f := range n.feeds {
		select {
		case f.ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) subscribe() *feed {
	f := &feed{ch: make(chan struct{}, 1)}
	n.mu.Lock()
	n.feeds[f] = struct{}{}
	n.mu.Unlock()
	return f
}

func (n *notifier) unsubscribe(f *feed) {
	n.mu.Lock()
	delete(n.feeds, f)
	n.mu.Unlock()
}

// sendLatest delivers v, replacing any undelivered previous snapshot. Each
// emission is the complete authoritative state, so dropping a stale one in
// favor of the newest is always correct.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// watchHub runs one shared watcher per query key. The watcher loads a fresh
// snapshot on every published change and fans it out to all of the key's
// subscribers; it keeps running for the grace duration after the last
// subscriber leaves, and a re-subscriber inside that window attaches to it and
// receives its cached snapshot without a fresh read.
type watchHub[T any] struct {
	notifier *notifier
	grace    time.Duration

	mu       sync.Mutex
	watchers map[int64]*hubWatcher[T]
}

type hubWatcher[T any] struct {
	feed    *feed
	stop    chan struct{}
	subs    map[chan T]struct{}
	last    T
	hasLast bool
	linger  *time.Timer
}

func newWatchHub[T any](n *notifier, grace time.Duration) *watchHub[T] {
	return &watchHub[T]{notifier: n, grace: grace, watchers: make(map[int64]*hubWatcher[T])}
}

// watch attaches a subscriber to the key's shared watcher, starting one when
// none is live. The returned channel carries at most one pending snapshot and
// closes once ctx is cancelled; the shared watcher itself lingers for the
// grace duration.
func (h *watchHub[T]) watch(ctx context.Context, key int64, load func() (T, error)) <-chan T {
	out := make(chan T, 1)

	h.mu.Lock()
	w, ok := h.watchers[key]
	if !ok {
		w = &hubWatcher[T]{
			feed: h.notifier.subscribe(),
			stop: make(chan struct{}),
			subs: make(map[chan T]struct{}),
		}
		h.watchers[key] = w
		go h.run(w, load)
	}
	if w.linger != nil {
		w.linger.Stop()
		w.linger = nil
	}
	w.subs[out] = struct{}{}
	if w.hasLast {
		sendLatest(out, w.last)
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.detach(key, w, out)
	}()
	return out
}

func (h *watchHub[T]) run(w *hubWatcher[T], load func() (T, error)) {
	emit := func() {
		snap, err := load()
		if err != nil {
			return
		}
		h.mu.Lock()
		w.last = snap
		w.hasLast = true
		for ch := range w.subs {
			sendLatest(ch, snap)
		}
		h.mu.Unlock()
	}
	emit()
	for {
		select {
		case <-w.stop:
			return
		case <-w.feed.ch:
			emit()
		}
	}
}

func (h *watchHub[T]) detach(key int64, w *hubWatcher[T], out chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := w.subs[out]; !ok {
		return
	}
	delete(w.subs, out)
	close(out)
	if len(w.subs) > 0 {
		return
	}
	w.linger = time.AfterFunc(h.grace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if len(w.subs) > 0 || h.watchers[key] != w {
			return
		}
		delete(h.watchers, key)
		h.notifier.unsubscribe(w.feed)
		close(w.stop)
	})
}

// WatchAll emits the full aggregate list once on subscribe and again after
// every store mutation, until ctx is cancelled. The channel carries at most
// one pending snapshot; consumers must treat every value as the whole current
// state, never a delta. Loads run detached from any one subscriber's context
// because the backing watcher is shared.
func (s *PurchaseStore) WatchAll(ctx context.Context) <-chan []models.PurchaseWithPositions {
	return s.allWatch.watch(ctx, 0, func() ([]models.PurchaseWithPositions, error) {
		return s.GetAllPurchasesWithPositions(context.Background())
	})
}

// WatchPurchase is WatchAll for a single aggregate. A nil emission means the
// purchase does not (or no longer does) exist.
func (s *PurchaseStore) WatchPurchase(ctx context.Context, id int64) <-chan *models.PurchaseWithPositions {
	return s.oneWatch.watch(ctx, id, func() (*models.PurchaseWithPositions, error) {
		return s.GetPurchaseWithPositions(context.Background(), id)
	})
}
