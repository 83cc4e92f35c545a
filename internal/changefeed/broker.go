// Package changefeed is an in-process change notification broker. Writers
// publish a Change after a successful store write; subscribers register a
// callback for a table (optionally narrowed by a filter) and receive changes
// synchronously, in publish order.
package changefeed

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Op is the kind of write that produced a change.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Tables that publish changes.
const (
	TablePrices   = "gold_prices"
	TablePosts    = "automated_blog_posts"
	TableArticles = "articles"
	TableQueue    = "indexing_queue"
	TableSiteFile = "site_files"
)

// Tables lists every table that publishes changes.
func Tables() []string {
	return []string{TablePrices, TablePosts, TableArticles, TableQueue, TableSiteFile}
}

// KnownTable reports whether table publishes changes.
func KnownTable(table string) bool {
	for _, t := range Tables() {
		if t == table {
			return true
		}
	}
	return false
}

// Change describes one committed write. Key is the row's natural key (date,
// slug, entry id or file name).
type Change struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	Key   string    `json:"key"`
	At    time.Time `json:"at"`
}

// Filter narrows a subscription; nil accepts every change on the table.
type Filter func(Change) bool

// Handler receives a change.
type Handler func(Change)

type subscription struct {
	id     string
	filter Filter
	fn     Handler
}

// Broker fans changes out to subscribers. The zero value is not usable; use New.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for changes on table. The returned function removes
// the subscription and is safe to call more than once.
func (b *Broker) Subscribe(table string, filter Filter, fn Handler) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[table] = append(b.subs[table], subscription{id: id, filter: filter, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[table]
			for i, s := range list {
				if s.id == id {
					b.subs[table] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[table]) == 0 {
				delete(b.subs, table)
			}
		})
	}
}

// Publish delivers c to every matching subscriber of c.Table. A panicking
// handler is logged and does not affect the others.
func (b *Broker) Publish(c Change) {
	if b == nil {
		return
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[c.Table]...)
	b.mu.RUnlock()

	for _, s := range list {
		if s.filter != nil && !s.filter(c) {
			continue
		}
		deliver(s, c)
	}
}

// Subscribers reports the number of active subscriptions for table.
func (b *Broker) Subscribers(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[table])
}

func deliver(s subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("table", c.Table).
				Str("key", c.Key).
				Msg("changefeed subscriber panicked")
		}
	}()
	s.fn(c)
}
