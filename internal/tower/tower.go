// Package tower hosts the arbiter for concurrent transports.
//
// The arbiter itself is single-threaded; Tower serializes every inbound word
// behind one mutex and fans each resulting Exchange out to subscribers before
// the next word is accepted, so every subscriber sees exchanges in the same
// order the arbiter processed them.
package tower

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"runway-arbiter/internal/arbiter"
	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/word"
)

// Exchange is one inbound word and every reply it produced, in order.
type Exchange struct {
	At      time.Time
	Source  string
	In      word.Word
	Replies []word.Word
}

// Subscriber receives every exchange. Deliver runs with the tower locked and
// must not block or call back into the tower.
type Subscriber interface {
	Deliver(ex Exchange)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ex Exchange)

func (f SubscriberFunc) Deliver(ex Exchange) { f(ex) }

type Stats struct {
	WordsIn    uint64 `json:"words_in"`
	RepliesOut uint64 `json:"replies_out"`
	Malformed  uint64 `json:"malformed"`
	Resets     uint64 `json:"resets"`
}

type Tower struct {
	log *logging.Logger
	now func() time.Time

	mu     sync.Mutex
	arb    *arbiter.Arbiter
	subs   map[int]Subscriber
	order  []int
	nextID int

	wordsIn    atomic.Uint64
	repliesOut atomic.Uint64
	malformed  atomic.Uint64
	resets     atomic.Uint64
}

func New(log *logging.Logger) *Tower {
	return &Tower{
		log:  log,
		now:  time.Now,
		arb:  arbiter.New(),
		subs: make(map[int]Subscriber),
	}
}

// Subscribe registers s and returns a function that removes it.
func (t *Tower) Subscribe(s Subscriber) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = s
	t.order = append(t.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			for i, v := range t.order {
				if v == id {
					t.order = append(t.order[:i], t.order[i+1:]...)
					break
				}
			}
		})
	}
}

// SubmitRaw validates raw and submits it. Values wider than a word are
// counted and dropped without a reply since their identity field cannot be
// trusted.
func (t *Tower) SubmitRaw(source string, raw uint16) ([]word.Word, error) {
	w, err := word.Decode(raw)
	if err != nil {
		t.malformed.Add(1)
		t.log.Warn("dropping malformed word", slog.String("source", source), slog.Any("err", err))
		return nil, err
	}
	return t.Submit(source, w), nil
}

// Submit runs w through the arbiter and delivers the exchange to every
// subscriber. The replies are returned as well.
func (t *Tower) Submit(source string, w word.Word) []word.Word {
	t.mu.Lock()
	defer t.mu.Unlock()

	replies := t.arb.Dispatch(w)
	t.wordsIn.Add(1)
	t.repliesOut.Add(uint64(len(replies)))

	ex := Exchange{At: t.now(), Source: source, In: w, Replies: replies}
	if t.log != nil {
		t.log.Debug("exchange",
			slog.String("source", source),
			slog.String("in", w.String()),
			slog.Any("replies", replyStrings(replies)))
	}
	for _, id := range t.order {
		t.subs[id].Deliver(ex)
	}
	return replies
}

// Reset returns the arbiter to its power-on state. Subscribers receive an
// Exchange with Source "reset" and no words so they can clear derived state.
func (t *Tower) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arb.Reset()
	t.resets.Add(1)
	t.log.Info("arbiter reset")
	ex := Exchange{At: t.now(), Source: SourceReset}
	for _, id := range t.order {
		t.subs[id].Deliver(ex)
	}
}

// SourceReset marks the Exchange delivered by Reset.
const SourceReset = "reset"

func (t *Tower) Snapshot() arbiter.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arb.Snapshot()
}

func (t *Tower) Stats() Stats {
	return Stats{
		WordsIn:    t.wordsIn.Load(),
		RepliesOut: t.repliesOut.Load(),
		Malformed:  t.malformed.Load(),
		Resets:     t.resets.Load(),
	}
}

// IsMalformed reports whether err came from an oversized word.
func IsMalformed(err error) bool { return errors.Is(err, word.ErrWordOverflow) }

func replyStrings(ws []word.Word) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}
