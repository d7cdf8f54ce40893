package tower

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"runway-arbiter/internal/word"
)

type recorder struct {
	mu  sync.Mutex
	got []Exchange
}

func (r *recorder) Deliver(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ex)
}

func (r *recorder) exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.got...)
}

func TestSubmit_DeliversToSubscribersInOrder(t *testing.T) {
	tw := New(nil)
	var calls []string
	tw.Subscribe(SubscriberFunc(func(ex Exchange) { calls = append(calls, "a") }))
	tw.Subscribe(SubscriberFunc(func(ex Exchange) { calls = append(calls, "b") }))
	rec := &recorder{}
	tw.Subscribe(rec)

	replies := tw.Submit("serial", word.IdentityRequest())
	if !reflect.DeepEqual(replies, []word.Word{word.Assigned(0)}) {
		t.Fatalf("replies=%v", replies)
	}
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Fatalf("calls=%v want [a b]", calls)
	}
	got := rec.exchanges()
	if len(got) != 1 || got[0].Source != "serial" || got[0].In != word.IdentityRequest() {
		t.Fatalf("exchanges=%+v", got)
	}
}

func TestSubmit_UnsolicitedRepliesFollowDirect(t *testing.T) {
	tw := New(nil)
	rec := &recorder{}
	tw.Subscribe(rec)
	for i := 0; i < 3; i++ {
		tw.Submit("t", word.IdentityRequest())
	}
	tw.Submit("t", word.Request(0, word.Takeoff))
	tw.Submit("t", word.Request(1, word.Takeoff))
	tw.Submit("t", word.Request(2, word.Takeoff))
	tw.Submit("t", word.Declare(0, word.Takeoff, 0))

	got := rec.exchanges()
	last := got[len(got)-1]
	if !reflect.DeepEqual(last.Replies, []word.Word{word.Clear(2, word.Takeoff, 0)}) {
		t.Fatalf("declare replies=%v", last.Replies)
	}
	if st := tw.Stats(); st.WordsIn != 7 || st.RepliesOut != 7 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestUnsubscribe(t *testing.T) {
	tw := New(nil)
	rec := &recorder{}
	unsub := tw.Subscribe(rec)
	tw.Submit("t", word.IdentityRequest())
	unsub()
	unsub()
	tw.Submit("t", word.IdentityRequest())
	if n := len(rec.exchanges()); n != 1 {
		t.Fatalf("deliveries=%d want 1", n)
	}
}

func TestSubmitRaw_DropsMalformed(t *testing.T) {
	tw := New(nil)
	rec := &recorder{}
	tw.Subscribe(rec)
	_, err := tw.SubmitRaw("tcp", 0x3FF)
	if !errors.Is(err, word.ErrWordOverflow) || !IsMalformed(err) {
		t.Fatalf("err=%v want ErrWordOverflow", err)
	}
	if len(rec.exchanges()) != 0 {
		t.Fatalf("malformed word reached subscribers")
	}
	if st := tw.Stats(); st.Malformed != 1 || st.WordsIn != 0 {
		t.Fatalf("stats=%+v", st)
	}
	replies, err := tw.SubmitRaw("tcp", uint16(word.IdentityRequest()))
	if err != nil || len(replies) != 1 {
		t.Fatalf("replies=%v err=%v", replies, err)
	}
}

func TestReset(t *testing.T) {
	tw := New(nil)
	rec := &recorder{}
	tw.Subscribe(rec)
	tw.Submit("t", word.IdentityRequest())
	tw.Reset()
	if snap := tw.Snapshot(); snap.Active != 0 {
		t.Fatalf("active=%d after reset", snap.Active)
	}
	got := rec.exchanges()
	if got[len(got)-1].Source != SourceReset {
		t.Fatalf("last exchange source=%q want reset", got[len(got)-1].Source)
	}
	if tw.Stats().Resets != 1 {
		t.Fatalf("resets=%d", tw.Stats().Resets)
	}
}

func TestSubmit_ConcurrentCallersGetUniqueIdentities(t *testing.T) {
	tw := New(nil)
	var wg sync.WaitGroup
	ids := make(chan word.Word, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, r := range tw.Submit("c", word.IdentityRequest()) {
				ids <- r
			}
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[uint8]bool)
	for r := range ids {
		if r.Full() {
			t.Fatalf("unexpected full reply")
		}
		if seen[r.ID()] {
			t.Fatalf("identity %d assigned twice", r.ID())
		}
		seen[r.ID()] = true
	}
	if len(seen) != 16 {
		t.Fatalf("assigned=%d want 16", len(seen))
	}
}
