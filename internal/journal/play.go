package journal

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"runway-arbiter/internal/arbiter"
	"runway-arbiter/internal/word"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play re-drives the inbound side of a journal with its relative timing.
//
// cb is invoked for every rx and RESET record; tx records are skipped. START
// markers reset the origin. speedMultiplier: 1.0 = real time, 2.0 = twice as
// fast.
func Play(records []Record, speedMultiplier float64, sleeper Sleeper, cb func(r Record) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	var origin, lastAt time.Duration
	haveLast := false
	for _, r := range records {
		switch r.Kind {
		case KindStart:
			origin = r.At
			lastAt = 0
			haveLast = false
			continue
		case KindTx:
			continue
		}

		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if haveLast {
			wait := time.Duration(float64(at-lastAt) / speedMultiplier)
			if wait > 0 {
				sleeper.Sleep(wait)
			}
		}
		if err := cb(r); err != nil {
			return err
		}
		lastAt = at
		haveLast = true
	}
	return nil
}

// Mismatch describes the first exchange whose replayed replies differ from
// the recorded ones.
type Mismatch struct {
	Index int
	In    word.Word
	Want  []word.Word
	Got   []word.Word
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("exchange %d (%s): recorded replies %v, replayed %v", m.Index, m.In, m.Want, m.Got)
}

// Verify replays every inbound word into a fresh arbiter and checks that the
// replies match what was recorded. It returns the number of exchanges checked
// and a *Mismatch on the first divergence.
func Verify(records []Record) (int, error) {
	arb := arbiter.New()
	checked := 0
	for i := 0; i < len(records); i++ {
		r := records[i]
		switch r.Kind {
		case KindStart, KindReset:
			// Each recording session starts from a powered-on arbiter.
			arb.Reset()
			continue
		case KindRx:
		default:
			continue
		}

		var want []word.Word
		for i+1 < len(records) && records[i+1].Kind == KindTx {
			i++
			want = append(want, records[i].Word)
		}
		got := arb.Dispatch(r.Word)
		if len(got) != 0 || len(want) != 0 {
			if !reflect.DeepEqual(got, want) {
				return checked, &Mismatch{Index: checked, In: r.Word, Want: want, Got: got}
			}
		}
		checked++
	}
	return checked, nil
}
