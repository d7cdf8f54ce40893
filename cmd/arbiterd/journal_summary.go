package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"runway-arbiter/internal/journal"
	"runway-arbiter/internal/word"
)

type journalSummary struct {
	Segments    int
	Exchanges   int
	Replies     int
	Resets      int
	MaxDuration time.Duration
	KindCounts  map[word.Kind]int
}

func summarizeJournal(records []journal.Record) journalSummary {
	s := journalSummary{KindCounts: map[word.Kind]int{}}
	origin := time.Duration(0)
	segments := 0
	for _, r := range records {
		switch r.Kind {
		case journal.KindStart:
			segments++
			origin = r.At
			continue
		case journal.KindReset:
			s.Resets++
			continue
		case journal.KindRx:
			s.Exchanges++
			s.KindCounts[r.Word.Kind()]++
		case journal.KindTx:
			s.Replies++
		}
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}
	}
	if segments == 0 && s.Exchanges > 0 {
		segments = 1
	}
	s.Segments = segments
	return s
}

// verifyJournal prints a summary of the journal at path and checks that a
// fresh arbiter reproduces every recorded reply.
func verifyJournal(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := journal.Load(path)
	if err != nil {
		return err
	}

	s := summarizeJournal(recs)
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "exchanges: %d\n", s.Exchanges)
	fmt.Fprintf(w, "replies: %d\n", s.Replies)
	fmt.Fprintf(w, "resets: %d\n", s.Resets)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	kinds := make([]int, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)
	fmt.Fprintf(w, "inbound_kinds:\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", word.Kind(k), s.KindCounts[word.Kind(k)])
	}

	n, err := journal.Verify(recs)
	if err != nil {
		fmt.Fprintf(w, "verify: FAIL after %d exchanges\n", n)
		return err
	}
	fmt.Fprintf(w, "verify: ok (%d exchanges)\n", n)
	return nil
}
