package markets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
)

type stubFetcher struct {
	payloads map[Signal]string
	errs     map[Signal]error

	mu      sync.Mutex
	queries map[Signal]string
}

func (s *stubFetcher) Fetch(ctx context.Context, signal Signal, query string) (string, error) {
	s.mu.Lock()
	if s.queries == nil {
		s.queries = make(map[Signal]string)
	}
	s.queries[signal] = query
	s.mu.Unlock()

	if err, ok := s.errs[signal]; ok {
		return "", err
	}
	if payload, ok := s.payloads[signal]; ok {
		return payload, nil
	}
	return "", fmt.Errorf("unexpected fetch for %s", signal)
}

var _ Fetcher = (*stubFetcher)(nil)

func TestTriggeredRulesAreIndependent(t *testing.T) {
	cases := []struct {
		query string
		want  []Signal
	}{
		{"gold vs bitcoin price", []Signal{SignalEquities, SignalIntraday, SignalMetals, SignalCrypto}},
		{"any news on gold?", []Signal{SignalNews, SignalMetals}},
		{"latest headlines", []Signal{SignalNews}},
		{"Is the STOCK MARKET up?", []Signal{SignalEquities, SignalIntraday}},
		{"tell me about ethereum", []Signal{SignalCrypto}},
		{"what is a balance sheet", nil},
	}

	for _, tc := range cases {
		got := Triggered(tc.query)
		if len(got) != len(tc.want) {
			t.Fatalf("query %q: expected %v, got %v", tc.query, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("query %q: expected %v, got %v", tc.query, tc.want, got)
			}
		}
	}
}

func TestDispatchNoTriggers(t *testing.T) {
	dispatcher := NewDispatcher(&stubFetcher{}, log.New(io.Discard, "", 0))

	results := dispatcher.Dispatch(context.Background(), "explain depreciation")
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if lines := results.ContextLines(); len(lines) != 0 {
		t.Fatalf("expected no context lines, got %v", lines)
	}
}

func TestDispatchIsolatesProviderFailures(t *testing.T) {
	fetcher := &stubFetcher{
		payloads: map[Signal]string{
			SignalMetals: `{"XAU": 2410.5}`,
		},
		errs: map[Signal]error{
			SignalCrypto: errors.New("provider down"),
		},
	}
	dispatcher := NewDispatcher(fetcher, log.New(io.Discard, "", 0))

	results := dispatcher.Dispatch(context.Background(), "gold or bitcoin?")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[SignalMetals].Err != nil {
		t.Fatalf("metals should have succeeded: %v", results[SignalMetals].Err)
	}
	if results[SignalMetals].Payload != `{"XAU": 2410.5}` {
		t.Fatalf("unexpected metals payload: %q", results[SignalMetals].Payload)
	}
	if results[SignalCrypto].Err == nil {
		t.Fatal("crypto should have failed")
	}

	lines := results.ContextLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 context lines, got %v", lines)
	}
	if lines[0] != `metals: {"XAU": 2410.5}` {
		t.Fatalf("unexpected metals line: %q", lines[0])
	}
	if lines[1] != "crypto: unavailable" {
		t.Fatalf("failed provider should render as unavailable, got %q", lines[1])
	}
}

func TestDispatchFetchesAllTriggeredSignals(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[Signal]string{
		SignalEquities: `{"quote": 1}`,
		SignalIntraday: `{"series": []}`,
		SignalMetals:   `{"XAU": 1}`,
		SignalCrypto:   `{"coins": 1}`,
	}}
	dispatcher := NewDispatcher(fetcher, log.New(io.Discard, "", 0))

	results := dispatcher.Dispatch(context.Background(), "gold vs bitcoin price")
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if _, ok := results[SignalNews]; ok {
		t.Fatal("news must not trigger for this query")
	}

	lines := results.ContextLines()
	for i, want := range []string{"equities: ", "intradaySeries: ", "metals: ", "crypto: "} {
		if !strings.HasPrefix(lines[i], want) {
			t.Fatalf("line %d should start with %q, got %q", i, want, lines[i])
		}
	}
}

func TestDispatchPassesQueryToEveryProvider(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[Signal]string{
		SignalNews:   `{"items": []}`,
		SignalMetals: `{"XAU": 1}`,
	}}
	dispatcher := NewDispatcher(fetcher, log.New(io.Discard, "", 0))

	query := "any news on gold?"
	dispatcher.Dispatch(context.Background(), query)

	for _, signal := range []Signal{SignalNews, SignalMetals} {
		if got := fetcher.queries[signal]; got != query {
			t.Fatalf("signal %s fetched with query %q, want %q", signal, got, query)
		}
	}
}
