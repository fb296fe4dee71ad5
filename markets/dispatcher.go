package markets

import (
	"context"
	"log"
	"strings"
	"sync"
)

// rules map trigger keywords to the signals they fetch. Rules are evaluated
// independently; a query may match any subset of them.
var rules = []struct {
	keywords []string
	signals  []Signal
}{
	{keywords: []string{"news", "headline"}, signals: []Signal{SignalNews}},
	{keywords: []string{"stock", "price", "market", "finance"}, signals: []Signal{SignalEquities, SignalIntraday}},
	{keywords: []string{"metal", "gold", "silver", "copper"}, signals: []Signal{SignalMetals}},
	{keywords: []string{"crypto", "bitcoin", "ethereum", "coin"}, signals: []Signal{SignalCrypto}},
}

// Result is one provider's outcome: either the raw payload or the error that
// made it unavailable.
type Result struct {
	Payload string
	Err     error
}

// Results maps triggered signals to their outcomes. Untriggered signals are
// absent.
type Results map[Signal]Result

// ContextLines renders fetched payloads one signal per line, prefixed by the
// signal name, in the fixed AllSignals order. Failed providers render as
// unavailable so partial data still reaches the prompt.
func (r Results) ContextLines() []string {
	lines := make([]string, 0, len(r))
	for _, signal := range AllSignals {
		result, ok := r[signal]
		if !ok {
			continue
		}
		if result.Err != nil {
			lines = append(lines, string(signal)+": unavailable")
			continue
		}
		lines = append(lines, string(signal)+": "+result.Payload)
	}
	return lines
}

// Dispatcher matches query keywords against the rule table and fetches every
// triggered signal concurrently, isolating per-provider failures.
type Dispatcher struct {
	fetcher Fetcher
	logger  *log.Logger
}

func NewDispatcher(fetcher Fetcher, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{fetcher: fetcher, logger: logger}
}

// Triggered returns the signals whose keywords occur in the lower-cased
// query, in AllSignals order.
func Triggered(query string) []Signal {
	lowered := strings.ToLower(query)

	matched := make(map[Signal]bool)
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				for _, signal := range rule.signals {
					matched[signal] = true
				}
				break
			}
		}
	}

	triggered := make([]Signal, 0, len(matched))
	for _, signal := range AllSignals {
		if matched[signal] {
			triggered = append(triggered, signal)
		}
	}
	return triggered
}

// Dispatch fetches all triggered signals in parallel. A provider failure is
// logged and recorded on its own signal; it never aborts the other fetches.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) Results {
	triggered := Triggered(query)
	results := make(Results, len(triggered))
	if len(triggered) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, signal := range triggered {
		wg.Add(1)
		go func(signal Signal) {
			defer wg.Done()
			payload, err := d.fetcher.Fetch(ctx, signal, query)
			if err != nil {
				d.logger.Printf("signal %s unavailable: %v", signal, err)
			}
			mu.Lock()
			results[signal] = Result{Payload: payload, Err: err}
			mu.Unlock()
		}(signal)
	}
	wg.Wait()

	return results
}
