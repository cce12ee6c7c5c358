package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Fetch modes accepted by Dispatcher.Fetch.
const (
	ModeAuto    = "auto"
	ModeHTTP    = "http"
	ModeBrowser = "browser"
)

// Dispatcher races engines with staged escalation: the cheapest engine
// starts first and heavier ones join after their delay unless a winner
// has already been found.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *DomainMemory
}

// NewDispatcher creates a Dispatcher. engines[i] starts after
// escalationDelays[i]; missing delays are treated as 0.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *DomainMemory) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
	}
}

// Fetch resolves the request according to mode. "http" uses only the HTTP
// engine, "browser" races only the browser engines, anything else runs the
// full dispatch.
func (d *Dispatcher) Fetch(ctx context.Context, mode string, req *FetchRequest) (*FetchResult, error) {
	switch mode {
	case ModeHTTP:
		eng := d.engine("http")
		if eng == nil {
			return nil, fmt.Errorf("dispatcher: no http engine configured")
		}
		return eng.Fetch(ctx, req)
	case ModeBrowser:
		var browsers []Engine
		var delays []time.Duration
		for i, eng := range d.engines {
			if eng.Name() != "http" {
				browsers = append(browsers, eng)
				delays = append(delays, d.escalationDelays[i])
			}
		}
		if len(browsers) == 0 {
			return nil, fmt.Errorf("dispatcher: no browser engine configured")
		}
		// Browser delays are relative to the first browser engine.
		base := delays[0]
		for i := range delays {
			delays[i] -= base
		}
		sub := &Dispatcher{engines: browsers, escalationDelays: delays, memory: d.memory}
		return sub.race(ctx, req, extractDomain(req.URL))
	default:
		return d.Dispatch(ctx, req)
	}
}

// Dispatch runs the remembered engine for the domain when there is one and
// otherwise the full race. If all engines fail it returns the last error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	domain := extractDomain(req.URL)

	if remembered := d.memory.Get(domain); remembered != "" {
		if eng := d.engine(remembered); eng != nil {
			slog.Debug("domain memory hit", "domain", domain, "engine", remembered)
			result, err := eng.Fetch(ctx, req)
			if err == nil {
				return result, nil
			}
			slog.Info("domain memory miss (engine failed), running full race",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Delete(domain)
		}
	}

	return d.race(ctx, req, domain)
}

func (d *Dispatcher) engine(name string) Engine {
	for _, eng := range d.engines {
		if eng.Name() == name {
			return eng
		}
	}
	return nil
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(delay):
				}
			}
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, d.escalationDelays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		raceCancel()
		slog.Info("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		d.memory.Set(domain, rr.result.EngineName)
		return rr.result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
