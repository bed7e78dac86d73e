// Package rates converts monetary amounts between currencies using a
// public daily-rate feed.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultFeedURL is the versioned rate feed. The placeholder order is
// lookup key ("YYYY-MM-DD" or "latest") then lower-cased source currency.
const DefaultFeedURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@%s/v1/currencies/%s.json"

// LatestKey is the sentinel lookup key for the most recent rate table.
// Same-day dates use it because the feed may not have published today's
// table yet in the client's timezone.
const LatestKey = "latest"

var (
	// ErrRateNotFound means the feed answered but had no rate for the
	// target currency.
	ErrRateNotFound = errors.New("rates: conversion rate not found")
	// ErrRateFetch means the feed could not be reached or answered
	// with garbage.
	ErrRateFetch = errors.New("rates: rate feed fetch failed")
)

// Converter fetches daily rate tables and converts amounts. Tables are
// cached per (currency, key); the breaker keeps a flapping feed from
// stalling every message.
type Converter struct {
	feedURL    string
	httpClient *http.Client
	cache      *ristretto.Cache
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
	fetchObs   prometheus.Observer

	// latestTTL bounds how long a "latest" table is trusted; dated
	// tables never change and get a much longer TTL.
	latestTTL time.Duration
	datedTTL  time.Duration
}

// NewConverter creates a Converter with caching and circuit breaking.
func NewConverter(log zerolog.Logger) (*Converter, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("rates: init cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "rate-feed",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("rate feed breaker state change")
		},
	})

	return &Converter{
		feedURL:    DefaultFeedURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		breaker:    breaker,
		log:        log,
		latestTTL:  time.Hour,
		datedTTL:   24 * time.Hour,
	}, nil
}

// Convert converts amount from one currency to another using the rate
// table identified by key. An explicit rate skips the feed entirely, as
// does a same-currency conversion. The result is rounded to 2 decimals.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to, key string, rate *float64) (float64, error) {
	if strings.EqualFold(from, to) {
		return Round2(amount), nil
	}

	if rate != nil {
		c.log.Debug().Float64("rate", *rate).Str("from", from).Str("to", to).Msg("using caller-supplied exchange rate")
		return Round2(amount * *rate), nil
	}

	table, err := c.rateTable(ctx, from, key)
	if err != nil {
		return 0, err
	}

	r, ok := table[strings.ToLower(to)]
	if !ok {
		return 0, fmt.Errorf("%w: %s to %s at %s", ErrRateNotFound, from, to, key)
	}
	return Round2(amount * r), nil
}

// rateTable returns the rate table for the source currency at the given
// lookup key, consulting the cache first.
func (c *Converter) rateTable(ctx context.Context, from, key string) (map[string]float64, error) {
	cacheKey := strings.ToLower(from) + "@" + key
	if cached, ok := c.cache.Get(cacheKey); ok {
		if table, ok := cached.(map[string]float64); ok {
			return table, nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchTable(ctx, from, key)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", ErrRateFetch, err)
		}
		return nil, err
	}

	table := result.(map[string]float64)
	ttl := c.datedTTL
	if key == LatestKey {
		ttl = c.latestTTL
	}
	c.cache.SetWithTTL(cacheKey, table, 1, ttl)
	return table, nil
}

// InstrumentFetch sets an observer for feed fetch latency.
func (c *Converter) InstrumentFetch(obs prometheus.Observer) {
	c.fetchObs = obs
}

func (c *Converter) fetchTable(ctx context.Context, from, key string) (map[string]float64, error) {
	if c.fetchObs != nil {
		start := time.Now()
		defer func() { c.fetchObs.Observe(time.Since(start).Seconds()) }()
	}

	url := fmt.Sprintf(c.feedURL, key, strings.ToLower(from))
	c.log.Debug().Str("url", url).Msg("fetching currency rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRateFetch, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRateFetch, resp.StatusCode, string(raw))
	}

	var doc map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRateFetch, err)
	}

	rawTable, ok := doc[strings.ToLower(from)]
	if !ok {
		return nil, fmt.Errorf("%w: no table for %s at %s", ErrRateNotFound, from, key)
	}

	var table map[string]float64
	if err := json.Unmarshal(rawTable, &table); err != nil {
		return nil, fmt.Errorf("%w: decode rate table: %v", ErrRateFetch, err)
	}
	return table, nil
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
