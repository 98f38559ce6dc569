// Package oracle provides price sources for the monetary-policy engine.
// A source reports how many coins are currently exchanged for one unit of
// the tracked value.
package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Static always reports the same price. Useful for a devnet pinned to
// the peg.
type Static struct {
	Price uint64
}

func (s Static) FetchPrice() (uint64, error) { return s.Price, nil }

// Manual is a settable price source, driven by an operator or a test.
type Manual struct {
	mu    sync.Mutex
	price uint64
}

func NewManual(initial uint64) *Manual {
	return &Manual{price: initial}
}

func (m *Manual) SetPrice(p uint64) {
	m.mu.Lock()
	m.price = p
	m.mu.Unlock()
}

func (m *Manual) FetchPrice() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price, nil
}

// Feed fetches the price from an HTTP JSON endpoint returning
// {"price": <float>}, quoted in tracked-value units, and scales it by
// BaseUnit into coins.
type Feed struct {
	URL      string
	BaseUnit uint64
	Client   *http.Client
}

func NewFeed(url string, baseUnit uint64) *Feed {
	return &Feed{
		URL:      url,
		BaseUnit: baseUnit,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type feedResponse struct {
	Price float64 `json:"price"`
}

func (f *Feed) FetchPrice() (uint64, error) {
	resp, err := f.Client.Get(f.URL)
	if err != nil {
		return 0, fmt.Errorf("unable to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("error reading feed response: %w", err)
	}
	var out feedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("error unmarshaling feed response: %w", err)
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price %f", out.Price)
	}
	return uint64(out.Price * float64(f.BaseUnit)), nil
}

// Random walks the price randomly around its previous value, each fetch
// multiplying by a factor in [0.5, 1.5). Used in smoke tests to exercise
// both expansion and contraction.
type Random struct {
	mu   sync.Mutex
	last uint64
	rng  *rand.Rand
}

func NewRandom(base uint64, seed int64) *Random {
	return &Random{last: base, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) FetchPrice() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.last
	factor := 500 + r.rng.Uint64()%1000
	next := prev / 1000 * factor
	if rem := prev % 1000; rem > 0 {
		next += rem * factor / 1000
	}
	r.last = next + 1
	return prev, nil
}
