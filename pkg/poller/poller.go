package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/sirupsen/logrus"
)

// Snapshot is the latest ticker seen for one exchange and symbol.
type Snapshot struct {
	Exchange  string        `json:"exchange"`
	Symbol    string        `json:"symbol"`
	Ticker    models.Ticker `json:"ticker"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type Config struct {
	Interval time.Duration
	// Symbols is keyed by exchange id. An empty list polls every ticker
	// the venue returns.
	Symbols map[string][]string
	// Pairs are spot/derivative combinations whose basis is recomputed
	// after every round.
	Pairs   []models.BasisPair
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
}

// TickerPoller keeps the latest tickers of a set of exchanges.
type TickerPoller struct {
	exchanges map[string]exchange.Exchange
	symbols   map[string][]string
	pairs     []models.BasisPair
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time

	mu        sync.RWMutex
	snapshots map[string]map[string]Snapshot
	basis     map[models.BasisPair]models.BasisSnapshot

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(exchanges map[string]exchange.Exchange, cfg Config) *TickerPoller {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TickerPoller{
		exchanges: exchanges,
		symbols:   cfg.Symbols,
		pairs:     cfg.Pairs,
		interval:  interval,
		metrics:   cfg.Metrics,
		logger:    logger.WithField("component", "poller"),
		now:       time.Now,
		snapshots: make(map[string]map[string]Snapshot),
		basis:     make(map[models.BasisPair]models.BasisSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Start polls once immediately and then on every tick until ctx is done
// or Stop is called.
func (p *TickerPoller) Start(ctx context.Context) {
	p.logger.WithFields(logrus.Fields{
		"exchanges": len(p.exchanges),
		"interval":  p.interval.String(),
	}).Info("Starting ticker poller")

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *TickerPoller) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping ticker poller")
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *TickerPoller) run(ctx context.Context) {
	defer p.wg.Done()

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one round across every exchange concurrently. Failures are
// logged and counted; the previous snapshot of a failed exchange is kept.
func (p *TickerPoller) Poll(ctx context.Context) {
	var wg sync.WaitGroup
	for id, ex := range p.exchanges {
		wg.Add(1)
		go func(id string, ex exchange.Exchange) {
			defer wg.Done()
			p.pollExchange(ctx, id, ex)
		}(id, ex)
	}
	wg.Wait()
	p.updateBasis()
}

func (p *TickerPoller) pollExchange(ctx context.Context, id string, ex exchange.Exchange) {
	symbols := p.symbols[id]
	tickers, err := ex.FetchTickers(ctx, symbols, nil)
	if err != nil {
		p.count(id, "error")
		p.logger.WithError(err).WithFields(logrus.Fields{
			"exchange": id,
			"kind":     exchange.KindOf(err),
		}).Error("Failed to fetch tickers")
		return
	}
	p.count(id, "ok")

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	latest, ok := p.snapshots[id]
	if !ok {
		latest = make(map[string]Snapshot, len(tickers))
		p.snapshots[id] = latest
	}
	for symbol, t := range tickers {
		latest[symbol] = Snapshot{Exchange: id, Symbol: symbol, Ticker: t, UpdatedAt: now}
	}
}

func (p *TickerPoller) updateBasis() {
	if len(p.pairs) == 0 {
		return
	}
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pair := range p.pairs {
		spot, ok := p.snapshots[pair.SpotExchange][pair.SpotSymbol]
		if !ok {
			continue
		}
		future, ok := p.snapshots[pair.FutureExchange][pair.FutureSymbol]
		if !ok {
			continue
		}
		snap, ok := models.NewBasisSnapshot(pair, spot.Ticker, future.Ticker, now)
		if !ok {
			continue
		}
		p.basis[pair] = snap
		p.logger.WithFields(logrus.Fields{
			"spot":    pair.SpotSymbol,
			"future":  pair.FutureSymbol,
			"basis":   snap.Basis.String(),
			"percent": snap.BasisPercent.StringFixed(4),
		}).Debug("Updated basis")
	}
}

func (p *TickerPoller) count(id, outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.PollsTotal.WithLabelValues(id, outcome).Inc()
}

// Snapshot returns the latest ticker for one exchange and symbol.
func (p *TickerPoller) Snapshot(exchangeID, symbol string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snapshots[exchangeID][symbol]
	return s, ok
}

// Snapshots lists every stored ticker ordered by exchange then symbol.
func (p *TickerPoller) Snapshots() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Snapshot
	for _, bySymbol := range p.snapshots {
		for _, s := range bySymbol {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (p *TickerPoller) Basis() []models.BasisSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.BasisSnapshot, 0, len(p.pairs))
	for _, pair := range p.pairs {
		if snap, ok := p.basis[pair]; ok {
			out = append(out, snap)
		}
	}
	return out
}
