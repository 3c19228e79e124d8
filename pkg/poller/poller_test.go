package poller

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	*exchange.Base

	mu      sync.Mutex
	calls   int
	asked   [][]string
	last    map[string]string
	failing bool
}

func newFake(id string, last map[string]string) *fakeExchange {
	return &fakeExchange{
		Base: &exchange.Base{Desc: &exchange.Descriptor{ID: id}},
		last: last,
	}
}

func (f *fakeExchange) LoadMarkets(ctx context.Context, reload bool) (map[string]*models.Market, error) {
	return nil, nil
}

func (f *fakeExchange) FetchMarkets(ctx context.Context, params exchange.Params) ([]models.Market, error) {
	return nil, nil
}

func (f *fakeExchange) FetchTickers(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.asked = append(f.asked, symbols)
	if f.failing {
		return nil, exchange.NewError(exchange.KindNetworkError, f.ID(), "connection reset")
	}
	out := make(map[string]models.Ticker, len(f.last))
	for symbol, last := range f.last {
		out[symbol] = models.Ticker{
			Symbol: symbol,
			Last:   decimal.NewNullDecimal(decimal.RequireFromString(last)),
		}
	}
	return out, nil
}

func (f *fakeExchange) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *fakeExchange) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestPollStoresSnapshots(t *testing.T) {
	cb := newFake("coinbase", map[string]string{"BTC/USD": "60000", "ETH/USD": "3000"})
	kf := newFake("krakenfutures", map[string]string{"BTC/USD:BTC": "60300"})
	p := New(map[string]exchange.Exchange{"coinbase": cb, "krakenfutures": kf}, Config{
		Symbols: map[string][]string{"coinbase": {"BTC/USD", "ETH/USD"}},
		Logger:  quietLogger(),
	})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	p.Poll(context.Background())

	snaps := p.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "coinbase", snaps[0].Exchange)
	assert.Equal(t, "BTC/USD", snaps[0].Symbol)
	assert.Equal(t, "ETH/USD", snaps[1].Symbol)
	assert.Equal(t, "krakenfutures", snaps[2].Exchange)

	s, ok := p.Snapshot("krakenfutures", "BTC/USD:BTC")
	require.True(t, ok)
	assert.Equal(t, "60300", s.Ticker.Last.Decimal.String())
	assert.Equal(t, fixed, s.UpdatedAt)

	assert.Equal(t, [][]string{{"BTC/USD", "ETH/USD"}}, cb.asked)
	assert.Equal(t, [][]string{nil}, kf.asked)
}

func TestPollKeepsPreviousSnapshotOnFailure(t *testing.T) {
	cb := newFake("coinbase", map[string]string{"BTC/USD": "60000"})
	m := metrics.New("test")
	require.NoError(t, m.Register(nil))
	p := New(map[string]exchange.Exchange{"coinbase": cb}, Config{Metrics: m, Logger: quietLogger()})

	p.Poll(context.Background())
	cb.setFailing(true)
	p.Poll(context.Background())

	s, ok := p.Snapshot("coinbase", "BTC/USD")
	require.True(t, ok)
	assert.Equal(t, "60000", s.Ticker.Last.Decimal.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("coinbase", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("coinbase", "error")))
}

func TestPollComputesBasis(t *testing.T) {
	cb := newFake("coinbase", map[string]string{"BTC/USD": "60000"})
	kf := newFake("krakenfutures", map[string]string{"BTC/USD:BTC": "60300", "ETH/USD:USD": "3000"})
	pair := models.BasisPair{
		SpotExchange:   "coinbase",
		SpotSymbol:     "BTC/USD",
		FutureExchange: "krakenfutures",
		FutureSymbol:   "BTC/USD:BTC",
	}
	missing := models.BasisPair{
		SpotExchange:   "coinbase",
		SpotSymbol:     "ETH/USD",
		FutureExchange: "krakenfutures",
		FutureSymbol:   "ETH/USD:USD",
	}
	p := New(map[string]exchange.Exchange{"coinbase": cb, "krakenfutures": kf}, Config{
		Pairs:  []models.BasisPair{pair, missing},
		Logger: quietLogger(),
	})

	p.Poll(context.Background())

	basis := p.Basis()
	require.Len(t, basis, 1)
	assert.Equal(t, pair, basis[0].BasisPair)
	assert.Equal(t, "300", basis[0].Basis.String())
	assert.Equal(t, "0.5", basis[0].BasisPercent.String())
}

func TestStartStop(t *testing.T) {
	cb := newFake("coinbase", map[string]string{"BTC/USD": "60000"})
	p := New(map[string]exchange.Exchange{"coinbase": cb}, Config{
		Interval: 5 * time.Millisecond,
		Logger:   quietLogger(),
	})

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return cb.callCount() >= 3 }, time.Second, time.Millisecond)
	p.Stop()
	p.Stop()

	after := cb.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, cb.callCount())
}

func TestStartStopsOnContextCancel(t *testing.T) {
	cb := newFake("coinbase", map[string]string{"BTC/USD": "60000"})
	p := New(map[string]exchange.Exchange{"coinbase": cb}, Config{
		Interval: time.Hour,
		Logger:   quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	assert.Eventually(t, func() bool { return cb.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancel")
	}
}
