package exchange

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const dexTradeMaxDepth = 100

// dexTrade has no bulk ticker endpoint. Tickers are requested pair by pair
// through a bounded pool of workers, a failed pair is dropped.
type dexTrade struct {
	rest    *connector.REST
	baseURL string
	workers int
	timeout time.Duration
}

type restRespDexTradeSymbols struct {
	Status interface{} `json:"status"`
	Data   []struct {
		Pair  string `json:"pair"`
		Base  string `json:"base"`
		Quote string `json:"quote"`
	} `json:"data"`
}

type restBookDexTrade struct {
	Status interface{} `json:"status"`
	Error  interface{} `json:"error"`
	Data   struct {
		Sell       []interface{} `json:"sell"`
		Buy        []interface{} `json:"buy"`
		SequenceID interface{}   `json:"sequenceId"`
	} `json:"data"`
}

func newDexTrade(rest *connector.REST, baseURL string, opts Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.DexTradeRESTBaseURL
	}
	d := &dexTrade{rest: rest, baseURL: baseURL, workers: opts.FanOutWorkers, timeout: opts.FanOutTimeout}
	if d.workers <= 0 {
		d.workers = 20
	}
	if d.timeout <= 0 {
		d.timeout = 5 * time.Second
	}
	return d
}

func (d *dexTrade) Name() string { return "DEXTRADE" }

// FetchUSDTTickers lists the symbols and then fetches every USDT pair's ticker concurrently.
func (d *dexTrade) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	sr := restRespDexTradeSymbols{}
	if err := getJSON(ctx, d.rest, d.rest.TickerTimeout(), d.baseURL+"/symbols", nil, nil, &sr); err != nil {
		return nil, err
	}
	if !truthy(sr.Status) {
		return nil, errors.New("symbols request returned a failed status")
	}

	var (
		mu        sync.Mutex
		tickers   []storage.Ticker
		requested int
	)
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for _, s := range sr.Data {
		if s.Quote != storage.QuoteUSDT || s.Base == "" {
			continue
		}
		pair, base := s.Pair, s.Base
		requested++
		g.Go(func() error {
			t, err := d.fetchPair(ctx, pair, base)
			if err != nil {
				log.Debug().Str("exchange", d.Name()).Str("pair", pair).Err(err).Msg("pair ticker dropped")
				return nil
			}
			mu.Lock()
			tickers = append(tickers, t)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if requested > 0 && len(tickers) == 0 {
		log.Warn().Str("exchange", d.Name()).Int("requested", requested).Msgf("0 of %d pairs fetched", requested)
	} else {
		log.Debug().Str("exchange", d.Name()).Int("requested", requested).Int("pairs", len(tickers)).Msg("pair tickers fetched")
	}

	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })
	return tickers, nil
}

func (d *dexTrade) fetchPair(ctx context.Context, pair string, base string) (storage.Ticker, error) {
	rr := map[string]interface{}{}
	if err := getJSON(ctx, d.rest, d.timeout, d.baseURL+"/ticker", url.Values{"pair": {pair}}, nil, &rr); err != nil {
		return storage.Ticker{}, err
	}
	if len(rr) == 0 {
		return storage.Ticker{}, errors.New("empty ticker")
	}
	if e, ok := rr["error"]; ok {
		return storage.Ticker{}, errors.Errorf("ticker error: %v", e)
	}
	data := rr
	if inner, ok := rr["data"].(map[string]interface{}); ok {
		data = inner
	}

	price := convert.Float(data["last"], 0)
	volume := convert.Float(either(data["volume_24H"], data["volume"]), 0)

	t := storage.NewTicker(d.Name(), base)
	t.Price = storage.Float(price)
	t.Volume24h = storage.Float(volume)
	t.High24h = num(data["high"])
	t.Low24h = num(data["low"])
	// The API spells the key with a cyrillic "с", the latin one is kept as fallback.
	t.Change24h = num(either(data["percent_сhange"], data["percent_change"]))
	t.Turnover24h = product(volume, price)
	return t, nil
}

// FetchOrderbook queries the BASEUSDT book.
func (d *dexTrade) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, dexTradeMaxDepth)

	rr := restBookDexTrade{}
	if err = getJSON(ctx, d.rest, d.rest.OrderbookTimeout(), d.baseURL+"/book", url.Values{"pair": {base + "USDT"}}, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	if !truthy(rr.Status) {
		return storage.Orderbook{}, errors.Errorf("book request returned a failed status: %v", rr.Error)
	}
	ob := newOrderbook(d.Name(), base+"/USDT", parseLevels(rr.Data.Sell), parseLevels(rr.Data.Buy), limit)
	ob.Timestamp = convert.Int64(rr.Data.SequenceID)
	return ob, nil
}
