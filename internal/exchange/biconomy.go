package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

const biconomyMaxDepth = 100

// Biconomy rejects requests without its site header.
var biconomyHeader = http.Header{
	"X-Site-Id":    {"127"},
	"Content-Type": {"application/x-www-form-urlencoded"},
}

type biconomy struct {
	rest    *connector.REST
	baseURL string
}

type restRespBiconomy struct {
	Ticker []struct {
		Symbol string      `json:"symbol"`
		Last   interface{} `json:"last"`
		Vol    interface{} `json:"vol"`
		High   interface{} `json:"high"`
		Low    interface{} `json:"low"`
	} `json:"ticker"`
}

type restBookBiconomy struct {
	Asks []interface{} `json:"asks"`
	Bids []interface{} `json:"bids"`
}

func newBiconomy(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.BiconomyRESTBaseURL
	}
	return &biconomy{rest: rest, baseURL: baseURL}
}

func (b *biconomy) Name() string { return "BICONOMY" }

// FetchUSDTTickers queries all tickers and keeps X_USDT ones.
// Missing values stay absent and turnover is not reported.
func (b *biconomy) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespBiconomy{}
	if err := getJSON(ctx, b.rest, b.rest.TickerTimeout(), b.baseURL+"/api/v1/tickers", nil, biconomyHeader, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr.Ticker))
	for _, r := range rr.Ticker {
		if !strings.HasSuffix(r.Symbol, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(r.Symbol, "_USDT")
		if base == "" {
			continue
		}
		t := storage.NewTicker(b.Name(), base)
		t.Price = convert.FloatPtr(r.Last)
		t.Volume24h = convert.FloatPtr(r.Vol)
		t.High24h = convert.FloatPtr(r.High)
		t.Low24h = convert.FloatPtr(r.Low)
		t.Change24h = midChange(t.Price, t.High24h, t.Low24h)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// midChange is the distance of last from the middle of the 24h range, in percent.
func midChange(last, high, low *float64) *float64 {
	if last == nil || high == nil || low == nil || *low == 0 {
		return nil
	}
	mid := (*high + *low) / 2
	if mid == 0 {
		return nil
	}
	return storage.Float((*last - mid) / mid * 100)
}

// FetchOrderbook queries the X_USDT depth.
func (b *biconomy) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, biconomyMaxDepth)

	q := url.Values{}
	q.Add("symbol", base+"_USDT")
	q.Add("size", strconv.Itoa(limit))
	rr := restBookBiconomy{}
	if err = getJSON(ctx, b.rest, b.rest.OrderbookTimeout(), b.baseURL+"/api/v1/depth", q, biconomyHeader, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(b.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit), nil
}
