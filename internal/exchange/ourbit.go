package exchange

import (
	"context"
	"net/url"
	"strconv"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

// Ourbit has no public market API, its tickers are read from coingecko's
// exchange ticker listing, page by page.
const ourbitMaxPages = 10

// OurbitNoBook is the order book error indicator of ourbit.
const OurbitNoBook = "Ourbit orderbook not available (no public API)"

type ourbit struct {
	rest    *connector.REST
	baseURL string
}

type restRespOurbit struct {
	Tickers []struct {
		Base            string      `json:"base"`
		Target          string      `json:"target"`
		Last            interface{} `json:"last"`
		Volume          interface{} `json:"volume"`
		ConvertedVolume struct {
			USD interface{} `json:"usd"`
		} `json:"converted_volume"`
	} `json:"tickers"`
}

func newOurbit(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.OurbitRESTBaseURL
	}
	return &ourbit{rest: rest, baseURL: baseURL}
}

func (o *ourbit) Name() string { return "OURBIT" }

// FetchUSDTTickers walks the listing pages until an empty page or the page cap.
// High and low are not listed, change is reported as zero.
func (o *ourbit) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	var tickers []storage.Ticker
	for page := 1; page <= ourbitMaxPages; page++ {
		rr := restRespOurbit{}
		q := url.Values{"page": {strconv.Itoa(page)}}
		if err := getJSON(ctx, o.rest, o.rest.TickerTimeout(), o.baseURL+"/exchanges/ourbit/tickers", q, nil, &rr); err != nil {
			return nil, err
		}
		if len(rr.Tickers) == 0 {
			break
		}
		for _, r := range rr.Tickers {
			if r.Target != storage.QuoteUSDT || r.Base == "" {
				continue
			}
			t := storage.NewTicker(o.Name(), r.Base)
			t.Price = num(r.Last)
			t.Volume24h = num(r.Volume)
			t.Change24h = storage.Float(0)
			t.Turnover24h = num(r.ConvertedVolume.USD)
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

// FetchOrderbook returns an empty book carrying the error indicator.
func (o *ourbit) FetchOrderbook(_ context.Context, symbol string, _ int) (storage.Orderbook, error) {
	return storage.Orderbook{
		Exchange: o.Name(),
		Symbol:   symbol,
		Asks:     []storage.Level{},
		Bids:     []storage.Level{},
		Error:    OurbitNoBook,
	}, nil
}
