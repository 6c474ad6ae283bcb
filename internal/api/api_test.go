package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/collector"
	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/milkywaybrain/spotgalaxy/internal/market"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

type fakeService struct {
	fetchErr    error
	query       market.Query
	bookSymbol  string
	bookLimit   int
	bookErr     error
	logLimit    int
	listEntry   storage.MarketListEntry
	listErr     error
	removed     [2]string
	statusError error
}

func (f *fakeService) Fetch(_ context.Context, name string) (collector.FetchResult, error) {
	if f.fetchErr != nil {
		return collector.FetchResult{Exchange: name, Status: storage.StatusError}, f.fetchErr
	}
	return collector.FetchResult{Exchange: name, Status: storage.StatusSuccess, PairsCount: 2, Message: "Successfully fetched 2 USDT pairs from " + name}, nil
}

func (f *fakeService) FetchAll(_ context.Context) []collector.FetchResult {
	return []collector.FetchResult{
		{Exchange: "GATEIO", Status: storage.StatusSuccess, PairsCount: 2},
		{Exchange: "XT", Status: storage.StatusError, Message: "down"},
	}
}

func (f *fakeService) Tickers(_ context.Context, q market.Query) (market.Page, error) {
	f.query = q
	if err := q.Normalize(); err != nil {
		return market.Page{}, err
	}
	return market.Page{Rows: []market.Row{}, Total: 7, Page: 1, PerPage: 50, Pages: 1}, nil
}

func (f *fakeService) Orderbook(_ context.Context, name string, symbol string, limit int) (storage.Orderbook, error) {
	f.bookSymbol = symbol
	f.bookLimit = limit
	if f.bookErr != nil {
		return storage.Orderbook{}, f.bookErr
	}
	return storage.Orderbook{Exchange: name, Symbol: symbol, Asks: []storage.Level{}, Bids: []storage.Level{}}, nil
}

func (f *fakeService) MiniDepth(_ context.Context, name string, symbol string) (market.Depth, error) {
	f.bookSymbol = symbol
	if f.bookErr != nil {
		return market.Depth{}, f.bookErr
	}
	return market.Depth{Exchange: name, Symbol: symbol, Levels: market.DefaultDepthLevels}, nil
}

func (f *fakeService) Status(_ context.Context) ([]collector.ExchangeStatus, error) {
	if f.statusError != nil {
		return nil, f.statusError
	}
	return []collector.ExchangeStatus{{Exchange: "GATEIO", Status: collector.StatusNever}}, nil
}

func (f *fakeService) Logs(_ context.Context, limit int) ([]storage.FetchLog, error) {
	f.logLimit = limit
	return []storage.FetchLog{{Exchange: "GATEIO", Status: storage.StatusSuccess, FetchedAt: time.Unix(0, 0).UTC()}}, nil
}

func (f *fakeService) Exchanges() []collector.ExchangeInfo {
	return []collector.ExchangeInfo{{Name: "GATEIO", Orderbook: true}, {Name: "LBANK"}}
}

func (f *fakeService) SetMarketList(_ context.Context, entry storage.MarketListEntry) error {
	f.listEntry = entry
	return f.listErr
}

func (f *fakeService) RemoveMarketList(_ context.Context, exchangeName string, symbol string) error {
	f.removed = [2]string{exchangeName, symbol}
	return f.listErr
}

func do(t *testing.T, h http.Handler, method string, target string, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("%s %s: content type %q", method, target, ct)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestFetchExchange(t *testing.T) {
	svc := &fakeService{}
	code, body := do(t, NewHandler(svc), http.MethodPost, "/api/fetch/gateio", "")
	if code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if body["status"] != "success" || body["exchange"] != "GATEIO" || body["pairs_count"] != float64(2) {
		t.Fatalf("body %v", body)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&exchange.FetchError{Exchange: "GATEIO", Err: errors.New("timeout")}, http.StatusBadGateway},
		{errors.Wrap(exchange.ErrUnknownExchange, "NOPE"), http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &fakeService{fetchErr: tt.err}
		code, body := do(t, NewHandler(svc), http.MethodPost, "/api/fetch/gateio", "")
		if code != tt.code {
			t.Errorf("%v: code %d, want %d", tt.err, code, tt.code)
		}
		if body["status"] != "error" || body["message"] != tt.err.Error() {
			t.Errorf("%v: body %v", tt.err, body)
		}
	}
}

func TestFetchAll(t *testing.T) {
	code, body := do(t, NewHandler(&fakeService{}), http.MethodPost, "/api/fetch", "")
	if code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 2 {
		t.Fatalf("data %v", body["data"])
	}
}

func TestTickersQuery(t *testing.T) {
	svc := &fakeService{}
	code, body := do(t, NewHandler(svc), http.MethodGet,
		"/api/tickers?exchange=gateio&search=Bt&list=hide_blacklist&multi=true&sort=price&order=desc&page=2&per_page=10", "")
	if code != http.StatusOK {
		t.Fatalf("code %d: %v", code, body)
	}
	want := market.Query{
		Exchange: "gateio", Search: "Bt", List: "hide_blacklist", MultiOnly: true,
		Sort: "price", Desc: true, Page: 2, PerPage: 10,
	}
	if svc.query != want {
		t.Fatalf("query %+v, want %+v", svc.query, want)
	}
	if body["total"] != float64(7) || body["count"] != float64(7) {
		t.Fatalf("body %v", body)
	}
	if _, ok := body["data"].([]interface{}); !ok {
		t.Fatalf("data %v", body["data"])
	}
}

func TestTickersBadParams(t *testing.T) {
	targets := []string{
		"/api/tickers?multi=maybe",
		"/api/tickers?order=up",
		"/api/tickers?page=two",
		"/api/tickers?per_page=x",
		"/api/tickers?sort=volume24",
	}
	for _, target := range targets {
		code, body := do(t, NewHandler(&fakeService{}), http.MethodGet, target, "")
		if code != http.StatusBadRequest || body["status"] != "error" {
			t.Errorf("%s: code %d body %v", target, code, body)
		}
	}
}

func TestOrderbook(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc)
	code, body := do(t, h, http.MethodGet, "/api/orderbook/gateio/BTC/USDT", "")
	if code != http.StatusOK {
		t.Fatalf("code %d: %v", code, body)
	}
	if svc.bookSymbol != "BTC/USDT" || svc.bookLimit != exchange.DefaultOrderbookLimit {
		t.Fatalf("symbol %q limit %d", svc.bookSymbol, svc.bookLimit)
	}
	data := body["data"].(map[string]interface{})
	if data["exchange"] != "GATEIO" {
		t.Fatalf("data %v", data)
	}

	code, _ = do(t, h, http.MethodGet, "/api/orderbook/gateio/BTC/USDT?limit=5", "")
	if code != http.StatusOK || svc.bookLimit != 5 {
		t.Fatalf("code %d limit %d", code, svc.bookLimit)
	}
	code, _ = do(t, h, http.MethodGet, "/api/orderbook/gateio/BTC/USDT?limit=five", "")
	if code != http.StatusBadRequest {
		t.Fatalf("code %d", code)
	}
}

func TestOrderbookErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{errors.Wrap(exchange.ErrOrderbookUnsupported, "LBANK"), http.StatusBadRequest},
		{errors.Wrap(exchange.ErrInvalidSymbol, "BTCUSDT"), http.StatusBadRequest},
		{&exchange.FetchError{Exchange: "GATEIO", Err: errors.New("bad gateway")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		h := NewHandler(&fakeService{bookErr: tt.err})
		for _, target := range []string{"/api/orderbook/gateio/BTC/USDT", "/api/depth/gateio/BTC/USDT"} {
			code, body := do(t, h, http.MethodGet, target, "")
			if code != tt.code || body["exchange"] != "GATEIO" {
				t.Errorf("%s %v: code %d body %v", target, tt.err, code, body)
			}
		}
	}
}

func TestDepth(t *testing.T) {
	svc := &fakeService{}
	code, body := do(t, NewHandler(svc), http.MethodGet, "/api/depth/xt/ETH/USDT", "")
	if code != http.StatusOK || svc.bookSymbol != "ETH/USDT" {
		t.Fatalf("code %d symbol %q", code, svc.bookSymbol)
	}
	data := body["data"].(map[string]interface{})
	if data["levels"] != float64(market.DefaultDepthLevels) {
		t.Fatalf("data %v", data)
	}
}

func TestStatusAndExchanges(t *testing.T) {
	h := NewHandler(&fakeService{})
	code, body := do(t, h, http.MethodGet, "/api/status", "")
	if code != http.StatusOK || len(body["data"].([]interface{})) != 1 {
		t.Fatalf("status code %d body %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/api/exchanges", "")
	if code != http.StatusOK || len(body["data"].([]interface{})) != 2 {
		t.Fatalf("exchanges code %d body %v", code, body)
	}

	code, _ = do(t, NewHandler(&fakeService{statusError: errors.New("db closed")}), http.MethodGet, "/api/status", "")
	if code != http.StatusInternalServerError {
		t.Fatalf("code %d", code)
	}
}

func TestLogs(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc)
	code, _ := do(t, h, http.MethodGet, "/api/logs?limit=3", "")
	if code != http.StatusOK || svc.logLimit != 3 {
		t.Fatalf("code %d limit %d", code, svc.logLimit)
	}
	code, _ = do(t, h, http.MethodGet, "/api/logs", "")
	if code != http.StatusOK || svc.logLimit != 0 {
		t.Fatalf("code %d limit %d", code, svc.logLimit)
	}
}

func TestMarketLists(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc)
	code, _ := do(t, h, http.MethodPut, "/api/lists", `{"exchange":"gateio","symbol":"BTC/USDT","list":"blacklist"}`)
	if code != http.StatusOK {
		t.Fatalf("put code %d", code)
	}
	want := storage.MarketListEntry{Exchange: "gateio", Symbol: "BTC/USDT", List: "blacklist"}
	if svc.listEntry != want {
		t.Fatalf("entry %+v", svc.listEntry)
	}

	code, _ = do(t, h, http.MethodPut, "/api/lists", `{"exchange":`)
	if code != http.StatusBadRequest {
		t.Fatalf("malformed body code %d", code)
	}

	code, _ = do(t, h, http.MethodDelete, "/api/lists?exchange=gateio&symbol=BTC/USDT", "")
	if code != http.StatusOK || svc.removed != [2]string{"gateio", "BTC/USDT"} {
		t.Fatalf("delete code %d removed %v", code, svc.removed)
	}

	for _, err := range []error{
		errors.Wrap(storage.ErrUnknownList, "greylist"),
		errors.Wrap(collector.ErrInvalidRequest, "exchange and symbol are required"),
	} {
		code, _ = do(t, NewHandler(&fakeService{listErr: err}), http.MethodPut, "/api/lists", `{"list":"greylist"}`)
		if code != http.StatusBadRequest {
			t.Errorf("%v: code %d", err, code)
		}
	}
}
