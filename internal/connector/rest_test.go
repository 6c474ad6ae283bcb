package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
)

func TestRESTRequestHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewREST(&config.REST{UserAgent: "spotgalaxy-test", MaxIdleConns: 2, MaxIdleConnsPerHost: 2})
	req, err := r.Request(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := r.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if gotUA != "spotgalaxy-test" {
		t.Errorf("user agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
}

func TestRESTTimeouts(t *testing.T) {
	r := NewREST(&config.REST{})
	if r.TickerTimeout() != 30*time.Second {
		t.Errorf("ticker timeout = %v", r.TickerTimeout())
	}
	if r.OrderbookTimeout() != 10*time.Second {
		t.Errorf("orderbook timeout = %v", r.OrderbookTimeout())
	}

	r = NewREST(&config.REST{ReqTimeoutSec: 12, BookTimeoutSec: 3})
	if r.TickerTimeout() != 12*time.Second || r.OrderbookTimeout() != 3*time.Second {
		t.Errorf("configured timeouts not used: %v %v", r.TickerTimeout(), r.OrderbookTimeout())
	}
}

func TestGetRESTBeforeInit(t *testing.T) {
	rest = REST{}
	if _, err := GetREST(); err == nil {
		t.Fatal("expected error before InitREST")
	}
	InitREST(&config.REST{})
	if _, err := GetREST(); err != nil {
		t.Fatalf("after init: %v", err)
	}
}
