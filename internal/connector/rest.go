package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/pkg/errors"
)

// REST is for querying exchange REST APIs over a shared, pooled http client.
type REST struct {
	HTTPClient *http.Client
	Cfg        *config.REST
}

var rest REST

// InitREST initializes the shared http client with configured values.
func InitREST(cfg *config.REST) *REST {
	if rest.HTTPClient == nil {
		rest = *NewREST(cfg)
	}
	return &rest
}

// GetREST returns already prepared REST client instance.
func GetREST() (*REST, error) {
	if rest.HTTPClient == nil {
		return nil, errors.New("REST connection not initialized")
	}
	return &rest, nil
}

// NewREST creates a REST client which is not shared through InitREST / GetREST.
func NewREST(cfg *config.REST) *REST {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.MaxIdleConns
	t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	return &REST{
		HTTPClient: &http.Client{Transport: t},
		Cfg:        cfg,
	}
}

// Request creates a GET request with the given context.
func (r *REST) Request(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.Cfg.UserAgent)
	}
	return req, nil
}

// Do sends the request.
func (r *REST) Do(req *http.Request) (*http.Response, error) {
	return r.HTTPClient.Do(req)
}

// TickerTimeout is the timeout for a bulk ticker request.
func (r *REST) TickerTimeout() time.Duration {
	return seconds(r.Cfg.ReqTimeoutSec, 30)
}

// OrderbookTimeout is the timeout for an order book request.
func (r *REST) OrderbookTimeout() time.Duration {
	return seconds(r.Cfg.BookTimeoutSec, 10)
}

func seconds(sec int, def int) time.Duration {
	if sec <= 0 {
		sec = def
	}
	return time.Duration(sec) * time.Second
}
