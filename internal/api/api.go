// Package api exposes the collector over HTTP with JSON bodies.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/milkywaybrain/spotgalaxy/internal/collector"
	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/milkywaybrain/spotgalaxy/internal/market"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Response statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errBadParam = errors.New("bad parameter")

// Service is the query and fetch surface served by the handler.
type Service interface {
	Fetch(ctx context.Context, exchange string) (collector.FetchResult, error)
	FetchAll(ctx context.Context) []collector.FetchResult
	Tickers(ctx context.Context, q market.Query) (market.Page, error)
	Orderbook(ctx context.Context, exchange string, symbol string, limit int) (storage.Orderbook, error)
	MiniDepth(ctx context.Context, exchange string, symbol string) (market.Depth, error)
	Status(ctx context.Context) ([]collector.ExchangeStatus, error)
	Logs(ctx context.Context, limit int) ([]storage.FetchLog, error)
	Exchanges() []collector.ExchangeInfo
	SetMarketList(ctx context.Context, entry storage.MarketListEntry) error
	RemoveMarketList(ctx context.Context, exchange string, symbol string) error
}

type handler struct {
	svc Service
}

type dataResp struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type errorResp struct {
	Status   string `json:"status"`
	Exchange string `json:"exchange,omitempty"`
	Message  string `json:"message"`
}

type fetchResp struct {
	Status string `json:"status"`
	collector.FetchResult
}

type tickersResp struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	market.Page
}

// NewHandler routes the API endpoints to the service.
func NewHandler(svc Service) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fetch/{exchange}", h.fetch)
	mux.HandleFunc("POST /api/fetch", h.fetchAll)
	mux.HandleFunc("GET /api/tickers", h.tickers)
	mux.HandleFunc("GET /api/orderbook/{exchange}/{symbol...}", h.orderbook)
	mux.HandleFunc("GET /api/depth/{exchange}/{symbol...}", h.depth)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/logs", h.logs)
	mux.HandleFunc("GET /api/exchanges", h.exchanges)
	mux.HandleFunc("PUT /api/lists", h.setList)
	mux.HandleFunc("DELETE /api/lists", h.removeList)
	return logRequests(mux)
}

func (h *handler) fetch(w http.ResponseWriter, r *http.Request) {
	name := strings.ToUpper(r.PathValue("exchange"))
	res, err := h.svc.Fetch(r.Context(), name)
	if err != nil {
		writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResp{Status: statusSuccess, FetchResult: res})
}

func (h *handler) fetchAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: h.svc.FetchAll(r.Context())})
}

func (h *handler) tickers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, "", err)
		return
	}
	page, err := h.svc.Tickers(r.Context(), q)
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, tickersResp{Status: statusSuccess, Count: page.Total, Page: page})
}

func parseQuery(r *http.Request) (market.Query, error) {
	v := r.URL.Query()
	q := market.Query{
		Exchange: v.Get("exchange"),
		Search:   v.Get("search"),
		List:     v.Get("list"),
		Sort:     v.Get("sort"),
	}
	var err error
	if s := v.Get("multi"); s != "" {
		if q.MultiOnly, err = strconv.ParseBool(s); err != nil {
			return q, errors.Wrap(errBadParam, "multi should be a boolean")
		}
	}
	switch v.Get("order") {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, errors.Wrap(errBadParam, "order should be asc or desc")
	}
	if q.Page, err = intParam(v.Get("page")); err != nil {
		return q, err
	}
	if q.PerPage, err = intParam(v.Get("per_page")); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(errBadParam, "%q is not a number", s)
	}
	return i, nil
}

func (h *handler) orderbook(w http.ResponseWriter, r *http.Request) {
	name := strings.ToUpper(r.PathValue("exchange"))
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, name, err)
		return
	}
	if limit <= 0 {
		limit = exchange.DefaultOrderbookLimit
	}
	ob, err := h.svc.Orderbook(r.Context(), name, r.PathValue("symbol"), limit)
	if err != nil {
		writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: ob})
}

func (h *handler) depth(w http.ResponseWriter, r *http.Request) {
	name := strings.ToUpper(r.PathValue("exchange"))
	d, err := h.svc.MiniDepth(r.Context(), name, r.PathValue("symbol"))
	if err != nil {
		writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: d})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: statuses})
}

func (h *handler) logs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, "", err)
		return
	}
	logs, err := h.svc.Logs(r.Context(), limit)
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: logs})
}

func (h *handler) exchanges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: h.svc.Exchanges()})
}

func (h *handler) setList(w http.ResponseWriter, r *http.Request) {
	var entry storage.MarketListEntry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&entry); err != nil {
		writeError(w, "", errors.Wrap(errBadParam, "body should be a market list entry"))
		return
	}
	if err := h.svc.SetMarketList(r.Context(), entry); err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess, Data: entry})
}

func (h *handler) removeList(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	if err := h.svc.RemoveMarketList(r.Context(), v.Get("exchange"), v.Get("symbol")); err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Status: statusSuccess})
}

// statusCode maps service errors to HTTP statuses.
func statusCode(err error) int {
	var ferr *exchange.FetchError
	switch {
	case errors.As(err, &ferr):
		return http.StatusBadGateway
	case errors.Is(err, exchange.ErrUnknownExchange):
		return http.StatusNotFound
	case errors.Is(err, errBadParam),
		errors.Is(err, exchange.ErrInvalidSymbol),
		errors.Is(err, exchange.ErrOrderbookUnsupported),
		errors.Is(err, market.ErrInvalidQuery),
		errors.Is(err, storage.ErrUnknownList),
		errors.Is(err, collector.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, exchangeName string, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
	}
	writeJSON(w, code, errorResp{Status: statusError, Exchange: exchangeName, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.code).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}
