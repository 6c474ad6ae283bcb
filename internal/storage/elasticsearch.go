package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	jsoniter "github.com/json-iterator/go"
	"github.com/milkywaybrain/spotgalaxy/internal/config"
)

// ElasticSearch is for indexing fetch log entries to elastic search.
type ElasticSearch struct {
	ES        *elasticsearch.Client
	IndexName string
	Cfg       *config.ES
}

// NewElasticSearch connects to elastic search with configured values.
func NewElasticSearch(cfg *config.ES) (*ElasticSearch, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.MaxIdleConns
	t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: t,
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(context.Background(), cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "spotgalaxy-fetch-logs"
	}
	return &ElasticSearch{
		ES:        es,
		IndexName: indexName,
		Cfg:       cfg,
	}, nil
}

// esFetchLog is the fetch log document sent to elastic search.
type esFetchLog struct {
	Exchange     string `json:"exchange"`
	Status       string `json:"status"`
	PairsCount   int    `json:"pairs_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	FetchedAt    string `json:"fetched_at"`
}

// WriteLog indexes one fetch log entry.
func (e *ElasticSearch) WriteLog(appCtx context.Context, entry FetchLog) error {
	doc := esFetchLog{
		Exchange:     entry.Exchange,
		Status:       entry.Status,
		PairsCount:   entry.PairsCount,
		ErrorMessage: entry.ErrorMessage,
		FetchedAt:    entry.FetchedAt.UTC().Format("2006-01-02T15:04:05.999Z07:00"),
	}
	body, err := jsoniter.Marshal(doc)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(appCtx, e.Cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := e.ES.Index(e.IndexName, bytes.NewReader(body), e.ES.Index.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
