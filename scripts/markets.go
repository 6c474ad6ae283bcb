package main

import (
	"context"
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// This function will query every supported exchange for its USDT tickers and store the symbols in a csv file.
// Users can look up to this csv file to see which exchanges list a pair before configuring the app.
// CSV file created at ./examples/markets.csv by default.
func main() {
	out := flag.String("out", "./examples/markets.csv", "path of the csv file to create")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Error().Err(err).Msg("csv directory create")
		return
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Error().Err(err).Msg("csv file create")
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err = w.Write([]string{"exchange", "symbol", "price"}); err != nil {
		log.Error().Err(err).Msg("writing header to csv")
		return
	}

	var cfg config.Config
	cfg.SetDefaults()
	rest := connector.NewREST(&cfg.Connection.REST)
	opts := exchange.Options{
		FanOutWorkers: cfg.Fetch.FanOutWorkers,
		FanOutTimeout: time.Duration(cfg.Fetch.FanOutTimeoutSec) * time.Second,
	}

	for _, name := range exchange.Names() {
		a, err := exchange.New(name, rest, "", opts)
		if err != nil {
			log.Error().Err(err).Str("exchange", name).Msg("exchange adapter")
			continue
		}
		tickers, err := a.FetchUSDTTickers(context.Background())
		if err != nil {
			log.Error().Err(err).Str("exchange", name).Msg("exchange request for tickers")
			continue
		}
		sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })
		for _, t := range tickers {
			price := ""
			if t.Price != nil {
				price = strconv.FormatFloat(*t.Price, 'f', -1, 64)
			}
			if err = w.Write([]string{name, t.Symbol, price}); err != nil {
				log.Error().Err(err).Str("exchange", name).Msg("writing markets to csv")
				return
			}
		}
		log.Info().Str("exchange", name).Int("pairs", len(tickers)).Msg("markets written")
	}
}
