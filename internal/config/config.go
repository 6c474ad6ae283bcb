package config

import (
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	// LBankRESTBaseURL is the lbank exchange base REST url.
	LBankRESTBaseURL = "https://api.lbkex.com"
	// HashKeyRESTBaseURL is the hashkey global exchange base REST url.
	HashKeyRESTBaseURL = "https://api-glb.hashkey.com"
	// GateIORESTBaseURL is the gate.io exchange base REST url.
	GateIORESTBaseURL = "https://api.gateio.ws/api/v4"
	// LatokenRESTBaseURL is the latoken exchange base REST url.
	LatokenRESTBaseURL = "https://api.latoken.com/v2"
	// OurbitRESTBaseURL is the coingecko url used for ourbit tickers, ourbit has no public market API.
	OurbitRESTBaseURL = "https://api.coingecko.com/api/v3"
	// AzbitRESTBaseURL is the azbit exchange base REST url.
	AzbitRESTBaseURL = "https://data.azbit.com/api"
	// DexTradeRESTBaseURL is the dex-trade exchange base REST url.
	DexTradeRESTBaseURL = "https://api.dex-trade.com/v1/public"
	// DigiFinexRESTBaseURL is the digifinex exchange base REST url.
	DigiFinexRESTBaseURL = "https://openapi.digifinex.com/v3"
	// VinDAXRESTBaseURL is the vindax exchange base REST url.
	VinDAXRESTBaseURL = "https://api.vindax.com/api/v1"
	// PoloniexRESTBaseURL is the poloniex exchange base REST url.
	PoloniexRESTBaseURL = "https://api.poloniex.com"
	// CoinstoreRESTBaseURL is the coinstore exchange base REST url.
	CoinstoreRESTBaseURL = "https://api.coinstore.com/api/v1/market"
	// BitMartRESTBaseURL is the bitmart exchange base REST url.
	BitMartRESTBaseURL = "https://api-cloud.bitmart.com"
	// NizaRESTBaseURL is the niza exchange base REST url.
	NizaRESTBaseURL = "https://app.niza.io/trade/v1"
	// FameEXRESTBaseURL is the fameex exchange base REST url.
	FameEXRESTBaseURL = "https://openapi.fameex.com"
	// AscendEXRESTBaseURL is the ascendex exchange base REST url.
	AscendEXRESTBaseURL = "https://ascendex.com"
	// BitrueRESTBaseURL is the bitrue exchange base REST url for tickers.
	BitrueRESTBaseURL = "https://openapi.bitrue.com"
	// BitrueDepthRESTBaseURL is the bitrue exchange base REST url for order books.
	BitrueDepthRESTBaseURL = "https://www.bitrue.com"
	// P2PB2BRESTBaseURL is the p2pb2b exchange base REST url.
	P2PB2BRESTBaseURL = "https://api.p2pb2b.com/api/v2/public"
	// BigONERESTBaseURL is the bigone exchange base REST url.
	BigONERESTBaseURL = "https://big.one/api/v3"
	// XTRESTBaseURL is the xt exchange base REST url.
	XTRESTBaseURL = "https://sapi.xt.com"
	// BiconomyRESTBaseURL is the biconomy exchange base REST url.
	BiconomyRESTBaseURL = "https://api.biconomy.com"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Exchanges  []Exchange `json:"exchanges"`
	Connection Connection `json:"connection"`
	Fetch      Fetch      `json:"fetch"`
	Server     Server     `json:"server"`
	LogSinks   []string   `json:"log_sinks"`
	Log        Log        `json:"log"`
}

// Exchange contains config values for different exchanges.
// BaseURL overrides the exchange's public REST url, mostly useful for proxies and tests.
type Exchange struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	Disabled bool   `json:"disabled"`
}

// Connection contains config values for different API and storage connections.
type Connection struct {
	REST     REST     `json:"rest"`
	Storage  string   `json:"storage"`
	SQLite   SQLite   `json:"sqlite"`
	Postgres Postgres `json:"postgres"`
	MySQL    MySQL    `json:"mysql"`
	ES       ES       `json:"elastic_search"`
}

// REST contains config values for REST API connection.
type REST struct {
	ReqTimeoutSec       int    `json:"request_timeout_sec"`
	BookTimeoutSec      int    `json:"orderbook_timeout_sec"`
	MaxIdleConns        int    `json:"max_idle_conns"`
	MaxIdleConnsPerHost int    `json:"max_idle_conns_per_host"`
	UserAgent           string `json:"user_agent"`
}

// SQLite contains config values for sqlite.
type SQLite struct {
	Path string `json:"path"`
}

// Postgres contains config values for postgres.
type Postgres struct {
	DSN                string `json:"dsn"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
}

// ES contains config values for elastic search.
type ES struct {
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
}

// Fetch contains config values for ticker fetching.
// IntervalSec zero means tickers are fetched only on demand (and on start if OnStart is set).
type Fetch struct {
	OnStart          bool `json:"on_start"`
	IntervalSec      int  `json:"interval_sec"`
	Concurrency      int  `json:"concurrency"`
	FanOutWorkers    int  `json:"fan_out_workers"`
	FanOutTimeoutSec int  `json:"fan_out_timeout_sec"`
}

// Server contains config values for the HTTP query API.
type Server struct {
	Addr            string `json:"addr"`
	ReadTimeoutSec  int    `json:"read_timeout_sec"`
	WriteTimeoutSec int    `json:"write_timeout_sec"`
}

// Log contains config values for logging.
type Log struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	Console    bool   `json:"console"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Load reads the JSON config file at path, fills defaults and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer f.Close()

	var cfg Config
	if err = jsoniter.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	cfg.SetDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero config values with the app defaults.
func (c *Config) SetDefaults() {
	if c.Connection.REST.ReqTimeoutSec <= 0 {
		c.Connection.REST.ReqTimeoutSec = 30
	}
	if c.Connection.REST.BookTimeoutSec <= 0 {
		c.Connection.REST.BookTimeoutSec = 10
	}
	if c.Connection.REST.MaxIdleConns <= 0 {
		c.Connection.REST.MaxIdleConns = 100
	}
	if c.Connection.REST.MaxIdleConnsPerHost <= 0 {
		c.Connection.REST.MaxIdleConnsPerHost = 20
	}
	if c.Connection.Storage == "" {
		c.Connection.Storage = "sqlite"
	}
	if c.Connection.SQLite.Path == "" {
		c.Connection.SQLite.Path = "./data/spotgalaxy.db"
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 8
	}
	if c.Fetch.FanOutWorkers <= 0 {
		c.Fetch.FanOutWorkers = 20
	}
	if c.Fetch.FanOutTimeoutSec <= 0 {
		c.Fetch.FanOutTimeoutSec = 5
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec <= 0 {
		// Fetching every exchange in one request can take a while.
		c.Server.WriteTimeoutSec = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
}

// Validate checks user defined config values.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return errors.New("config: at least one exchange should be configured")
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for i := range c.Exchanges {
		name := strings.ToUpper(strings.TrimSpace(c.Exchanges[i].Name))
		if name == "" {
			return errors.Errorf("config: exchange at index %d has no name", i)
		}
		if seen[name] {
			return errors.Errorf("config: exchange %s configured more than once", name)
		}
		seen[name] = true
		c.Exchanges[i].Name = name
	}
	switch c.Connection.Storage {
	case "sqlite", "mysql":
	case "postgres":
		if c.Connection.Postgres.DSN == "" {
			return errors.New("config: postgres storage needs connection.postgres.dsn")
		}
	default:
		return errors.Errorf("config: unknown storage %q, should be sqlite, postgres or mysql", c.Connection.Storage)
	}
	for _, sink := range c.LogSinks {
		switch sink {
		case "terminal":
		case "elastic_search":
			if len(c.Connection.ES.Addresses) == 0 {
				return errors.New("config: elastic_search log sink needs connection.elastic_search.addresses")
			}
		default:
			return errors.Errorf("config: unknown log sink %q", sink)
		}
	}
	switch c.Log.Level {
	case "error", "info", "debug":
	default:
		return errors.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// EnabledExchanges returns the configured exchanges which are not disabled.
func (c *Config) EnabledExchanges() []Exchange {
	out := make([]Exchange, 0, len(c.Exchanges))
	for _, exch := range c.Exchanges {
		if !exch.Disabled {
			out = append(out, exch)
		}
	}
	return out
}
