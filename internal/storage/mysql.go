package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	// Registers the mysql driver for database/sql.
	_ "github.com/go-sql-driver/mysql"
	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/pkg/errors"
)

// MySQL is for connecting and storing snapshots in mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

// Rows per insert statement, keeps placeholders well under the mysql limit.
const mysqlInsertBatch = 500

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS spot_tickers (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		exchange VARCHAR(50) NOT NULL,
		symbol VARCHAR(50) NOT NULL,
		base_currency VARCHAR(30) NOT NULL,
		quote_currency VARCHAR(10) NOT NULL,
		price DOUBLE NULL,
		volume_24h DOUBLE NULL,
		high_24h DOUBLE NULL,
		low_24h DOUBLE NULL,
		change_24h DOUBLE NULL,
		turnover_24h DOUBLE NULL,
		fetched_at DATETIME(3) NOT NULL,
		UNIQUE KEY idx_spot_tickers_exchange_symbol (exchange, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS fetch_logs (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		exchange VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		pairs_count INT NOT NULL DEFAULT 0,
		error_message TEXT NULL,
		fetched_at DATETIME(3) NOT NULL,
		KEY idx_fetch_logs_exchange (exchange),
		KEY idx_fetch_logs_fetched_at (fetched_at)
	)`,
	`CREATE TABLE IF NOT EXISTS market_lists (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		exchange VARCHAR(50) NOT NULL,
		symbol VARCHAR(50) NOT NULL,
		list VARCHAR(20) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY idx_market_lists_exchange_symbol (exchange, symbol)
	)`,
}

// NewMySQL connects to mysql with configured values and creates the tables if missing.
func NewMySQL(cfg *config.MySQL) (*MySQL, error) {
	dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema + "?parseTime=true&loc=UTC"
	db, err := sql.Open("mysql", dataSourceName)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	m := &MySQL{DB: db, Cfg: cfg}
	ctx, cancel := withTimeout(context.Background(), cfg.ReqTimeoutSec)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		return nil, err
	}
	for _, stmt := range mysqlSchema {
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrap(err, "create mysql tables")
		}
	}
	return m, nil
}

// ReplaceSnapshot deletes every stored ticker of the exchange and inserts tickers, in one transaction.
func (m *MySQL) ReplaceSnapshot(appCtx context.Context, exchange string, tickers []Ticker) error {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin snapshot transaction")
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM spot_tickers WHERE exchange = ?", exchange); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "delete snapshot")
	}

	now := time.Now().UTC()
	unique := uniqueTickers(tickers)
	for start := 0; start < len(unique); start += mysqlInsertBatch {
		end := start + mysqlInsertBatch
		if end > len(unique) {
			end = len(unique)
		}
		var sb strings.Builder
		sb.WriteString("INSERT INTO spot_tickers(exchange, symbol, base_currency, quote_currency, price, volume_24h, high_24h, low_24h, change_24h, turnover_24h, fetched_at) VALUES ")
		args := make([]interface{}, 0, (end-start)*11)
		for i, t := range unique[start:end] {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			r := toTickerRecord(exchange, t, now)
			args = append(args, r.Exchange, r.Symbol, r.BaseCurrency, r.QuoteCurrency,
				r.Price, r.Volume24h, r.High24h, r.Low24h, r.Change24h, r.Turnover24h, r.FetchedAt)
		}
		if _, err = tx.ExecContext(ctx, sb.String(), args...); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "insert snapshot")
		}
	}
	return errors.Wrap(tx.Commit(), "commit snapshot")
}

// ReadAllSnapshots returns the tickers of all exchanges ordered by exchange and symbol.
func (m *MySQL) ReadAllSnapshots(appCtx context.Context) ([]Ticker, error) {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT exchange, symbol, base_currency, quote_currency, price, volume_24h,
		high_24h, low_24h, change_24h, turnover_24h, fetched_at FROM spot_tickers ORDER BY exchange, symbol`)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshots")
	}
	defer rows.Close()

	var tickers []Ticker
	for rows.Next() {
		var (
			t                                          Ticker
			price, volume, high, low, change, turnover sql.NullFloat64
		)
		err = rows.Scan(&t.Exchange, &t.Symbol, &t.BaseCurrency, &t.QuoteCurrency,
			&price, &volume, &high, &low, &change, &turnover, &t.FetchedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		t.Price = nullFloat(price)
		t.Volume24h = nullFloat(volume)
		t.High24h = nullFloat(high)
		t.Low24h = nullFloat(low)
		t.Change24h = nullFloat(change)
		t.Turnover24h = nullFloat(turnover)
		tickers = append(tickers, t)
	}
	return tickers, errors.Wrap(rows.Err(), "read snapshots")
}

// AppendLog inserts a fetch log entry.
func (m *MySQL) AppendLog(appCtx context.Context, entry FetchLog) error {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err := m.DB.ExecContext(ctx, "INSERT INTO fetch_logs(exchange, status, pairs_count, error_message, fetched_at) VALUES (?, ?, ?, ?, ?)",
		entry.Exchange, entry.Status, entry.PairsCount, nullString(entry.ErrorMessage), fetchedAt)
	return errors.Wrap(err, "append fetch log")
}

// RecentLogs returns the newest limit log entries, newest first.
func (m *MySQL) RecentLogs(appCtx context.Context, limit int) ([]FetchLog, error) {
	return m.queryLogs(appCtx, `SELECT id, exchange, status, pairs_count, error_message, fetched_at FROM fetch_logs
		ORDER BY fetched_at DESC, id DESC LIMIT ?`, limit)
}

// LatestLogs returns the newest log entry of every exchange which has one.
func (m *MySQL) LatestLogs(appCtx context.Context) (map[string]FetchLog, error) {
	logs, err := m.queryLogs(appCtx, `SELECT id, exchange, status, pairs_count, error_message, fetched_at FROM fetch_logs
		WHERE id IN (SELECT MAX(id) FROM fetch_logs GROUP BY exchange)`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FetchLog, len(logs))
	for _, l := range logs {
		out[l.Exchange] = l
	}
	return out, nil
}

func (m *MySQL) queryLogs(appCtx context.Context, query string, args ...interface{}) ([]FetchLog, error) {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "read fetch logs")
	}
	defer rows.Close()

	var logs []FetchLog
	for rows.Next() {
		var (
			l   FetchLog
			msg sql.NullString
		)
		if err = rows.Scan(&l.ID, &l.Exchange, &l.Status, &l.PairsCount, &msg, &l.FetchedAt); err != nil {
			return nil, errors.Wrap(err, "scan fetch log")
		}
		l.ErrorMessage = msg.String
		logs = append(logs, l)
	}
	return logs, errors.Wrap(rows.Err(), "read fetch logs")
}

// SnapshotCounts returns the number of stored tickers per exchange.
func (m *MySQL) SnapshotCounts(appCtx context.Context) (map[string]int, error) {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, "SELECT exchange, COUNT(*) FROM spot_tickers GROUP BY exchange")
	if err != nil {
		return nil, errors.Wrap(err, "count snapshots")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			exchange string
			count    int
		)
		if err = rows.Scan(&exchange, &count); err != nil {
			return nil, errors.Wrap(err, "scan snapshot count")
		}
		counts[exchange] = count
	}
	return counts, errors.Wrap(rows.Err(), "count snapshots")
}

// MarketLists returns every market list entry.
func (m *MySQL) MarketLists(appCtx context.Context) ([]MarketListEntry, error) {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, "SELECT exchange, symbol, list FROM market_lists ORDER BY exchange, symbol")
	if err != nil {
		return nil, errors.Wrap(err, "read market lists")
	}
	defer rows.Close()

	var entries []MarketListEntry
	for rows.Next() {
		var e MarketListEntry
		if err = rows.Scan(&e.Exchange, &e.Symbol, &e.List); err != nil {
			return nil, errors.Wrap(err, "scan market list")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "read market lists")
}

// SetMarketList puts the pair in the entry's list, taking it out of any other list.
func (m *MySQL) SetMarketList(appCtx context.Context, entry MarketListEntry) error {
	if !ValidList(entry.List) {
		return errors.Wrap(ErrUnknownList, entry.List)
	}
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, `INSERT INTO market_lists(exchange, symbol, list, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE list = VALUES(list), updated_at = VALUES(updated_at)`,
		entry.Exchange, entry.Symbol, entry.List, time.Now().UTC())
	return errors.Wrap(err, "set market list")
}

// RemoveMarketList takes the pair out of whichever list it is in.
func (m *MySQL) RemoveMarketList(appCtx context.Context, exchange string, symbol string) error {
	ctx, cancel := withTimeout(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, "DELETE FROM market_lists WHERE exchange = ? AND symbol = ?", exchange, symbol)
	return errors.Wrap(err, "remove market list")
}

// Close closes the database connections.
func (m *MySQL) Close() error {
	return m.DB.Close()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
