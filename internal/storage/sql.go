package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQL is the gorm backed store, used with sqlite or postgres.
type SQL struct {
	db *gorm.DB
}

type tickerRecord struct {
	ID            uint     `gorm:"primaryKey"`
	Exchange      string   `gorm:"size:50;not null;uniqueIndex:idx_spot_tickers_exchange_symbol"`
	Symbol        string   `gorm:"size:50;not null;uniqueIndex:idx_spot_tickers_exchange_symbol"`
	BaseCurrency  string   `gorm:"size:30;not null"`
	QuoteCurrency string   `gorm:"size:10;not null"`
	Price         *float64 `gorm:"column:price"`
	Volume24h     *float64 `gorm:"column:volume_24h"`
	High24h       *float64 `gorm:"column:high_24h"`
	Low24h        *float64 `gorm:"column:low_24h"`
	Change24h     *float64 `gorm:"column:change_24h"`
	Turnover24h   *float64 `gorm:"column:turnover_24h"`
	FetchedAt     time.Time
}

func (tickerRecord) TableName() string { return "spot_tickers" }

type fetchLogRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Exchange     string `gorm:"size:50;not null;index"`
	Status       string `gorm:"size:20;not null"`
	PairsCount   int
	ErrorMessage *string   `gorm:"type:text"`
	FetchedAt    time.Time `gorm:"index"`
}

func (fetchLogRecord) TableName() string { return "fetch_logs" }

type marketListRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Exchange  string `gorm:"size:50;not null;uniqueIndex:idx_market_lists_exchange_symbol"`
	Symbol    string `gorm:"size:50;not null;uniqueIndex:idx_market_lists_exchange_symbol"`
	List      string `gorm:"size:20;not null"`
	UpdatedAt time.Time
}

func (marketListRecord) TableName() string { return "market_lists" }

// NewSQLite opens (creating if needed) the sqlite database file at cfg.Path.
func NewSQLite(cfg *config.SQLite) (*SQL, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite directory")
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), gormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sqlite handle")
	}
	// sqlite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return newSQL(db)
}

// NewPostgres connects to postgres with configured values.
func NewPostgres(cfg *config.Postgres) (*SQL, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), gormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "postgres handle")
	}
	sqlDB.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	return newSQL(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}

func newSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&tickerRecord{}, &fetchLogRecord{}, &marketListRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate tables")
	}
	return &SQL{db: db}, nil
}

// ReplaceSnapshot deletes every stored ticker of the exchange and inserts tickers, in one transaction.
func (s *SQL) ReplaceSnapshot(ctx context.Context, exchange string, tickers []Ticker) error {
	now := time.Now().UTC()
	unique := uniqueTickers(tickers)
	records := make([]tickerRecord, 0, len(unique))
	for _, t := range unique {
		records = append(records, toTickerRecord(exchange, t, now))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exchange = ?", exchange).Delete(&tickerRecord{}).Error; err != nil {
			return errors.Wrap(err, "delete snapshot")
		}
		if len(records) == 0 {
			return nil
		}
		return errors.Wrap(tx.CreateInBatches(&records, 500).Error, "insert snapshot")
	})
}

// ReadAllSnapshots returns the tickers of all exchanges ordered by exchange and symbol.
func (s *SQL) ReadAllSnapshots(ctx context.Context) ([]Ticker, error) {
	var records []tickerRecord
	if err := s.db.WithContext(ctx).Order("exchange").Order("symbol").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "read snapshots")
	}
	tickers := make([]Ticker, len(records))
	for i, r := range records {
		tickers[i] = r.toTicker()
	}
	return tickers, nil
}

// AppendLog inserts a fetch log entry.
func (s *SQL) AppendLog(ctx context.Context, entry FetchLog) error {
	r := fetchLogRecord{
		Exchange:     entry.Exchange,
		Status:       entry.Status,
		PairsCount:   entry.PairsCount,
		ErrorMessage: nullString(entry.ErrorMessage),
		FetchedAt:    entry.FetchedAt,
	}
	if r.FetchedAt.IsZero() {
		r.FetchedAt = time.Now().UTC()
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&r).Error, "append fetch log")
}

// RecentLogs returns the newest limit log entries, newest first.
func (s *SQL) RecentLogs(ctx context.Context, limit int) ([]FetchLog, error) {
	var records []fetchLogRecord
	err := s.db.WithContext(ctx).Order("fetched_at desc").Order("id desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "read fetch logs")
	}
	logs := make([]FetchLog, len(records))
	for i, r := range records {
		logs[i] = r.toFetchLog()
	}
	return logs, nil
}

// LatestLogs returns the newest log entry of every exchange which has one.
func (s *SQL) LatestLogs(ctx context.Context) (map[string]FetchLog, error) {
	db := s.db.WithContext(ctx)
	latest := db.Model(&fetchLogRecord{}).Select("MAX(id)").Group("exchange")
	var records []fetchLogRecord
	if err := db.Where("id IN (?)", latest).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "read latest fetch logs")
	}
	logs := make(map[string]FetchLog, len(records))
	for _, r := range records {
		logs[r.Exchange] = r.toFetchLog()
	}
	return logs, nil
}

// SnapshotCounts returns the number of stored tickers per exchange.
func (s *SQL) SnapshotCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Exchange string
		Count    int
	}
	err := s.db.WithContext(ctx).Model(&tickerRecord{}).Select("exchange, COUNT(*) AS count").Group("exchange").Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count snapshots")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Exchange] = r.Count
	}
	return counts, nil
}

// MarketLists returns every market list entry.
func (s *SQL) MarketLists(ctx context.Context) ([]MarketListEntry, error) {
	var records []marketListRecord
	if err := s.db.WithContext(ctx).Order("exchange").Order("symbol").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "read market lists")
	}
	entries := make([]MarketListEntry, len(records))
	for i, r := range records {
		entries[i] = MarketListEntry{Exchange: r.Exchange, Symbol: r.Symbol, List: r.List}
	}
	return entries, nil
}

// SetMarketList puts the pair in the entry's list, taking it out of any other list.
func (s *SQL) SetMarketList(ctx context.Context, entry MarketListEntry) error {
	if !ValidList(entry.List) {
		return errors.Wrap(ErrUnknownList, entry.List)
	}
	r := marketListRecord{
		Exchange:  entry.Exchange,
		Symbol:    entry.Symbol,
		List:      entry.List,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"list", "updated_at"}),
	}).Create(&r).Error
	return errors.Wrap(err, "set market list")
}

// RemoveMarketList takes the pair out of whichever list it is in.
func (s *SQL) RemoveMarketList(ctx context.Context, exchange string, symbol string) error {
	err := s.db.WithContext(ctx).Where("exchange = ? AND symbol = ?", exchange, symbol).Delete(&marketListRecord{}).Error
	return errors.Wrap(err, "remove market list")
}

// Close closes the underlying database connections.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toTickerRecord(exchange string, t Ticker, now time.Time) tickerRecord {
	fetchedAt := t.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}
	return tickerRecord{
		Exchange:      exchange,
		Symbol:        t.Symbol,
		BaseCurrency:  t.BaseCurrency,
		QuoteCurrency: t.QuoteCurrency,
		Price:         t.Price,
		Volume24h:     t.Volume24h,
		High24h:       t.High24h,
		Low24h:        t.Low24h,
		Change24h:     t.Change24h,
		Turnover24h:   t.Turnover24h,
		FetchedAt:     fetchedAt,
	}
}

func (r tickerRecord) toTicker() Ticker {
	return Ticker{
		Exchange:      r.Exchange,
		Symbol:        r.Symbol,
		BaseCurrency:  r.BaseCurrency,
		QuoteCurrency: r.QuoteCurrency,
		Price:         r.Price,
		Volume24h:     r.Volume24h,
		High24h:       r.High24h,
		Low24h:        r.Low24h,
		Change24h:     r.Change24h,
		Turnover24h:   r.Turnover24h,
		FetchedAt:     r.FetchedAt.UTC(),
	}
}

func (r fetchLogRecord) toFetchLog() FetchLog {
	l := FetchLog{
		ID:         r.ID,
		Exchange:   r.Exchange,
		Status:     r.Status,
		PairsCount: r.PairsCount,
		FetchedAt:  r.FetchedAt.UTC(),
	}
	if r.ErrorMessage != nil {
		l.ErrorMessage = *r.ErrorMessage
	}
	return l
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// uniqueTickers keeps the first ticker of every symbol.
func uniqueTickers(tickers []Ticker) []Ticker {
	seen := make(map[string]bool, len(tickers))
	out := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if seen[t.Symbol] {
			continue
		}
		seen[t.Symbol] = true
		out = append(out, t)
	}
	return out
}
