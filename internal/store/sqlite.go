// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "nifty-signals/internal/errors"
	"nifty-signals/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Index price snapshots, append-only
	CREATE TABLE IF NOT EXISTS price_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		underlying TEXT NOT NULL,
		price REAL NOT NULL,
		open REAL,
		high REAL,
		low REAL,
		close REAL,
		change REAL,
		change_percent REAL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Option chain rows, one per strike per ingest
	CREATE TABLE IF NOT EXISTS option_chain (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		underlying TEXT NOT NULL,
		strike REAL NOT NULL,
		expiry DATE NOT NULL,
		ce_oi INTEGER NOT NULL,
		ce_oi_change INTEGER NOT NULL,
		ce_volume INTEGER,
		ce_ltp REAL,
		ce_change REAL,
		ce_change_percent REAL,
		pe_oi INTEGER NOT NULL,
		pe_oi_change INTEGER NOT NULL,
		pe_volume INTEGER,
		pe_ltp REAL,
		pe_change REAL,
		pe_change_percent REAL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-underlying expiry overrides
	CREATE TABLE IF NOT EXISTS expiry_settings (
		underlying TEXT PRIMARY KEY,
		current_expiry DATE NOT NULL,
		next_expiry DATE,
		updated_at DATETIME NOT NULL
	);

	-- Index constituent stocks, one row per symbol per trading day
	CREATE TABLE IF NOT EXISTS index_stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		company_name TEXT,
		sector TEXT,
		weightage REAL NOT NULL,
		current_price REAL,
		opening_price REAL,
		price_change REAL,
		change_percent REAL,
		influence REAL,
		volume INTEGER,
		trading_date DATE NOT NULL,
		last_updated DATETIME NOT NULL,
		UNIQUE(symbol, trading_date)
	);

	-- Immutable trade cost basis
	CREATE TABLE IF NOT EXISTS strategy_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_date DATE NOT NULL,
		entry_time DATETIME NOT NULL,
		underlying TEXT NOT NULL,
		range_high REAL NOT NULL,
		range_low REAL NOT NULL,
		price_at_start REAL,
		price_at_end REAL,
		trigger_type TEXT NOT NULL,
		trigger_price REAL NOT NULL,
		sell_strike REAL NOT NULL,
		buy_strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		sell_ltp_entry REAL NOT NULL,
		buy_ltp_entry REAL NOT NULL,
		net_premium_entry REAL NOT NULL,
		lots INTEGER NOT NULL,
		quantity_per_lot INTEGER NOT NULL,
		total_quantity INTEGER NOT NULL,
		capital_used REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Append-only monitoring ticks
	CREATE TABLE IF NOT EXISTS strategy_ltp_ticks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		nifty_price REAL,
		sell_ltp REAL NOT NULL,
		buy_ltp REAL NOT NULL,
		net_premium REAL NOT NULL,
		sell_pnl REAL NOT NULL,
		buy_pnl REAL NOT NULL,
		total_pnl REAL NOT NULL,
		pnl_percentage REAL NOT NULL,
		closing INTEGER DEFAULT 0,
		FOREIGN KEY (entry_id) REFERENCES strategy_entries(id)
	);

	-- Live execution mirror, mutable while open
	CREATE TABLE IF NOT EXISTS strategy_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id INTEGER NOT NULL,
		execution_date DATE NOT NULL,
		timestamp DATETIME NOT NULL,
		underlying TEXT NOT NULL,
		range_high REAL NOT NULL,
		range_low REAL NOT NULL,
		current_price REAL,
		triggered INTEGER NOT NULL DEFAULT 0,
		trigger_type TEXT,
		sell_strike REAL NOT NULL,
		buy_strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		sell_ltp_entry REAL NOT NULL,
		buy_ltp_entry REAL NOT NULL,
		net_premium_entry REAL NOT NULL,
		sell_ltp_current REAL,
		buy_ltp_current REAL,
		net_premium_current REAL,
		current_pnl REAL,
		capital_used REAL NOT NULL,
		pnl_percentage REAL,
		lots INTEGER NOT NULL,
		quantity_per_lot INTEGER NOT NULL,
		total_quantity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		close_reason TEXT,
		closed_at DATETIME,
		FOREIGN KEY (entry_id) REFERENCES strategy_entries(id)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_prices_underlying_ts ON price_snapshots(underlying, timestamp);
	CREATE INDEX IF NOT EXISTS idx_chain_underlying_ts ON option_chain(underlying, timestamp);
	CREATE INDEX IF NOT EXISTS idx_chain_strike ON option_chain(underlying, strike, expiry, timestamp);
	CREATE INDEX IF NOT EXISTS idx_stocks_date ON index_stocks(trading_date);
	CREATE INDEX IF NOT EXISTS idx_entries_date ON strategy_entries(underlying, entry_date);
	CREATE INDEX IF NOT EXISTS idx_ticks_entry ON strategy_ltp_ticks(entry_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_executions_date ON strategy_executions(underlying, execution_date);
	CREATE INDEX IF NOT EXISTS idx_executions_status ON strategy_executions(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Price Snapshot Methods
// ============================================================================

// SavePriceSnapshot appends one index price observation.
func (s *SQLiteStore) SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (underlying, price, open, high, low, close, change, change_percent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.Underlying, snap.Price, snap.Open, snap.High, snap.Low, snap.Close, snap.Change, snap.ChangePercent, snap.Timestamp.UTC())
	if err != nil {
		return apperrors.NewStoreError("save", "price_snapshots", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = id
	}
	return nil
}

// LatestPrice returns the most recent price snapshot for an underlying.
// Ties at the same timestamp resolve by insertion order.
func (s *SQLiteStore) LatestPrice(ctx context.Context, underlying models.Underlying) (*models.PriceSnapshot, error) {
	var p models.PriceSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, underlying, price, open, high, low, close, change, change_percent, timestamp
		FROM price_snapshots WHERE underlying = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, underlying).Scan(&p.ID, &p.Underlying, &p.Price, &p.Open, &p.High, &p.Low, &p.Close, &p.Change, &p.ChangePercent, &p.Timestamp)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNoData
	}
	if err != nil {
		return nil, apperrors.NewStoreError("query", "price_snapshots", err)
	}
	p.Timestamp = p.Timestamp.UTC()
	return &p, nil
}

// PricesBetween returns snapshots in [from, to] ordered by timestamp.
func (s *SQLiteStore) PricesBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.PriceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, underlying, price, open, high, low, close, change, change_percent, timestamp
		FROM price_snapshots
		WHERE underlying = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, underlying, from.UTC(), to.UTC())
	if err != nil {
		return nil, apperrors.NewStoreError("query", "price_snapshots", err)
	}
	defer rows.Close()

	var snaps []models.PriceSnapshot
	for rows.Next() {
		var p models.PriceSnapshot
		if err := rows.Scan(&p.ID, &p.Underlying, &p.Price, &p.Open, &p.High, &p.Low, &p.Close, &p.Change, &p.ChangePercent, &p.Timestamp); err != nil {
			return nil, apperrors.NewStoreError("scan", "price_snapshots", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		snaps = append(snaps, p)
	}

	return snaps, rows.Err()
}

// ============================================================================
// Option Chain Methods
// ============================================================================

// SaveChainRows persists a batch of chain rows in one transaction. OI and
// price changes are computed here by diffing the most recent prior row for
// the same underlying+strike+expiry, so they are durable facts rather than
// read-time derivations. Rows with no meaningful OI on either side are
// skipped. Returns the number of rows written.
func (s *SQLiteStore) SaveChainRows(ctx context.Context, rows []models.OptionChainRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreError("begin", "option_chain", err)
	}
	defer tx.Rollback()

	prevStmt, err := tx.PrepareContext(ctx, `
		SELECT ce_oi, ce_ltp, pe_oi, pe_ltp
		FROM option_chain
		WHERE underlying = ? AND strike = ? AND expiry = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`)
	if err != nil {
		return 0, apperrors.NewStoreError("prepare", "option_chain", err)
	}
	defer prevStmt.Close()

	insStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO option_chain (underlying, strike, expiry,
			ce_oi, ce_oi_change, ce_volume, ce_ltp, ce_change, ce_change_percent,
			pe_oi, pe_oi_change, pe_volume, pe_ltp, pe_change, pe_change_percent,
			timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, apperrors.NewStoreError("prepare", "option_chain", err)
	}
	defer insStmt.Close()

	saved := 0
	for _, r := range rows {
		if r.CEOi <= 0 && r.PEOi <= 0 {
			continue
		}

		expiry := tradingDateKey(r.Expiry)

		var prevCEOi, prevPEOi int64
		var prevCELtp, prevPELtp float64
		err := prevStmt.QueryRowContext(ctx, r.Underlying, r.Strike, expiry).
			Scan(&prevCEOi, &prevCELtp, &prevPEOi, &prevPELtp)
		switch {
		case err == sql.ErrNoRows:
			r.CEOiChange, r.PEOiChange = 0, 0
			r.CEChange, r.PEChange = 0, 0
			r.CEChangePercent, r.PEChangePercent = 0, 0
		case err != nil:
			return saved, apperrors.NewStoreError("query", "option_chain", err)
		default:
			r.CEOiChange = r.CEOi - prevCEOi
			r.PEOiChange = r.PEOi - prevPEOi
			r.CEChange = r.CELtp - prevCELtp
			r.PEChange = r.PELtp - prevPELtp
			if prevCELtp != 0 {
				r.CEChangePercent = r.CEChange / prevCELtp * 100
			} else {
				r.CEChangePercent = 0
			}
			if prevPELtp != 0 {
				r.PEChangePercent = r.PEChange / prevPELtp * 100
			} else {
				r.PEChangePercent = 0
			}
		}

		_, err = insStmt.ExecContext(ctx, r.Underlying, r.Strike, expiry,
			r.CEOi, r.CEOiChange, r.CEVolume, r.CELtp, r.CEChange, r.CEChangePercent,
			r.PEOi, r.PEOiChange, r.PEVolume, r.PELtp, r.PEChange, r.PEChangePercent,
			r.Timestamp.UTC())
		if err != nil {
			return saved, apperrors.NewStoreError("insert", "option_chain", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError("commit", "option_chain", err)
	}

	return saved, nil
}

// OITotalsBetween returns chain-wide OI aggregates for every ingest timestamp
// in [from, to), newest first.
func (s *SQLiteStore) OITotalsBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.OITotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, SUM(ce_oi), SUM(pe_oi), SUM(ce_oi_change), SUM(pe_oi_change)
		FROM option_chain
		WHERE underlying = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY timestamp
		ORDER BY timestamp DESC
	`, underlying, from.UTC(), to.UTC())
	if err != nil {
		return nil, apperrors.NewStoreError("query", "option_chain", err)
	}
	defer rows.Close()

	var totals []models.OITotals
	for rows.Next() {
		var t models.OITotals
		if err := rows.Scan(&t.Timestamp, &t.CEOi, &t.PEOi, &t.CEOiChange, &t.PEOiChange); err != nil {
			return nil, apperrors.NewStoreError("scan", "option_chain", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

// TopOIMovers returns the strikes with the largest OI changes at the latest
// ingest timestamp, grouped by side and direction.
func (s *SQLiteStore) TopOIMovers(ctx context.Context, underlying models.Underlying, limit int) (*models.OIMovers, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM option_chain WHERE underlying = ?
	`, underlying).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return nil, apperrors.NewStoreError("query", "option_chain", err)
	}
	if !latest.Valid {
		return nil, apperrors.ErrNoData
	}

	movers := &models.OIMovers{LastUpdated: latest.Time.UTC()}

	queries := []struct {
		dest  *[]models.OptionChainRow
		where string
		order string
	}{
		{&movers.CEIncreases, "ce_oi_change > 0", "ce_oi_change DESC"},
		{&movers.CEDecreases, "ce_oi_change < 0", "ce_oi_change ASC"},
		{&movers.PEIncreases, "pe_oi_change > 0", "pe_oi_change DESC"},
		{&movers.PEDecreases, "pe_oi_change < 0", "pe_oi_change ASC"},
	}

	for _, q := range queries {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, underlying, strike, expiry,
				ce_oi, ce_oi_change, ce_volume, ce_ltp, ce_change, ce_change_percent,
				pe_oi, pe_oi_change, pe_volume, pe_ltp, pe_change, pe_change_percent,
				timestamp
			FROM option_chain
			WHERE underlying = ? AND timestamp = ? AND %s
			ORDER BY %s LIMIT ?
		`, q.where, q.order), underlying, latest.Time, limit)
		if err != nil {
			return nil, apperrors.NewStoreError("query", "option_chain", err)
		}

		for rows.Next() {
			r, err := scanChainRow(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			*q.dest = append(*q.dest, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, apperrors.NewStoreError("scan", "option_chain", err)
		}
		rows.Close()
	}

	return movers, nil
}

// LatestStrikeQuote returns the most recent chain row for one strike and
// expiry, considering only rows ingested at or after since. Callers pass the
// trading day's start so a quote from a prior session never prices a leg;
// a day with no chain rows yet surfaces as ErrNoData.
func (s *SQLiteStore) LatestStrikeQuote(ctx context.Context, underlying models.Underlying, strike float64, expiry, since time.Time) (*models.OptionChainRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, underlying, strike, expiry,
			ce_oi, ce_oi_change, ce_volume, ce_ltp, ce_change, ce_change_percent,
			pe_oi, pe_oi_change, pe_volume, pe_ltp, pe_change, pe_change_percent,
			timestamp
		FROM option_chain
		WHERE underlying = ? AND strike = ? AND expiry = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, underlying, strike, tradingDateKey(expiry), since.UTC())

	r, err := scanChainRow(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChainRow(row rowScanner) (models.OptionChainRow, error) {
	var r models.OptionChainRow
	err := row.Scan(&r.ID, &r.Underlying, &r.Strike, &r.Expiry,
		&r.CEOi, &r.CEOiChange, &r.CEVolume, &r.CELtp, &r.CEChange, &r.CEChangePercent,
		&r.PEOi, &r.PEOiChange, &r.PEVolume, &r.PELtp, &r.PEChange, &r.PEChangePercent,
		&r.Timestamp)
	if err == sql.ErrNoRows {
		return r, err
	}
	if err != nil {
		return r, apperrors.NewStoreError("scan", "option_chain", err)
	}
	r.Expiry = r.Expiry.UTC()
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

// ============================================================================
// Expiry Settings Methods
// ============================================================================

// GetExpirySetting returns the stored expiry override for an underlying.
func (s *SQLiteStore) GetExpirySetting(ctx context.Context, underlying models.Underlying) (*models.ExpirySetting, error) {
	var setting models.ExpirySetting
	var next sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT underlying, current_expiry, next_expiry, updated_at
		FROM expiry_settings WHERE underlying = ?
	`, underlying).Scan(&setting.Underlying, &setting.CurrentExpiry, &next, &setting.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNoData
	}
	if err != nil {
		return nil, apperrors.NewStoreError("query", "expiry_settings", err)
	}

	setting.CurrentExpiry = setting.CurrentExpiry.UTC()
	if next.Valid {
		setting.NextExpiry = next.Time.UTC()
	}
	setting.UpdatedAt = setting.UpdatedAt.UTC()
	return &setting, nil
}

// SaveExpirySetting upserts the expiry override for an underlying.
func (s *SQLiteStore) SaveExpirySetting(ctx context.Context, setting *models.ExpirySetting) error {
	var next interface{}
	if !setting.NextExpiry.IsZero() {
		next = tradingDateKey(setting.NextExpiry)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO expiry_settings (underlying, current_expiry, next_expiry, updated_at)
		VALUES (?, ?, ?, ?)
	`, setting.Underlying, tradingDateKey(setting.CurrentExpiry), next, time.Now().UTC())
	if err != nil {
		return apperrors.NewStoreError("save", "expiry_settings", err)
	}
	return nil
}

// ============================================================================
// Index Stocks Methods
// ============================================================================

// UpsertIndexStocks writes one row per symbol per trading day. The opening
// price is captured on the first quote of the day and preserved on updates.
func (s *SQLiteStore) UpsertIndexStocks(ctx context.Context, stocks []models.IndexStock) error {
	if len(stocks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin", "index_stocks", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_stocks (symbol, company_name, sector, weightage, current_price,
			opening_price, price_change, change_percent, influence, volume, trading_date, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, trading_date) DO UPDATE SET
			current_price = excluded.current_price,
			price_change = excluded.price_change,
			change_percent = excluded.change_percent,
			influence = excluded.influence,
			volume = excluded.volume,
			last_updated = excluded.last_updated
	`)
	if err != nil {
		return apperrors.NewStoreError("prepare", "index_stocks", err)
	}
	defer stmt.Close()

	for _, st := range stocks {
		_, err := stmt.ExecContext(ctx, st.Symbol, st.CompanyName, st.Sector, st.Weightage,
			st.CurrentPrice, st.OpeningPrice, st.PriceChange, st.ChangePercent, st.Influence,
			st.Volume, tradingDateKey(st.TradingDate), st.LastUpdated.UTC())
		if err != nil {
			return apperrors.NewStoreError("upsert", "index_stocks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit", "index_stocks", err)
	}
	return nil
}

// GetIndexStocks returns the constituents for a trading day, heaviest first.
func (s *SQLiteStore) GetIndexStocks(ctx context.Context, tradingDate time.Time) ([]models.IndexStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, company_name, sector, weightage, current_price, opening_price,
			price_change, change_percent, influence, volume, trading_date, last_updated
		FROM index_stocks WHERE trading_date = ?
		ORDER BY weightage DESC
	`, tradingDateKey(tradingDate))
	if err != nil {
		return nil, apperrors.NewStoreError("query", "index_stocks", err)
	}
	defer rows.Close()

	var stocks []models.IndexStock
	for rows.Next() {
		var st models.IndexStock
		if err := rows.Scan(&st.Symbol, &st.CompanyName, &st.Sector, &st.Weightage,
			&st.CurrentPrice, &st.OpeningPrice, &st.PriceChange, &st.ChangePercent,
			&st.Influence, &st.Volume, &st.TradingDate, &st.LastUpdated); err != nil {
			return nil, apperrors.NewStoreError("scan", "index_stocks", err)
		}
		st.TradingDate = st.TradingDate.UTC()
		st.LastUpdated = st.LastUpdated.UTC()
		stocks = append(stocks, st)
	}

	return stocks, rows.Err()
}

// ============================================================================
// Strategy Methods
// ============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SaveStrategyEntry persists an immutable trade cost basis and returns its ID.
func (s *SQLiteStore) SaveStrategyEntry(ctx context.Context, entry *models.StrategyEntry) (int64, error) {
	return insertStrategyEntry(ctx, s.db, entry)
}

func insertStrategyEntry(ctx context.Context, db execer, entry *models.StrategyEntry) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO strategy_entries (entry_date, entry_time, underlying, range_high, range_low,
			price_at_start, price_at_end, trigger_type, trigger_price, sell_strike, buy_strike,
			option_type, sell_ltp_entry, buy_ltp_entry, net_premium_entry,
			lots, quantity_per_lot, total_quantity, capital_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tradingDateKey(entry.EntryDate), entry.EntryTime.UTC(), entry.Underlying,
		entry.RangeHigh, entry.RangeLow, entry.PriceAtStart, entry.PriceAtEnd,
		entry.TriggerType, entry.TriggerPrice, entry.SellStrike, entry.BuyStrike,
		entry.OptionType, entry.SellLtpEntry, entry.BuyLtpEntry, entry.NetPremiumEntry,
		entry.Lots, entry.QuantityPerLot, entry.TotalQuantity, entry.CapitalUsed)
	if err != nil {
		return 0, apperrors.NewStoreError("save", "strategy_entries", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewStoreError("save", "strategy_entries", err)
	}
	entry.ID = id
	return id, nil
}

// SaveLtpTick appends one monitoring observation.
func (s *SQLiteStore) SaveLtpTick(ctx context.Context, tick *models.StrategyLtpTick) error {
	closing := 0
	if tick.Closing {
		closing = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_ltp_ticks (entry_id, timestamp, nifty_price, sell_ltp, buy_ltp,
			net_premium, sell_pnl, buy_pnl, total_pnl, pnl_percentage, closing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tick.EntryID, tick.Timestamp.UTC(), tick.NiftyPrice, tick.SellLtp, tick.BuyLtp,
		tick.NetPremium, tick.SellPnl, tick.BuyPnl, tick.TotalPnl, tick.PnlPercentage, closing)
	if err != nil {
		return apperrors.NewStoreError("save", "strategy_ltp_ticks", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		tick.ID = id
	}
	return nil
}

// LtpTicks returns the monitoring timeline for an entry, oldest first.
func (s *SQLiteStore) LtpTicks(ctx context.Context, entryID int64) ([]models.StrategyLtpTick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, timestamp, nifty_price, sell_ltp, buy_ltp, net_premium,
			sell_pnl, buy_pnl, total_pnl, pnl_percentage, closing
		FROM strategy_ltp_ticks WHERE entry_id = ?
		ORDER BY timestamp ASC, id ASC
	`, entryID)
	if err != nil {
		return nil, apperrors.NewStoreError("query", "strategy_ltp_ticks", err)
	}
	defer rows.Close()

	var ticks []models.StrategyLtpTick
	for rows.Next() {
		var t models.StrategyLtpTick
		var closing int
		if err := rows.Scan(&t.ID, &t.EntryID, &t.Timestamp, &t.NiftyPrice, &t.SellLtp,
			&t.BuyLtp, &t.NetPremium, &t.SellPnl, &t.BuyPnl, &t.TotalPnl,
			&t.PnlPercentage, &closing); err != nil {
			return nil, apperrors.NewStoreError("scan", "strategy_ltp_ticks", err)
		}
		t.Closing = closing == 1
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, t)
	}

	return ticks, rows.Err()
}

// SaveExecution persists a new execution mirror and returns its ID.
func (s *SQLiteStore) SaveExecution(ctx context.Context, exec *models.StrategyExecution) (int64, error) {
	return insertExecution(ctx, s.db, exec)
}

// SaveEntryWithExecution writes a trade's entry and its execution mirror in
// one transaction, so a failed execution write never leaves an orphaned
// entry. The entry ID is assigned inside the transaction and stamped onto
// the execution.
func (s *SQLiteStore) SaveEntryWithExecution(ctx context.Context, entry *models.StrategyEntry, exec *models.StrategyExecution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin", "strategy_entries", err)
	}
	defer tx.Rollback()

	entryID, err := insertStrategyEntry(ctx, tx, entry)
	if err != nil {
		return err
	}
	exec.EntryID = entryID
	if _, err := insertExecution(ctx, tx, exec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit", "strategy_executions", err)
	}
	return nil
}

func insertExecution(ctx context.Context, db execer, exec *models.StrategyExecution) (int64, error) {
	triggered := 0
	if exec.Triggered {
		triggered = 1
	}
	var closedAt interface{}
	if !exec.ClosedAt.IsZero() {
		closedAt = exec.ClosedAt.UTC()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO strategy_executions (entry_id, execution_date, timestamp, underlying,
			range_high, range_low, current_price, triggered, trigger_type,
			sell_strike, buy_strike, option_type,
			sell_ltp_entry, buy_ltp_entry, net_premium_entry,
			sell_ltp_current, buy_ltp_current, net_premium_current,
			current_pnl, capital_used, pnl_percentage,
			lots, quantity_per_lot, total_quantity, status, close_reason, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, exec.EntryID, tradingDateKey(exec.ExecutionDate), exec.Timestamp.UTC(), exec.Underlying,
		exec.RangeHigh, exec.RangeLow, exec.CurrentPrice, triggered, exec.TriggerType,
		exec.SellStrike, exec.BuyStrike, exec.OptionType,
		exec.SellLtpEntry, exec.BuyLtpEntry, exec.NetPremiumEntry,
		exec.SellLtpCurrent, exec.BuyLtpCurrent, exec.NetPremiumCurrent,
		exec.CurrentPnl, exec.CapitalUsed, exec.PnlPercentage,
		exec.Lots, exec.QuantityPerLot, exec.TotalQuantity, exec.Status, exec.CloseReason, closedAt)
	if err != nil {
		return 0, apperrors.NewStoreError("save", "strategy_executions", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewStoreError("save", "strategy_executions", err)
	}
	exec.ID = id
	return id, nil
}

// UpdateExecution rewrites the mutable columns of an execution.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, exec *models.StrategyExecution) error {
	var closedAt interface{}
	if !exec.ClosedAt.IsZero() {
		closedAt = exec.ClosedAt.UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE strategy_executions SET
			timestamp = ?, current_price = ?,
			sell_ltp_current = ?, buy_ltp_current = ?, net_premium_current = ?,
			current_pnl = ?, pnl_percentage = ?,
			status = ?, close_reason = ?, closed_at = ?
		WHERE id = ?
	`, exec.Timestamp.UTC(), exec.CurrentPrice,
		exec.SellLtpCurrent, exec.BuyLtpCurrent, exec.NetPremiumCurrent,
		exec.CurrentPnl, exec.PnlPercentage,
		exec.Status, exec.CloseReason, closedAt, exec.ID)
	if err != nil {
		return apperrors.NewStoreError("update", "strategy_executions", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NewStoreError("update", "strategy_executions",
			fmt.Errorf("execution not found: %d", exec.ID))
	}

	return nil
}

// ActiveExecution returns the open execution for an underlying and day, or
// ErrNoData when none is open.
func (s *SQLiteStore) ActiveExecution(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (*models.StrategyExecution, error) {
	row := s.db.QueryRowContext(ctx, execSelect+`
		WHERE underlying = ? AND execution_date = ? AND status = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, underlying, tradingDateKey(tradingDate), models.TradeOpen)

	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// ExecutionsForDay returns all executions for an underlying and day, newest
// first.
func (s *SQLiteStore) ExecutionsForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) ([]models.StrategyExecution, error) {
	rows, err := s.db.QueryContext(ctx, execSelect+`
		WHERE underlying = ? AND execution_date = ?
		ORDER BY timestamp DESC, id DESC
	`, underlying, tradingDateKey(tradingDate))
	if err != nil {
		return nil, apperrors.NewStoreError("query", "strategy_executions", err)
	}
	defer rows.Close()

	var execs []models.StrategyExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}

	return execs, rows.Err()
}

// TriggeredCountForDay counts triggered executions for the daily cap. Closed
// trades still count against the limit.
func (s *SQLiteStore) TriggeredCountForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM strategy_executions
		WHERE underlying = ? AND execution_date = ? AND triggered = 1
	`, underlying, tradingDateKey(tradingDate)).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStoreError("query", "strategy_executions", err)
	}
	return count, nil
}

const execSelect = `
	SELECT id, entry_id, execution_date, timestamp, underlying,
		range_high, range_low, current_price, triggered, trigger_type,
		sell_strike, buy_strike, option_type,
		sell_ltp_entry, buy_ltp_entry, net_premium_entry,
		sell_ltp_current, buy_ltp_current, net_premium_current,
		current_pnl, capital_used, pnl_percentage,
		lots, quantity_per_lot, total_quantity, status, close_reason, closed_at
	FROM strategy_executions
`

func scanExecution(row rowScanner) (*models.StrategyExecution, error) {
	var e models.StrategyExecution
	var triggered int
	var triggerType, closeReason sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(&e.ID, &e.EntryID, &e.ExecutionDate, &e.Timestamp, &e.Underlying,
		&e.RangeHigh, &e.RangeLow, &e.CurrentPrice, &triggered, &triggerType,
		&e.SellStrike, &e.BuyStrike, &e.OptionType,
		&e.SellLtpEntry, &e.BuyLtpEntry, &e.NetPremiumEntry,
		&e.SellLtpCurrent, &e.BuyLtpCurrent, &e.NetPremiumCurrent,
		&e.CurrentPnl, &e.CapitalUsed, &e.PnlPercentage,
		&e.Lots, &e.QuantityPerLot, &e.TotalQuantity, &e.Status, &closeReason, &closedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewStoreError("scan", "strategy_executions", err)
	}

	e.ExecutionDate = e.ExecutionDate.UTC()
	e.Triggered = triggered == 1
	if triggerType.Valid {
		e.TriggerType = models.TriggerType(triggerType.String)
	}
	if closeReason.Valid {
		e.CloseReason = closeReason.String
	}
	if closedAt.Valid {
		e.ClosedAt = closedAt.Time.UTC()
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}
