package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "nifty-signals/internal/errors"
	"nifty-signals/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	testDay    = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	testExpiry = time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC)
	t0         = time.Date(2025, 9, 1, 4, 0, 0, 0, time.UTC)
	t1         = t0.Add(3 * time.Minute)
)

func chainRow(strike float64, ceOi, peOi int64, ceLtp, peLtp float64, ts time.Time) models.OptionChainRow {
	return models.OptionChainRow{
		Underlying: models.UnderlyingNifty,
		Strike:     strike,
		Expiry:     testExpiry,
		CEOi:       ceOi,
		PEOi:       peOi,
		CELtp:      ceLtp,
		PELtp:      peLtp,
		Timestamp:  ts,
	}
}

func TestPriceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestPrice(ctx, models.UnderlyingNifty); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("empty store error = %v, want ErrNoData", err)
	}

	snaps := []models.PriceSnapshot{
		{Underlying: models.UnderlyingNifty, Price: 24350, High: 24380, Low: 24330, Timestamp: t0},
		{Underlying: models.UnderlyingNifty, Price: 24390, High: 24400, Low: 24360, Timestamp: t1},
		{Underlying: models.UnderlyingBankNifty, Price: 51200, Timestamp: t1},
	}
	for i := range snaps {
		if err := s.SavePriceSnapshot(ctx, &snaps[i]); err != nil {
			t.Fatalf("SavePriceSnapshot: %v", err)
		}
	}

	latest, err := s.LatestPrice(ctx, models.UnderlyingNifty)
	if err != nil {
		t.Fatalf("LatestPrice: %v", err)
	}
	if latest.Price != 24390 {
		t.Errorf("latest price = %v, want 24390", latest.Price)
	}

	between, err := s.PricesBetween(ctx, models.UnderlyingNifty, t0, t1)
	if err != nil {
		t.Fatalf("PricesBetween: %v", err)
	}
	if len(between) != 2 || between[0].Price != 24350 {
		t.Errorf("between = %d rows, first %v", len(between), between[0].Price)
	}
}

func TestSaveChainRows_WriteTimeDiffing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []models.OptionChainRow{chainRow(24500, 100000, 120000, 180, 95, t0)}
	saved, err := s.SaveChainRows(ctx, first)
	if err != nil || saved != 1 {
		t.Fatalf("first batch: saved=%d err=%v", saved, err)
	}

	// No prior row: changes are zero, not equal to the raw OI.
	q, err := s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24500, testExpiry, testDay)
	if err != nil {
		t.Fatalf("LatestStrikeQuote: %v", err)
	}
	if q.CEOiChange != 0 || q.PEOiChange != 0 {
		t.Errorf("first row changes = %d/%d, want 0/0", q.CEOiChange, q.PEOiChange)
	}

	second := []models.OptionChainRow{chainRow(24500, 115000, 110000, 171, 100, t1)}
	if _, err := s.SaveChainRows(ctx, second); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	q, err = s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24500, testExpiry, testDay)
	if err != nil {
		t.Fatalf("LatestStrikeQuote: %v", err)
	}
	if q.CEOiChange != 15000 || q.PEOiChange != -10000 {
		t.Errorf("OI changes = %d/%d, want 15000/-10000", q.CEOiChange, q.PEOiChange)
	}
	if q.CEChange != -9 || q.PEChange != 5 {
		t.Errorf("LTP changes = %v/%v, want -9/5", q.CEChange, q.PEChange)
	}
	if q.CEChangePercent != -5 {
		t.Errorf("CE change pct = %v, want -5", q.CEChangePercent)
	}
}

func TestSaveChainRows_SkipsEmptyOI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []models.OptionChainRow{
		chainRow(24500, 100000, 120000, 180, 95, t0),
		chainRow(24550, 0, 0, 150, 110, t0),
		chainRow(24600, 0, 90000, 130, 125, t0), // one live side is enough
	}
	saved, err := s.SaveChainRows(ctx, rows)
	if err != nil {
		t.Fatalf("SaveChainRows: %v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}

	if _, err := s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24550, testExpiry, testDay); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("skipped strike error = %v, want ErrNoData", err)
	}
}

func TestLatestStrikeQuote_ScopedToDayAndExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A leftover row from a prior session, against an already-elapsed expiry.
	stale := chainRow(24500, 100000, 120000, 180, 95, time.Date(2025, 8, 29, 6, 0, 0, 0, time.UTC))
	stale.Expiry = time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	if _, err := s.SaveChainRows(ctx, []models.OptionChainRow{stale}); err != nil {
		t.Fatalf("SaveChainRows: %v", err)
	}

	// Nothing ingested today: the stale row must not price a leg.
	if _, err := s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24500, testExpiry, testDay); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("stale-day quote error = %v, want ErrNoData", err)
	}

	// A same-day row for the elapsed expiry still does not match.
	wrongExpiry := chainRow(24500, 90000, 100000, 160, 105, t0)
	wrongExpiry.Expiry = stale.Expiry
	if _, err := s.SaveChainRows(ctx, []models.OptionChainRow{wrongExpiry}); err != nil {
		t.Fatalf("SaveChainRows: %v", err)
	}
	if _, err := s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24500, testExpiry, testDay); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("wrong-expiry quote error = %v, want ErrNoData", err)
	}

	fresh := chainRow(24500, 110000, 118000, 175, 98, t1)
	if _, err := s.SaveChainRows(ctx, []models.OptionChainRow{fresh}); err != nil {
		t.Fatalf("SaveChainRows: %v", err)
	}

	q, err := s.LatestStrikeQuote(ctx, models.UnderlyingNifty, 24500, testExpiry, testDay)
	if err != nil {
		t.Fatalf("LatestStrikeQuote: %v", err)
	}
	if q.CELtp != 175 || !q.Timestamp.Equal(t1) {
		t.Errorf("quote = ltp %v at %s, want today's 175 at %s", q.CELtp, q.Timestamp, t1)
	}
}

func TestOITotalsBetween(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch1 := []models.OptionChainRow{
		chainRow(24500, 100000, 120000, 180, 95, t0),
		chainRow(24600, 80000, 90000, 130, 125, t0),
	}
	batch2 := []models.OptionChainRow{
		chainRow(24500, 110000, 118000, 175, 98, t1),
		chainRow(24600, 85000, 95000, 128, 122, t1),
	}
	for _, b := range [][]models.OptionChainRow{batch1, batch2} {
		if _, err := s.SaveChainRows(ctx, b); err != nil {
			t.Fatalf("SaveChainRows: %v", err)
		}
	}

	totals, err := s.OITotalsBetween(ctx, models.UnderlyingNifty, t0, t1.Add(time.Minute))
	if err != nil {
		t.Fatalf("OITotalsBetween: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %d snapshots, want 2", len(totals))
	}

	// Newest first, strikes summed per timestamp.
	if totals[0].CEOi != 195000 || totals[0].PEOi != 213000 {
		t.Errorf("latest totals = %d/%d, want 195000/213000", totals[0].CEOi, totals[0].PEOi)
	}
	if totals[1].CEOi != 180000 || totals[1].PEOi != 210000 {
		t.Errorf("older totals = %d/%d, want 180000/210000", totals[1].CEOi, totals[1].PEOi)
	}
	if totals[0].CEOiChange != 15000 {
		t.Errorf("latest CE OI change sum = %d, want 15000", totals[0].CEOiChange)
	}
}

func TestTopOIMovers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.TopOIMovers(ctx, models.UnderlyingNifty, 5); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("empty chain error = %v, want ErrNoData", err)
	}

	batch1 := []models.OptionChainRow{
		chainRow(24500, 100000, 120000, 180, 95, t0),
		chainRow(24600, 80000, 90000, 130, 125, t0),
	}
	batch2 := []models.OptionChainRow{
		chainRow(24500, 150000, 110000, 175, 98, t1), // CE +50000, PE -10000
		chainRow(24600, 70000, 130000, 128, 122, t1), // CE -10000, PE +40000
	}
	for _, b := range [][]models.OptionChainRow{batch1, batch2} {
		if _, err := s.SaveChainRows(ctx, b); err != nil {
			t.Fatalf("SaveChainRows: %v", err)
		}
	}

	movers, err := s.TopOIMovers(ctx, models.UnderlyingNifty, 5)
	if err != nil {
		t.Fatalf("TopOIMovers: %v", err)
	}

	if len(movers.CEIncreases) != 1 || movers.CEIncreases[0].Strike != 24500 {
		t.Errorf("CE increases = %+v", movers.CEIncreases)
	}
	if len(movers.PEIncreases) != 1 || movers.PEIncreases[0].Strike != 24600 {
		t.Errorf("PE increases = %+v", movers.PEIncreases)
	}
	if len(movers.CEDecreases) != 1 || len(movers.PEDecreases) != 1 {
		t.Errorf("decreases = %d CE, %d PE", len(movers.CEDecreases), len(movers.PEDecreases))
	}
}

func TestExpirySettingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetExpirySetting(ctx, models.UnderlyingNifty); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("missing setting error = %v, want ErrNoData", err)
	}

	setting := &models.ExpirySetting{
		Underlying:    models.UnderlyingNifty,
		CurrentExpiry: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
		NextExpiry:    time.Date(2025, 9, 11, 0, 0, 0, 0, time.UTC),
	}
	if err := s.SaveExpirySetting(ctx, setting); err != nil {
		t.Fatalf("SaveExpirySetting: %v", err)
	}

	got, err := s.GetExpirySetting(ctx, models.UnderlyingNifty)
	if err != nil {
		t.Fatalf("GetExpirySetting: %v", err)
	}
	if !got.CurrentExpiry.Equal(setting.CurrentExpiry) || !got.NextExpiry.Equal(setting.NextExpiry) {
		t.Errorf("expiry = %s/%s", got.CurrentExpiry, got.NextExpiry)
	}
}

func TestUpsertIndexStocks_PreservesOpeningPrice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []models.IndexStock{{
		Symbol:       "RELIANCE",
		Weightage:    9.5,
		CurrentPrice: 2900,
		OpeningPrice: 2900,
		TradingDate:  testDay,
		LastUpdated:  t0,
	}}
	if err := s.UpsertIndexStocks(ctx, first); err != nil {
		t.Fatalf("UpsertIndexStocks: %v", err)
	}

	update := []models.IndexStock{{
		Symbol:        "RELIANCE",
		Weightage:     9.5,
		CurrentPrice:  2930,
		OpeningPrice:  2930, // must not overwrite the captured open
		ChangePercent: 1.03,
		Influence:     0.098,
		TradingDate:   testDay,
		LastUpdated:   t1,
	}}
	if err := s.UpsertIndexStocks(ctx, update); err != nil {
		t.Fatalf("UpsertIndexStocks update: %v", err)
	}

	stocks, err := s.GetIndexStocks(ctx, testDay)
	if err != nil {
		t.Fatalf("GetIndexStocks: %v", err)
	}
	if len(stocks) != 1 {
		t.Fatalf("stocks = %d rows, want 1", len(stocks))
	}
	if stocks[0].OpeningPrice != 2900 {
		t.Errorf("opening price = %v, want 2900 preserved", stocks[0].OpeningPrice)
	}
	if stocks[0].CurrentPrice != 2930 {
		t.Errorf("current price = %v, want 2930", stocks[0].CurrentPrice)
	}
}

func TestExecutionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.ActiveExecution(ctx, models.UnderlyingNifty, testDay); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("no active error = %v, want ErrNoData", err)
	}

	entry := &models.StrategyEntry{
		EntryDate:    testDay,
		EntryTime:    t0,
		Underlying:   models.UnderlyingNifty,
		RangeHigh:    24400,
		RangeLow:     24300,
		TriggerType:  models.TriggerLowBreak,
		TriggerPrice: 24250,
		SellStrike:   24500,
		BuyStrike:    24700,
		OptionType:   models.OptionCE,
		SellLtpEntry: 180, BuyLtpEntry: 60, NetPremiumEntry: 120,
		Lots: 3, QuantityPerLot: 75, TotalQuantity: 225,
		CapitalUsed: 45000,
	}
	entryID, err := s.SaveStrategyEntry(ctx, entry)
	if err != nil {
		t.Fatalf("SaveStrategyEntry: %v", err)
	}

	exec := &models.StrategyExecution{
		EntryID:       entryID,
		ExecutionDate: testDay,
		Timestamp:     t0,
		Underlying:    models.UnderlyingNifty,
		RangeHigh:     24400,
		RangeLow:      24300,
		CurrentPrice:  24250,
		Triggered:     true,
		TriggerType:   models.TriggerLowBreak,
		SellStrike:    24500,
		BuyStrike:     24700,
		OptionType:    models.OptionCE,
		SellLtpEntry:  180, BuyLtpEntry: 60, NetPremiumEntry: 120,
		SellLtpCurrent: 180, BuyLtpCurrent: 60, NetPremiumCurrent: 120,
		CapitalUsed: 45000,
		Lots:        3, QuantityPerLot: 75, TotalQuantity: 225,
		Status: models.TradeOpen,
	}
	if _, err := s.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}

	active, err := s.ActiveExecution(ctx, models.UnderlyingNifty, testDay)
	if err != nil {
		t.Fatalf("ActiveExecution: %v", err)
	}
	if active.ID != exec.ID || !active.Triggered || active.TriggerType != models.TriggerLowBreak {
		t.Errorf("active = %+v", active)
	}

	count, err := s.TriggeredCountForDay(ctx, models.UnderlyingNifty, testDay)
	if err != nil || count != 1 {
		t.Fatalf("triggered count = %d err = %v, want 1", count, err)
	}

	exec.Status = models.TradeClosed
	exec.CloseReason = "price crossed back through range (LOW_BREAK)"
	exec.ClosedAt = t1
	exec.CurrentPnl = 2250
	if err := s.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}

	if _, err := s.ActiveExecution(ctx, models.UnderlyingNifty, testDay); !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("closed trade still reported active: %v", err)
	}

	// Closed trades still count against the daily cap.
	count, err = s.TriggeredCountForDay(ctx, models.UnderlyingNifty, testDay)
	if err != nil || count != 1 {
		t.Errorf("triggered count after close = %d err = %v, want 1", count, err)
	}

	execs, err := s.ExecutionsForDay(ctx, models.UnderlyingNifty, testDay)
	if err != nil {
		t.Fatalf("ExecutionsForDay: %v", err)
	}
	if len(execs) != 1 || execs[0].Status != models.TradeClosed || execs[0].CloseReason == "" {
		t.Errorf("day executions = %+v", execs)
	}
}

func TestSaveEntryWithExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &models.StrategyEntry{
		EntryDate:    testDay,
		EntryTime:    t0,
		Underlying:   models.UnderlyingNifty,
		RangeHigh:    24400,
		RangeLow:     24300,
		TriggerType:  models.TriggerLowBreak,
		TriggerPrice: 24250,
		SellStrike:   24500,
		BuyStrike:    24700,
		OptionType:   models.OptionCE,
		SellLtpEntry: 180, BuyLtpEntry: 60, NetPremiumEntry: 120,
		Lots: 3, QuantityPerLot: 75, TotalQuantity: 225,
		CapitalUsed: 45000,
	}
	exec := &models.StrategyExecution{
		ExecutionDate: testDay,
		Timestamp:     t0,
		Underlying:    models.UnderlyingNifty,
		RangeHigh:     24400,
		RangeLow:      24300,
		CurrentPrice:  24250,
		Triggered:     true,
		TriggerType:   models.TriggerLowBreak,
		SellStrike:    24500,
		BuyStrike:     24700,
		OptionType:    models.OptionCE,
		SellLtpEntry:  180, BuyLtpEntry: 60, NetPremiumEntry: 120,
		SellLtpCurrent: 180, BuyLtpCurrent: 60, NetPremiumCurrent: 120,
		CapitalUsed: 45000,
		Lots:        3, QuantityPerLot: 75, TotalQuantity: 225,
		Status: models.TradeOpen,
	}

	if err := s.SaveEntryWithExecution(ctx, entry, exec); err != nil {
		t.Fatalf("SaveEntryWithExecution: %v", err)
	}

	if entry.ID == 0 || exec.ID == 0 {
		t.Fatalf("ids = entry %d, exec %d, want both assigned", entry.ID, exec.ID)
	}
	if exec.EntryID != entry.ID {
		t.Errorf("exec entry id = %d, want %d", exec.EntryID, entry.ID)
	}

	active, err := s.ActiveExecution(ctx, models.UnderlyingNifty, testDay)
	if err != nil {
		t.Fatalf("ActiveExecution: %v", err)
	}
	if active.ID != exec.ID || active.EntryID != entry.ID {
		t.Errorf("active = id %d entry %d", active.ID, active.EntryID)
	}

	count, err := s.TriggeredCountForDay(ctx, models.UnderlyingNifty, testDay)
	if err != nil || count != 1 {
		t.Errorf("triggered count = %d err = %v, want 1", count, err)
	}
}

func TestLtpTicksOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tick := &models.StrategyLtpTick{
			EntryID:   7,
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			SellLtp:   180 - float64(i),
			BuyLtp:    60,
			TotalPnl:  float64(i) * 225,
			Closing:   i == 2,
		}
		if err := s.SaveLtpTick(ctx, tick); err != nil {
			t.Fatalf("SaveLtpTick: %v", err)
		}
	}

	ticks, err := s.LtpTicks(ctx, 7)
	if err != nil {
		t.Fatalf("LtpTicks: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(ticks))
	}
	if !ticks[0].Timestamp.Before(ticks[2].Timestamp) {
		t.Error("ticks must be oldest first")
	}
	if ticks[2].Closing != true || ticks[0].Closing {
		t.Error("closing flag round trip failed")
	}
}

func TestUpdateExecution_NotFound(t *testing.T) {
	s := newTestStore(t)

	exec := &models.StrategyExecution{ID: 999, Status: models.TradeOpen}
	err := s.UpdateExecution(context.Background(), exec)
	if err == nil {
		t.Fatal("expected an error for a missing execution")
	}
	var storeErr *apperrors.StoreError
	if !apperrors.As(err, &storeErr) {
		t.Errorf("error type = %T, want *StoreError", err)
	}
}
