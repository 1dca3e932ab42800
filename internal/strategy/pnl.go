package strategy

// PnL is the per-tick profit and loss of a credit spread.
type PnL struct {
	SellPnl    float64
	BuyPnl     float64
	TotalPnl   float64
	Percentage float64
}

// ComputePnL is the single source of truth for credit-spread P&L. The short
// leg profits as its LTP falls, the long leg as its LTP rises. A zero
// capital base reports 0%, never a division by zero.
func ComputePnL(entrySell, entryBuy, currentSell, currentBuy float64, totalQuantity int, capitalUsed float64) PnL {
	qty := float64(totalQuantity)

	p := PnL{
		SellPnl: (entrySell - currentSell) * qty,
		BuyPnl:  (currentBuy - entryBuy) * qty,
	}
	p.TotalPnl = p.SellPnl + p.BuyPnl
	if capitalUsed != 0 {
		p.Percentage = p.TotalPnl / capitalUsed * 100
	}
	return p
}
