package domain

import (
	"fmt"
	"time"
)

// ActivityReport is a point-in-time snapshot of the activity ledger,
// emitted periodically to the notification sink.
type ActivityReport struct {
	TotalBuys    uint64
	TotalSells   uint64
	FailedTrades uint64
	BuyVolume    uint64 // funding token spent, smallest units
	SellVolume   uint64 // traded token sold, smallest units
	Rotations    uint64
	StartedAt    time.Time
	GeneratedAt  time.Time
}

// String renders the report as a short human-readable summary.
func (r ActivityReport) String() string {
	uptime := r.GeneratedAt.Sub(r.StartedAt).Round(time.Second)
	return fmt.Sprintf(
		"Activity report\nUptime: %s\nBuys: %d (%d lamports)\nSells: %d (%d units)\nFailed: %d\nRotations: %d",
		uptime, r.TotalBuys, r.BuyVolume, r.TotalSells, r.SellVolume, r.FailedTrades, r.Rotations,
	)
}
