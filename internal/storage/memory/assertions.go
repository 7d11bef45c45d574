package memory

import (
	"github.com/govalues/money"

	"github.com/tinoosan/bankrecon/internal/service/journal"
	"github.com/tinoosan/bankrecon/internal/service/matching"
	"github.com/tinoosan/bankrecon/internal/service/reconciliation"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ reconciliation.Repo   = (*Store)(nil)
	_ reconciliation.Writer = (*Store)(nil)
	_ matching.Repo         = (*Store)(nil)
	_ matching.Writer       = (*Store)(nil)
	_ journal.Repo          = (*Store)(nil)
	_ journal.Writer        = (*Store)(nil)
)

func mustAmount(currency string, minor int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(currency, minor)
	return a
}
