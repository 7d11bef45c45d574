package recon

import "github.com/govalues/money"

// Summary holds the figures of the classical bank-reconciliation identity
// for one draft: once every statement item has a matched counterpart or is
// classified as a timing difference, the two adjusted balances converge
// and Difference goes to zero.
type Summary struct {
	Currency               string
	GLBalance              money.Amount
	StatementBalance       money.Amount
	InterestNotInBook      money.Amount
	ChargesNotInBook       money.Amount
	DepositsInTransit      money.Amount
	OutstandingWithdrawals money.Amount
	AdjustedBookBalance    money.Amount
	AdjustedBankBalance    money.Amount
	Difference             money.Amount
}

// Balanced reports whether the residual difference is within tolerance,
// the sole gate for finalization.
func (s Summary) Balanced() bool {
	d, _ := s.Difference.MinorUnits()
	return abs(d) <= ToleranceMinor
}

// Summarize derives the adjusted book and bank balances from the GL
// balance, the statement ending balance and the two unreconciled pools.
// It is a pure function and is recomputed from the store on every pool
// mutation rather than cached.
//
//	adjusted book = gl + interest not in book - charges not in book
//	adjusted bank = statement + deposits in transit - outstanding withdrawals
func Summarize(currency string, glMinor, statementMinor int64, statementPool, systemPool []BankTransaction) Summary {
	var interest, charges int64
	for _, t := range statementPool {
		if m := t.AmountMinor(); m >= 0 {
			interest += m
		} else {
			charges += -m
		}
	}
	var inTransit, outstanding int64
	for _, t := range systemPool {
		if m := t.AmountMinor(); m >= 0 {
			inTransit += m
		} else {
			outstanding += -m
		}
	}
	book := glMinor + interest - charges
	bank := statementMinor + inTransit - outstanding
	return Summary{
		Currency:               currency,
		GLBalance:              amount(currency, glMinor),
		StatementBalance:       amount(currency, statementMinor),
		InterestNotInBook:      amount(currency, interest),
		ChargesNotInBook:       amount(currency, charges),
		DepositsInTransit:      amount(currency, inTransit),
		OutstandingWithdrawals: amount(currency, outstanding),
		AdjustedBookBalance:    amount(currency, book),
		AdjustedBankBalance:    amount(currency, bank),
		Difference:             amount(currency, bank-book),
	}
}

func amount(currency string, minor int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(currency, minor)
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
