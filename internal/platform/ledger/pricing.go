package ledger

import "math/big"

// Pricing converts between TON spent and HZN credited. Prices are integer
// micro-USD per whole unit so conversions never touch floats.
type Pricing struct {
	TONPriceMicroUSD   int64
	TokenPriceMicroUSD int64
}

// TokensForTON returns the HZN amount (nano units) purchased with the given
// nanoTON amount: tokens = ton * tonPrice / tokenPrice. Both sides carry
// nine decimals, so the nano scale cancels out.
func (p Pricing) TokensForTON(tonNano *big.Int) *big.Int {
	if tonNano == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(tonNano, big.NewInt(p.TONPriceMicroUSD))
	return out.Quo(out, big.NewInt(p.TokenPriceMicroUSD))
}
