package deploy

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// GasReport summarizes what a deployment cost
type GasReport struct {
	GasUsed  uint64
	GasPrice *big.Int // effective price, wei
	Cost     *big.Int // wei
}

// NewGasReport builds a report from the mined receipt, falling back to the
// transaction's gas price when the node does not report an effective one
func NewGasReport(receipt *types.Receipt, tx *types.Transaction) GasReport {
	price := receipt.EffectiveGasPrice
	if price == nil || price.Sign() == 0 {
		price = tx.GasPrice()
	}
	if price == nil {
		price = new(big.Int)
	}
	cost := new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed))
	return GasReport{GasUsed: receipt.GasUsed, GasPrice: price, Cost: cost}
}

// Write prints the report. Currency conversion needs a price feed and is
// not done; the configured currency is shown as unavailable.
func (r GasReport) Write(w io.Writer, contract, currency string) {
	fmt.Fprintf(w, "Gas report for %s:\n", contract)
	fmt.Fprintf(w, "  Gas used:  %d\n", r.GasUsed)
	fmt.Fprintf(w, "  Gas price: %s gwei\n", formatUnits(r.GasPrice, params.GWei, 3))
	fmt.Fprintf(w, "  Cost:      %s (native units)\n", formatUnits(r.Cost, params.Ether, 9))
	if currency != "" {
		fmt.Fprintf(w, "  %s:       n/a\n", currency)
	}
}

// formatUnits divides v by unit and prints it with up to prec decimals
func formatUnits(v *big.Int, unit float64, prec int) string {
	if v == nil {
		return "0"
	}
	f := new(big.Float).SetInt(v)
	f.Quo(f, big.NewFloat(unit))
	return f.Text('f', prec)
}
