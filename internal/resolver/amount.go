package resolver

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/resolverd/internal/tokenregistry"
	"github.com/meridian-labs/resolverd/pkg/helpers"
)

// toSmallestUnits converts a decimal amount string to the token's smallest
// unit representation, looking up decimals from the registry.
func toSmallestUnits(registry *tokenregistry.Registry, chain, symbol, amount string) (*big.Int, tokenregistry.Token, error) {
	token, ok := registry.Token(chain, symbol)
	if !ok {
		return nil, tokenregistry.Token{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, chain, symbol)
	}
	units, err := helpers.ParseAmount(amount, token.Decimals)
	if err != nil {
		return nil, tokenregistry.Token{}, fmt.Errorf("resolver: parse amount %q: %w", amount, err)
	}
	return new(big.Int).SetUint64(units), token, nil
}

// withinTolerance reports whether actual is within epsilon (a fraction,
// e.g. 0.001 for 0.1%) of expected, permitting fee-on-transfer rounding.
func withinTolerance(actual, expected *big.Int, epsilon float64) bool {
	if expected.Sign() == 0 {
		return actual.Sign() == 0
	}
	diff := new(big.Int).Sub(actual, expected)
	diff.Abs(diff)

	// diff/expected <= epsilon  <=>  diff*1e9 <= expected*epsilon*1e9
	scaled := new(big.Int).Mul(diff, big.NewInt(1_000_000_000))
	boundFloat := new(big.Float).Mul(new(big.Float).SetInt(expected), big.NewFloat(epsilon*1_000_000_000))
	bound, _ := boundFloat.Int(nil)
	return scaled.Cmp(bound) <= 0
}

// amountTolerance is the epsilon allowed between a requested amount and
// the value actually observed locked on chain, per §8 (fee-on-transfer
// rounding).
const amountTolerance = 0.001

// bigToFloat converts smallest-unit amounts to float64 for ratio math in
// validatePricing. Precision loss at very large values is acceptable here:
// this feeds only a coarse acceptance-band check, not settlement.
func bigToFloat(v *big.Int) float64 {
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}

// parseAddress converts a hex address string to common.Address. It never
// fails: common.HexToAddress maps a malformed string to whatever address
// its hex bytes decode to, and draft validation at swap creation only
// checks that the addresses are non-empty.
func parseAddress(hexAddr string) common.Address {
	return common.HexToAddress(hexAddr)
}
