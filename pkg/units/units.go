// Package units converts between human-readable decimal strings and the 18-decimal
// fixed-point integers the marketplace contract stores amounts and prices in.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Decimals is the number of fractional digits of the on-chain representation
const Decimals = 18

// maxExponent bounds the scaled exponent so a uint256 can still hold the result
const maxExponent = 78

var (
	scale      = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// mulContext has enough precision for the exact product of two uint256-sized decimals
	mulContext = apd.BaseContext.WithPrecision(200)
)

// Parse converts a decimal string such as "1.5" into base units (1.5 * 10^18).
// Digits beyond the 18th fractional place are truncated.
func Parse(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty decimal value")
	}

	d, _, err := apd.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", value, err)
	}
	return fromDecimal(d, value)
}

// MustParse is Parse for constants; it panics on malformed input
func MustParse(value string) *big.Int {
	v, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return v
}

// Format converts base units back into the shortest exact decimal string
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}

	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, scale, new(big.Int))

	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	if r.Sign() == 0 {
		return sign + q.String()
	}

	frac := fmt.Sprintf("%0*s", Decimals, r.String())
	frac = strings.TrimRight(frac, "0")
	return sign + q.String() + "." + frac
}

// Mul multiplies two decimal strings exactly and truncates the product to 18 fractional
// digits, returning it in base units
func Mul(a, b string) (*big.Int, error) {
	x, _, err := apd.NewFromString(strings.TrimSpace(a))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", a, err)
	}
	y, _, err := apd.NewFromString(strings.TrimSpace(b))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", b, err)
	}

	var product apd.Decimal
	if _, err := mulContext.Mul(&product, x, y); err != nil {
		return nil, fmt.Errorf("failed to multiply %s by %s: %w", a, b, err)
	}
	return fromDecimal(&product, product.Text('f'))
}

// Round renders a decimal string with exactly places fractional digits, rounding
// half up, e.g. Round("9.60005", 4) == "9.6001"
func Round(value string, places int32) (string, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid decimal %q: %w", value, err)
	}

	ctx := *mulContext
	ctx.Rounding = apd.RoundHalfUp

	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, -places); err != nil {
		return "", fmt.Errorf("failed to round %q: %w", value, err)
	}
	return out.Text('f'), nil
}

// fromDecimal scales d by 10^18 and truncates toward zero
func fromDecimal(d *apd.Decimal, original string) (*big.Int, error) {
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("decimal %q is not a finite number", original)
	}
	if d.IsZero() {
		return new(big.Int), nil
	}
	if d.Negative {
		return nil, fmt.Errorf("decimal %q is negative", original)
	}

	digits := d.Coeff.String()
	coeff, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid coefficient in %q", original)
	}

	exp := int64(d.Exponent) + Decimals
	if exp > maxExponent {
		return nil, fmt.Errorf("decimal %q exceeds uint256", original)
	}

	result := new(big.Int)
	switch {
	case exp >= 0:
		result.Mul(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
	case int64(len(digits)) < -exp:
		// every significant digit lies beyond the 18th fractional place
	default:
		result.Quo(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(-exp), nil))
	}

	if result.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("decimal %q exceeds uint256", original)
	}
	return result, nil
}
