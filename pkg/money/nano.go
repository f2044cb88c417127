package money

import (
	"fmt"
	"math/big"
	"strings"
)

// NanoDecimals is the number of decimal places in the chain's base unit:
// 1 TON = 10^9 nanoTON. HZN jetton amounts use the same precision.
const NanoDecimals = 9

// ToNano converts a human-readable decimal amount ("1.5") to nano base
// units (1500000000). Amounts with more than NanoDecimals fractional
// digits are rejected rather than rounded. String manipulation is used
// throughout so values never pass through a float.
func ToNano(amountStr string) (*big.Int, error) {
	if amountStr == "" {
		return nil, fmt.Errorf("amount is required")
	}

	neg := false
	if strings.HasPrefix(amountStr, "-") {
		neg = true
		amountStr = amountStr[1:]
	}

	parts := strings.SplitN(amountStr, ".", 2)

	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}

	decPart := ""
	if len(parts) > 1 {
		decPart = parts[1]
	}

	if len(decPart) > NanoDecimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", amountStr, NanoDecimals)
	}
	decPart = decPart + strings.Repeat("0", NanoDecimals-len(decPart))

	combined := strings.TrimLeft(intPart+decPart, "0")
	if combined == "" {
		combined = "0"
	}

	result := new(big.Int)
	if _, ok := result.SetString(combined, 10); !ok {
		return nil, fmt.Errorf("invalid amount format: %q", amountStr)
	}
	if neg {
		result.Neg(result)
	}

	return result, nil
}

// FromNano converts nano base units back to a human-readable decimal
// string: 1500000000 -> "1.5".
func FromNano(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	neg := amount.Sign() < 0
	str := new(big.Int).Abs(amount).String()

	for len(str) <= NanoDecimals {
		str = "0" + str
	}

	pos := len(str) - NanoDecimals
	result := str[:pos] + "." + str[pos:]

	result = strings.TrimRight(result, "0")
	result = strings.TrimRight(result, ".")
	if result == "" {
		result = "0"
	}
	if neg {
		result = "-" + result
	}

	return result
}
