package workflow

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

const etherDecimals = 18

// ParseEther converts a decimal ether amount such as "1.5" to wei.
// Amounts must be positive and have at most 18 decimal places.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	whole, fraction, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(fraction) > etherDecimals {
		return nil, fmt.Errorf("Amount '%s' has more than %d decimal places", amount, etherDecimals)
	}
	if strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return nil, fmt.Errorf("Amount '%s' must be a plain positive number", amount)
	}
	digits := whole + fraction + strings.Repeat("0", etherDecimals-len(fraction))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("Amount '%s' is not a number", amount)
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("Amount '%s' must be greater than zero", amount)
	}
	return wei, nil
}

// FormatEther converts wei to a decimal ether string, dropping
// trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	quotient, remainder := new(big.Int).QuoRem(wei, big.NewInt(params.Ether), new(big.Int))
	if remainder.Sign() == 0 {
		return quotient.String()
	}
	fraction := remainder.String()
	fraction = strings.Repeat("0", etherDecimals-len(fraction)) + fraction
	return quotient.String() + "." + strings.TrimRight(fraction, "0")
}

// NormalizeAddress validates a hex address and returns its checksummed
// form.
func NormalizeAddress(label, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%s '%s' is not a valid address", label, address)
	}
	return common.HexToAddress(address).Hex(), nil
}
