package utils

import (
	"fmt"
	"strings"
)

// FormatCurrencyPHP formats an amount as Philippine pesos.
// Example: 1549.5 -> "PHP 1,549.50"
func FormatCurrencyPHP(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	formatted := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	out := "PHP " + strings.Join(groups, ",") + "." + decimalPart
	if negative {
		return "-" + out
	}
	return out
}
