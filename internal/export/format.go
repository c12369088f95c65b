package export

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// amountFormat groups thousands with a space and drops decimals: 4 677 000.
const amountFormat = "# ###."

func FormatAmount(n int64) string {
	return humanize.FormatInteger(amountFormat, int(n))
}

func FormatSum(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return FormatDecimal(decimal.NewFromFloat(v))
}

func FormatDecimal(d decimal.Decimal) string {
	return humanize.FormatInteger(amountFormat, int(d.RoundBank(0).IntPart()))
}

// FormatRate renders a loss ratio as a two-decimal percentage: 46.77 %.
func FormatRate(r float64) string {
	return fmt.Sprintf("%.2f %%", r*100)
}

func FormatFactor(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
