package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPair renders BTC_ETH style pairs as BTC/ETH.
func DisplayPair(pair string) string {
	return strings.ReplaceAll(pair, "_", "/")
}

// BuyPlaced announces a new limit buy.
func BuyPlaced(exchange, pair string, limit, stake decimal.Decimal, stakeCurrency string) string {
	return fmt.Sprintf("*%s:* Buying %s with limit `%s (%s %s)`",
		strings.ToUpper(exchange), DisplayPair(pair), limit.StringFixed(8), stake.StringFixed(6), stakeCurrency)
}

// SellPlaced announces a limit sell with its expected result.
func SellPlaced(exchange, pair string, limit, profitPct, profit decimal.Decimal, stakeCurrency, reason string) string {
	pct := profitPct.Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("*%s:* Selling %s with limit `%s (%s: %s%%, %s %s)` reason `%s`",
		strings.ToUpper(exchange), DisplayPair(pair), limit.StringFixed(8),
		gain(pct), pct.StringFixed(2), profit.StringFixed(8), stakeCurrency, reason)
}

// SellFilled announces a closed trade.
func SellFilled(pair string, rate, profitPct decimal.Decimal) string {
	pct := profitPct.Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("*Closed:* %s sold at `%s` (%s: %s%%)",
		DisplayPair(pair), rate.StringFixed(8), gain(pct), pct.StringFixed(2))
}

// BuyTimedOut announces an unfilled buy that was cancelled.
func BuyTimedOut(pair string) string {
	return fmt.Sprintf("*Timeout:* Unfilled buy order for %s cancelled", DisplayPair(pair))
}

// BuySettled announces a partially filled buy kept as a position.
func BuySettled(pair string, filled decimal.Decimal) string {
	return fmt.Sprintf("*Timeout:* Remaining buy order for %s settled at filled amount `%s`",
		DisplayPair(pair), filled.String())
}

// SellTimedOut announces an unfilled sell that was cancelled.
func SellTimedOut(pair string) string {
	return fmt.Sprintf("*Timeout:* Unfilled sell order for %s cancelled", DisplayPair(pair))
}

// SellRemainderCancelled announces a partially filled sell whose remainder was cancelled.
func SellRemainderCancelled(pair string, remaining decimal.Decimal) string {
	return fmt.Sprintf("*Timeout:* Remaining sell order for %s cancelled, `%s` still held",
		DisplayPair(pair), remaining.String())
}

// Blacklisted announces a pair excluded after a rejected order.
func Blacklisted(pair string, cause error) string {
	return fmt.Sprintf("Blacklisting %s pair due to %v", DisplayPair(pair), cause)
}

// StateChanged announces a run state transition.
func StateChanged(state string) string {
	return fmt.Sprintf("*Status:* `%s`", strings.ToLower(state))
}

// OperationalFault announces that trading was stopped.
func OperationalFault(cause error) string {
	return fmt.Sprintf("*Status:* Got operational fault:\n```\n%v\n```Issue `/start` if you think it is safe to restart.", cause)
}

// Stopping announces process shutdown.
func Stopping() string {
	return "*Status:* `Stopping trader...`"
}

// Fatal announces an unrecoverable error before exit.
func Fatal(cause error) string {
	return fmt.Sprintf("*Status:* Fatal error, shutting down:\n```\n%v\n```", cause)
}

func gain(pct decimal.Decimal) string {
	if pct.IsPositive() {
		return "profit"
	}
	return "loss"
}
