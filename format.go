package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/priceloom/priceloom/internal/pricing"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// moneyPrinter formats monetary amounts with the configured currency
// symbol.
var moneyPrinter = message.NewPrinter(language.English)

// formatMoney renders an amount in the configured display currency.
func formatMoney(amount float64) string {
	code := "EUR"
	if resolvedCfg != nil {
		code = resolvedCfg.Display.Currency
	}

	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}

	return moneyPrinter.Sprintf("%v", currency.Symbol(unit.Amount(amount)))
}

// formatHours renders a minute count as decimal hours.
func formatHours(minutes float64) string {
	return fmt.Sprintf("%.1fh", minutes/60)
}

// formatRating maps a profitability bucket to a short label.
func formatRating(rating int) string {
	switch rating {
	case pricing.RatingOnTarget:
		return "on target"
	case pricing.RatingNearTarget:
		return "near target"
	case pricing.RatingBelowTarget:
		return "below target"
	default:
		return "unprofitable"
	}
}

// formatTimestamp renders a logical timestamp (Unix milliseconds) for
// display; zero means never synced.
func formatTimestamp(millis int64) string {
	if millis == 0 {
		return "never"
	}

	return time.UnixMilli(millis).Format("Jan _2 15:04:05")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
