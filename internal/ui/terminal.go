// Package ui renders agent results for a terminal.
package ui

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/tathienbao/amm-limit-agent/internal/order"
)

// ANSI escape codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or 80 when it is not a terminal.
func TerminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// StatusColor returns the color used for a status.
func StatusColor(s order.Status) string {
	switch s {
	case order.StatusFilled:
		return ColorGreen
	case order.StatusPartiallyFilled:
		return ColorCyan
	case order.StatusCanceled, order.StatusExpired:
		return ColorYellow
	case order.StatusFailed:
		return ColorRed
	default:
		return ColorDim
	}
}

// WriteOutcomes writes one row per order. With color, each row takes the
// color of its status.
func WriteOutcomes(w io.Writer, outcomes []order.Snapshot, color bool) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIF\tSTATUS\tFILLED\tRECEIVED\tFILL%\tCHECKS\tSETTLEMENT\tREASON")
	for _, s := range outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
			s.ID, s.TIF, s.Status, s.Filled, s.Received, s.FillPct.StringFixed(2),
			s.PriceChecks, dash(s.Settlement), dash(s.Reason))
	}
	_ = tw.Flush()

	if !color {
		_, _ = w.Write(buf.Bytes())
		return
	}

	// Colors are applied after alignment so escape codes do not count
	// toward column widths.
	sc := bufio.NewScanner(&buf)
	for i := -1; sc.Scan(); i++ {
		if i < 0 {
			fmt.Fprintln(w, ColorBold+sc.Text()+ColorReset)
			continue
		}
		fmt.Fprintln(w, StatusColor(outcomes[i].Status)+sc.Text()+ColorReset)
	}
}

// Sparkline draws values as one row of block characters, keeping the most
// recent width values.
func Sparkline(values []decimal.Decimal, width int) string {
	if width < 1 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo := decimal.Min(values[0], values[1:]...)
	hi := decimal.Max(values[0], values[1:]...)
	span := hi.Sub(lo)

	var sb strings.Builder
	for _, v := range values {
		sb.WriteRune(sparkLevels[level(v, lo, span, len(sparkLevels))])
	}
	return sb.String()
}

// level maps v within [lo, lo+span] to 0..n-1. A flat series sits mid-way.
func level(v, lo, span decimal.Decimal, n int) int {
	if span.IsZero() {
		return n / 2
	}
	normalized := v.Sub(lo).Div(span)
	l := int(normalized.Mul(decimal.NewFromInt(int64(n - 1))).Round(0).IntPart())
	return max(0, min(n-1, l))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
