package tracking

import (
	"strconv"
	"strings"
)

// FormatUpdates renders events the same way for the console and the bot.
func FormatUpdates(trackingNumber string, events []Event) string {
	var b strings.Builder
	b.WriteString("Updates for ")
	b.WriteString(trackingNumber)
	b.WriteString(":\n")
	for i, e := range events {
		b.WriteString("  ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(e.LocationName)
		b.WriteString(" at ")
		b.WriteString(e.EventTime)
		b.WriteString("\n      ")
		b.WriteString(e.Description)
		b.WriteString("\n")
	}
	return b.String()
}
