package services

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Messages are sent with HTML parse mode; every piece of catalog text goes
// through these helpers before it is embedded.

func FormatBold(text string) string {
	return fmt.Sprintf("<b>%s</b>", html.EscapeString(text))
}

func FormatItalic(text string) string {
	return fmt.Sprintf("<i>%s</i>", html.EscapeString(text))
}

func Escape(text string) string {
	return html.EscapeString(text)
}

// FormatDuration renders a duration as "1h 30m", dropping zero parts.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		if d <= 0 {
			return "0m"
		}
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

func FormatDateTime(t time.Time) string {
	return t.Format("2 Jan 2006, 15:04")
}

// ProgressBar draws percent as a fixed-width bar followed by the number.
func ProgressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if width <= 0 {
		width = 10
	}
	filled := percent * width / 100
	return fmt.Sprintf("%s%s %d%%", strings.Repeat("▓", filled), strings.Repeat("░", width-filled), percent)
}
