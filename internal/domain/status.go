package domain

import "strings"

// Color is the net flow zone classification.
type Color string

const (
	ColorRed     Color = "red"
	ColorYellow  Color = "yellow"
	ColorGreen   Color = "green"
	ColorBlue    Color = "blue"
	ColorUnknown Color = "unknown"
)

// AlertType is the severity of an alert.
type AlertType string

const (
	AlertCritical AlertType = "critical"
	AlertWarning  AlertType = "warning"
)

var colorAlertTypes = map[Color]AlertType{
	ColorRed:    AlertCritical,
	ColorYellow: AlertWarning,
}

// AlertTypeFor returns the alert type raised for a color, if any.
func AlertTypeFor(c Color) (AlertType, bool) {
	t, ok := colorAlertTypes[c]

	return t, ok
}

// ParseColor returns the color for a label (case-insensitive).
func ParseColor(label string) (Color, bool) {
	switch c := Color(strings.ToLower(strings.TrimSpace(label))); c {
	case ColorRed, ColorYellow, ColorGreen, ColorBlue, ColorUnknown:
		return c, true
	}

	return "", false
}

// Analysis statuses shared by the analytical components.
const (
	StatusSuccess          = "success"
	StatusInsufficientData = "insufficient_data"
	StatusNoFit            = "no_fit"
	StatusSkipped          = "skipped"
	StatusFailed           = "failed"
)
