package notify

import (
	"fmt"
	"strings"
	"time"
)

// SnapshotEvent carries the headline metrics announced after a new
// chain snapshot becomes active.
type SnapshotEvent struct {
	Spot         float64
	AsOf         time.Time
	Contracts    int
	Expiration   string
	NetGEX       float64
	SwitchPoint  *float64
	MaxPain      *float64
	ExpectedMove *float64
}

// FormatSnapshotMessage creates the notification body for a loaded
// snapshot.
func FormatSnapshotMessage(ev SnapshotEvent) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Spot: %.2f (as of %s)\n", ev.Spot, ev.AsOf.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Contracts: %d\n", ev.Contracts))
	sb.WriteString(fmt.Sprintf("Expiration: %s\n", ev.Expiration))
	sb.WriteString(fmt.Sprintf("Net GEX: %.0f\n", ev.NetGEX))
	sb.WriteString(fmt.Sprintf("Gamma switch: %s\n", formatLevel(ev.SwitchPoint)))
	sb.WriteString(fmt.Sprintf("Max pain: %s\n", formatLevel(ev.MaxPain)))
	sb.WriteString(fmt.Sprintf("Expected move: %s", formatMove(ev.ExpectedMove)))

	return sb.String()
}

func formatLevel(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatMove(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("±%.2f", *v)
}
