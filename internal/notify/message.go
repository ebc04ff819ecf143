package notify

import (
	"fmt"
	"strings"
	"time"

	"SRTrack/internal/attendance"
)

// Compose renders the commander-facing text for a trainee event. zone is the
// short label printed after times, e.g. "SGT".
func Compose(kind attendance.NotificationKind, trainee attendance.Trainee, at time.Time, loc *time.Location, zone string, cutoffHour int) string {
	var b strings.Builder

	switch kind {
	case attendance.KindClockIn:
		b.WriteString("🟢 Clock In\n\n")
	case attendance.KindClockOut:
		b.WriteString("🔴 Clock Out\n\n")
	case attendance.KindOverdue:
		b.WriteString("⚠️ OVERDUE: Trainee has not clocked out\n\n")
	}

	fmt.Fprintf(&b, "Rank: %s\n", trainee.Rank)
	fmt.Fprintf(&b, "Name: %s\n", trainee.FullName)
	fmt.Fprintf(&b, "Number: %s\n", trainee.IdentificationNumber)
	fmt.Fprintf(&b, "Company: %s\n", trainee.Company)

	if kind == attendance.KindOverdue {
		fmt.Fprintf(&b, "Cutoff time: %02d:00 %s", cutoffHour, zone)
	} else {
		fmt.Fprintf(&b, "Time: %s %s", at.In(loc).Format("15:04:05"), zone)
	}
	return b.String()
}
