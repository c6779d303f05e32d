package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
)

// tehran is the display timezone for all rendered timestamps.
var tehran = time.FixedZone("Asia/Tehran", int((3*time.Hour + 30*time.Minute).Seconds()))

const timeLayout = "2006/01/02 - 15:04"

func (e *Engine) renderCreated(ev *domain.Event) string {
	adminName, adminID := actorInfo(ev.By)

	return fmt.Sprintf(`🧾 <b>Accounting | user_created</b>

👤 <b>User:</b> <code>%s</code> (id: %d)
👮 <b>Admin:</b> %s (tg_id: %s)

<b>Details:</b>
⚡ Status: %s
📊 Data Limit: %s
📅 Expire: %s
🕐 Created: %s`,
		ev.Username,
		ev.User.ID,
		adminName,
		adminID,
		e.statusLabel(ev.User.Status),
		formatBytes(ev.User.DataLimit),
		e.formatExpire(ev.User.Expire),
		formatUnix(ev.SendAt),
	)
}

func (e *Engine) renderUpdated(ev *domain.Event, old *domain.Snapshot, reason string) string {
	adminName, adminID := actorInfo(ev.By)

	msg := fmt.Sprintf(`🧾 <b>Accounting | user_updated</b>

👤 <b>User:</b> <code>%s</code> (id: %d)
👮 <b>Admin:</b> %s (tg_id: %s)

<b>Details:</b>
⚡ Status: %s
📅 Expire: %s
🕐 Updated: %s`,
		ev.Username,
		ev.User.ID,
		adminName,
		adminID,
		e.statusLabel(ev.User.Status),
		e.formatExpire(ev.User.Expire),
		formatUnix(ev.SendAt),
	)

	switch {
	case strings.HasPrefix(reason, "expire_extended"):
		msg += fmt.Sprintf(`

🔄 <b>Expiry Change:</b>
📅 Before: %s
📅 After: %s
⬆️ Extended: +%s days`,
			e.formatExpire(old.Expire),
			e.formatExpire(ev.User.Expire),
			extensionDays(reason),
		)
	case reason == ReasonHold:
		msg += fmt.Sprintf(`

🔄 <b>Status Change:</b>
⚡ Before: %s
⚡ After: %s`,
			e.statusLabel(old.Status),
			e.statusLabel(ev.User.Status),
		)
	}

	return msg
}

func (e *Engine) statusLabel(status domain.UserStatus) string {
	switch status {
	case domain.StatusActive, domain.StatusDisabled, domain.StatusLimited, domain.StatusExpired, domain.StatusOnHold:
		return e.tr.T("status." + string(status))
	default:
		return fmt.Sprintf("❓ %s", status)
	}
}

func (e *Engine) formatExpire(value string) string {
	if value == "" {
		return "Unlimited"
	}

	t, ok := parseExpire(value)
	if !ok {
		return value
	}

	return t.In(tehran).Format(timeLayout)
}

func formatUnix(sendAt int64) string {
	return time.Unix(sendAt, 0).In(tehran).Format(timeLayout)
}

func actorInfo(by *domain.EventBy) (name, telegramID string) {
	name, telegramID = "Unknown", "Unknown"
	if by == nil {
		return name, telegramID
	}

	if by.Username != "" {
		name = by.Username
	}
	if by.TelegramID != nil {
		telegramID = fmt.Sprintf("%d", *by.TelegramID)
	}

	return name, telegramID
}

// extensionDays pulls the day count back out of an expire_extended_N_days reason.
func extensionDays(reason string) string {
	parts := strings.Split(reason, "_")
	if len(parts) != 4 {
		return "?"
	}
	return parts[2]
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "Unlimited"
	}

	value := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}

	return fmt.Sprintf("%.1f PB", value)
}
