package blog

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDate 输出 "January 2, 2006" 形式的日期。
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// FormatRelative 输出相对时间，例如 "3 days ago"。
func FormatRelative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
