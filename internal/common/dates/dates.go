package dates

import "time"

// DateOf 将时间截断为 UTC 日历日（零点）。
// 里程估算与过期判断都以“整天”为粒度，与时分秒无关。
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween 返回 from 到 to 之间相隔的整天数（等价于 MySQL 的 DATEDIFF(to, from)）。
// to 早于 from 时返回负数。
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)) / (24 * time.Hour))
}
