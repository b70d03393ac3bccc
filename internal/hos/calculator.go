package hos

import (
	"time"

	"github.com/langhaul/roadlog/internal/models"
)

// 法规时间限制 (FMCSA property-carrying)
const (
	DriveLimitMinutes  = 660 // 11 小时驾驶
	OnDutyLimitMinutes = 840 // 14 小时值勤
	WeeklyLimitHours   = 70  // 8 天 70 小时
	BreakAfterMinutes  = 480 // 8 小时后需休息
	MinBreakMinutes    = 30  // 合格休息时长

	DriveWindow  = 11 * time.Hour
	OnDutyWindow = 14 * time.Hour
	WeeklyWindow = 8 * 24 * time.Hour
	BreakWindow  = 8 * time.Hour
)

// Summary 计时器汇总。所有数据由纯函数从原始日志推导，不持有状态。
type Summary struct {
	RemainingDriveMinutes  float64 `json:"remaining_drive_minutes"`
	RemainingOnDutyMinutes float64 `json:"remaining_on_duty_minutes"`
	WeeklyOnDutyHours      int     `json:"weekly_on_duty_hours"`
	RemainingWeeklyHours   int     `json:"remaining_weekly_hours"`
	BreakRequired          bool    `json:"break_required"`
	CurrentSessionMinutes  float64 `json:"current_session_minutes"`
}

// Calculate 根据当前状态、会话起点和已关闭日志计算剩余时间。
// 日志缺失 duration_minutes 时从起止时间重新推导。
func Calculate(now time.Time, current models.DutyStatus, currentStart time.Time, closed []*models.DutyLog) Summary {
	sessionMinutes := now.Sub(currentStart).Minutes()
	if sessionMinutes < 0 {
		sessionMinutes = 0
	}

	driveUsed := sumDurations(now, closed, DriveWindow, func(l *models.DutyLog) bool {
		return l.Type == models.StatusDriving
	})
	if current == models.StatusDriving {
		driveUsed += sessionMinutes
	}

	onDutyUsed := sumDurations(now, closed, OnDutyWindow, func(l *models.DutyLog) bool {
		return l.Type.OnDutySet()
	})
	if current.OnDutySet() {
		onDutyUsed += sessionMinutes
	}

	weeklyMinutes := sumDurations(now, closed, WeeklyWindow, func(l *models.DutyLog) bool {
		return l.Type.OnDutySet()
	})
	if current.OnDutySet() {
		weeklyMinutes += sessionMinutes
	}
	weeklyHours := int(weeklyMinutes / 60)

	return Summary{
		RemainingDriveMinutes:  clampZero(DriveLimitMinutes - driveUsed),
		RemainingOnDutyMinutes: clampZero(OnDutyLimitMinutes - onDutyUsed),
		WeeklyOnDutyHours:      weeklyHours,
		RemainingWeeklyHours:   clampZeroInt(WeeklyLimitHours - weeklyHours),
		BreakRequired:          breakRequired(now, current, currentStart, closed),
		CurrentSessionMinutes:  sessionMinutes,
	}
}

// breakRequired 当前处于值勤状态、本次值勤时段累计满 8 小时、
// 且近 8 小时窗口内不存在 ≥30 分钟的已关闭休息日志时为 true。
// 值勤时段从当前会话向前回溯连续日志：短于 30 分钟的休息不重置时段，
// 合格休息（≥30 分钟的 off_duty/sleeper_berth）终止回溯。
func breakRequired(now time.Time, current models.DutyStatus, currentStart time.Time, closed []*models.DutyLog) bool {
	if !current.OnDutySet() {
		return false
	}

	if onDutyPeriodMinutes(now, currentStart, closed) < BreakAfterMinutes {
		return false
	}

	cutoff := now.Add(-BreakWindow)
	for _, l := range closed {
		if l.EndTime == nil || !l.Type.RestSet() {
			continue
		}
		if l.EndTime.Before(cutoff) {
			continue
		}
		if l.Duration(now) >= MinBreakMinutes {
			return false
		}
	}
	return true
}

// onDutyPeriodMinutes 当前值勤时段的累计值勤分钟数
func onDutyPeriodMinutes(now time.Time, currentStart time.Time, closed []*models.DutyLog) float64 {
	total := now.Sub(currentStart).Minutes()
	if total < 0 {
		total = 0
	}

	// 回溯与当前会话首尾相接的日志链
	const gapTolerance = time.Minute
	cursor := currentStart
	for {
		var prev *models.DutyLog
		for _, l := range closed {
			if l.EndTime == nil {
				continue
			}
			gap := cursor.Sub(*l.EndTime)
			if gap >= 0 && gap <= gapTolerance {
				prev = l
				break
			}
		}
		if prev == nil {
			return total
		}
		if prev.Type.RestSet() {
			if prev.Duration(now) >= MinBreakMinutes {
				return total // 合格休息重置值勤时段
			}
			// 短休息不重置，也不计入值勤时间
		} else if prev.Type.OnDutySet() {
			total += prev.Duration(now)
		}
		if !prev.StartTime.Before(cursor) {
			return total
		}
		cursor = prev.StartTime
	}
}

// sumDurations 累计窗口内（start ≥ now−window）符合条件日志的分钟数
func sumDurations(now time.Time, logs []*models.DutyLog, window time.Duration, match func(*models.DutyLog) bool) float64 {
	cutoff := now.Add(-window)
	var total float64
	for _, l := range logs {
		if l.StartTime.Before(cutoff) || !match(l) {
			continue
		}
		total += l.Duration(now)
	}
	return total
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampZeroInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
