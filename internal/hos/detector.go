package hos

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/langhaul/roadlog/internal/models"
)

// 遥测阈值
const (
	// mph/s 到 g 的换算系数 (1 g ≈ 21.936 mph/s)
	GForcePerMphSecond = 21.936

	HardBrakeG = -0.7
	HardAccelG = 0.5

	DefaultMaxSpeedMph = 75
)

// Detect 对一次计算结果做违规评估。每个周期输出完整的当前违规集合，
// 不与此前已入队的同类事件去重。
func Detect(now time.Time, deviceID string, current models.DutyStatus, summary Summary) []models.ViolationEvent {
	var events []models.ViolationEvent

	if current == models.StatusDriving && summary.RemainingDriveMinutes <= 0 {
		events = append(events, models.ViolationEvent{
			ID:          uuid.NewString(),
			DeviceID:    deviceID,
			Type:        models.ViolationDriveTime,
			Severity:    models.SeverityCritical,
			Title:       "Drive time limit reached",
			Description: "11-hour driving limit reached within the current window",
			Timestamp:   now,
		})
	}

	if summary.RemainingOnDutyMinutes <= 0 {
		events = append(events, models.ViolationEvent{
			ID:          uuid.NewString(),
			DeviceID:    deviceID,
			Type:        models.ViolationOnDuty,
			Severity:    models.SeverityCritical,
			Title:       "On-duty limit reached",
			Description: "14-hour on-duty limit reached within the current window",
			Timestamp:   now,
		})
	}

	if summary.BreakRequired {
		events = append(events, models.ViolationEvent{
			ID:          uuid.NewString(),
			DeviceID:    deviceID,
			Type:        models.ViolationBreakRequired,
			Severity:    models.SeverityWarning,
			Title:       "30-minute break required",
			Description: "8 cumulative on-duty hours without a qualifying 30-minute break",
			Timestamp:   now,
		})
	}

	return events
}

// DetectTelemetry 对相邻位置采样做瞬时违规评估：
// 超速、急刹车 (≤ −0.7 g)、急加速 (≥ +0.5 g)。
func DetectTelemetry(deviceID string, prev, cur *models.LocationSample, maxSpeedMph float64) []models.ViolationEvent {
	if cur == nil {
		return nil
	}
	if maxSpeedMph <= 0 {
		maxSpeedMph = DefaultMaxSpeedMph
	}

	var events []models.ViolationEvent

	if cur.SpeedMph != nil && *cur.SpeedMph > maxSpeedMph {
		events = append(events, models.ViolationEvent{
			ID:          uuid.NewString(),
			DeviceID:    deviceID,
			Type:        models.ViolationSpeeding,
			Severity:    models.SeverityWarning,
			Title:       "Speeding",
			Description: fmt.Sprintf("Speed %.1f mph exceeds limit %.0f mph", *cur.SpeedMph, maxSpeedMph),
			Timestamp:   cur.Timestamp,
			Metadata:    map[string]float64{"speed_mph": *cur.SpeedMph, "limit_mph": maxSpeedMph},
		})
	}

	if g, ok := gForce(prev, cur); ok {
		switch {
		case g <= HardBrakeG:
			events = append(events, models.ViolationEvent{
				ID:          uuid.NewString(),
				DeviceID:    deviceID,
				Type:        models.ViolationHardBrake,
				Severity:    models.SeverityWarning,
				Title:       "Hard braking",
				Description: fmt.Sprintf("Deceleration of %.2f g detected", g),
				Timestamp:   cur.Timestamp,
				Metadata:    map[string]float64{"g_force": g},
			})
		case g >= HardAccelG:
			events = append(events, models.ViolationEvent{
				ID:          uuid.NewString(),
				DeviceID:    deviceID,
				Type:        models.ViolationHardAccel,
				Severity:    models.SeverityInfo,
				Title:       "Hard acceleration",
				Description: fmt.Sprintf("Acceleration of %.2f g detected", g),
				Timestamp:   cur.Timestamp,
				Metadata:    map[string]float64{"g_force": g},
			})
		}
	}

	return events
}

// gForce 由相邻采样的速度差推算纵向 g 值
func gForce(prev, cur *models.LocationSample) (float64, bool) {
	if prev == nil || prev.SpeedMph == nil || cur.SpeedMph == nil {
		return 0, false
	}
	dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	dv := *cur.SpeedMph - *prev.SpeedMph
	return dv / dt / GForcePerMphSecond, true
}
