package hos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langhaul/roadlog/internal/models"
)

func eventTypes(events []models.ViolationEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestDetectDriveTimeViolation(t *testing.T) {
	summary := Summary{RemainingDriveMinutes: 0, RemainingOnDutyMinutes: 120}

	events := Detect(baseTime, "dev-1", models.StatusDriving, summary)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationDriveTime, events[0].Type)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
	assert.Equal(t, "dev-1", events[0].DeviceID)
	assert.NotEmpty(t, events[0].ID)
}

func TestDetectDriveTimeOnlyWhileDriving(t *testing.T) {
	summary := Summary{RemainingDriveMinutes: 0, RemainingOnDutyMinutes: 120}

	events := Detect(baseTime, "dev-1", models.StatusOnDuty, summary)
	assert.NotContains(t, eventTypes(events), models.ViolationDriveTime)
}

func TestDetectOnDutyViolation(t *testing.T) {
	summary := Summary{RemainingDriveMinutes: 60, RemainingOnDutyMinutes: 0}

	events := Detect(baseTime, "dev-1", models.StatusOnDuty, summary)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationOnDuty, events[0].Type)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
}

func TestDetectBreakRequired(t *testing.T) {
	summary := Summary{RemainingDriveMinutes: 100, RemainingOnDutyMinutes: 100, BreakRequired: true}

	events := Detect(baseTime, "dev-1", models.StatusDriving, summary)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationBreakRequired, events[0].Type)
	assert.Equal(t, models.SeverityWarning, events[0].Severity)
}

func TestDetectFullSetEachCycle(t *testing.T) {
	// 每个周期重复输出完整集合，不做去重
	summary := Summary{RemainingDriveMinutes: 0, RemainingOnDutyMinutes: 0, BreakRequired: true}

	first := Detect(baseTime, "dev-1", models.StatusDriving, summary)
	second := Detect(baseTime.Add(time.Minute), "dev-1", models.StatusDriving, summary)

	assert.Len(t, first, 3)
	assert.Len(t, second, 3)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func sample(at time.Time, speedMph float64) *models.LocationSample {
	return &models.LocationSample{
		Timestamp: at,
		Latitude:  41.8,
		Longitude: -87.6,
		SpeedMph:  &speedMph,
	}
}

func TestDetectSpeeding(t *testing.T) {
	cur := sample(baseTime, 80)

	events := DetectTelemetry("dev-1", nil, cur, 75)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationSpeeding, events[0].Type)
	assert.Equal(t, models.SeverityWarning, events[0].Severity)
	assert.Equal(t, 80.0, events[0].Metadata["speed_mph"])
}

func TestDetectNoSpeedingAtLimit(t *testing.T) {
	cur := sample(baseTime, 75)
	assert.Empty(t, DetectTelemetry("dev-1", nil, cur, 75))
}

func TestDetectHardBrake(t *testing.T) {
	// 2 秒内 60 → 25 mph：-17.5 mph/s ≈ -0.80 g
	prev := sample(baseTime, 60)
	cur := sample(baseTime.Add(2*time.Second), 25)

	events := DetectTelemetry("dev-1", prev, cur, 75)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationHardBrake, events[0].Type)
	assert.InDelta(t, -0.797, events[0].Metadata["g_force"], 0.01)
}

func TestDetectHardAccel(t *testing.T) {
	// 2 秒内 10 → 35 mph：+12.5 mph/s ≈ +0.57 g
	prev := sample(baseTime, 10)
	cur := sample(baseTime.Add(2*time.Second), 35)

	events := DetectTelemetry("dev-1", prev, cur, 75)

	require.Len(t, events, 1)
	assert.Equal(t, models.ViolationHardAccel, events[0].Type)
	assert.Equal(t, models.SeverityInfo, events[0].Severity)
}

func TestDetectGentleDecelerationIgnored(t *testing.T) {
	prev := sample(baseTime, 60)
	cur := sample(baseTime.Add(10*time.Second), 40)

	assert.Empty(t, DetectTelemetry("dev-1", prev, cur, 75))
}

func TestDetectTelemetryMissingData(t *testing.T) {
	cur := &models.LocationSample{Timestamp: baseTime, Latitude: 41.8, Longitude: -87.6}

	// 无速度数据不评估
	assert.Empty(t, DetectTelemetry("dev-1", nil, cur, 75))

	// 时间戳相同不评估 g 值
	prev := sample(baseTime, 60)
	same := sample(baseTime, 10)
	assert.Empty(t, DetectTelemetry("dev-1", prev, same, 75))
}
