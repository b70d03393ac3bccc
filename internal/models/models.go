package models

import "time"

// DutyStatus 驾驶员职责状态
type DutyStatus string

const (
	StatusDriving            DutyStatus = "driving"
	StatusOnDuty             DutyStatus = "on_duty"
	StatusOffDuty            DutyStatus = "off_duty"
	StatusSleeperBerth       DutyStatus = "sleeper_berth"
	StatusPersonalConveyance DutyStatus = "personal_conveyance"
	StatusYardMoves          DutyStatus = "yard_moves"
)

// Valid 检查是否为合法状态
func (s DutyStatus) Valid() bool {
	switch s {
	case StatusDriving, StatusOnDuty, StatusOffDuty,
		StatusSleeperBerth, StatusPersonalConveyance, StatusYardMoves:
		return true
	}
	return false
}

// OnDutySet 是否计入 on-duty 时间窗 (driving + on_duty)
func (s DutyStatus) OnDutySet() bool {
	return s == StatusDriving || s == StatusOnDuty
}

// RestSet 是否为休息状态 (off_duty + sleeper_berth)
func (s DutyStatus) RestSet() bool {
	return s == StatusOffDuty || s == StatusSleeperBerth
}

// DutyLog 职责日志记录
type DutyLog struct {
	ID              string     `json:"id" db:"id"`
	DeviceID        string     `json:"device_id" db:"device_id"`
	Date            string     `json:"date" db:"date"` // YYYY-MM-DD
	Type            DutyStatus `json:"type" db:"type"`
	StartTime       time.Time  `json:"start_time" db:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty" db:"end_time"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty" db:"duration_minutes"`
	StartLocation   *Location  `json:"start_location,omitempty" db:"start_location"`
	EndLocation     *Location  `json:"end_location,omitempty" db:"end_location"`
	OdometerStart   *float64   `json:"odometer_start,omitempty" db:"odometer_start"`
	OdometerEnd     *float64   `json:"odometer_end,omitempty" db:"odometer_end"`
	Notes           string     `json:"notes,omitempty" db:"notes"`
	Certified       bool       `json:"certified" db:"certified"`
}

// Open 是否为进行中的日志
func (l *DutyLog) Open() bool {
	return l.EndTime == nil
}

// Duration 日志时长（分钟）。duration_minutes 缺失时从起止时间重新计算，
// 容忍部分写入的记录。进行中的日志以 now 为结束点。
func (l *DutyLog) Duration(now time.Time) float64 {
	if l.DurationMinutes != nil {
		return *l.DurationMinutes
	}
	end := now
	if l.EndTime != nil {
		end = *l.EndTime
	}
	if end.Before(l.StartTime) {
		return 0
	}
	return end.Sub(l.StartTime).Minutes()
}

// Location 经纬度坐标
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// InRange 坐标是否在合法范围内
func (loc Location) InRange() bool {
	return loc.Latitude >= -90 && loc.Latitude <= 90 &&
		loc.Longitude >= -180 && loc.Longitude <= 180
}

// ViolationSeverity 违规严重级别
type ViolationSeverity string

const (
	SeverityInfo     ViolationSeverity = "info"
	SeverityWarning  ViolationSeverity = "warning"
	SeverityCritical ViolationSeverity = "critical"
)

// 违规类型常量
const (
	ViolationDriveTime     = "drive_time_violation"
	ViolationOnDuty        = "on_duty_violation"
	ViolationBreakRequired = "break_required"
	ViolationSpeeding      = "speeding"
	ViolationHardBrake     = "hard_brake"
	ViolationHardAccel     = "hard_accel"
)

// ViolationEvent 违规事件。每个评估周期重新计算，不做持久化去重。
type ViolationEvent struct {
	ID          string             `json:"id"`
	DeviceID    string             `json:"device_id"`
	Type        string             `json:"type"`
	Severity    ViolationSeverity  `json:"severity"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Timestamp   time.Time          `json:"timestamp"`
	Metadata    map[string]float64 `json:"metadata,omitempty"`
}

// LocationSample 位置采样
type LocationSample struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedMph  *float64  `json:"speed_mph,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // 米
}

// InspectionType 车检类型
type InspectionType string

const (
	InspectionPreTrip  InspectionType = "pre_trip"
	InspectionPostTrip InspectionType = "post_trip"
)

// InspectionReport 车辆检查报告 (DVIR)
type InspectionReport struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	InspectionType InspectionType `json:"inspection_type"`
	Defects        []string       `json:"defects"`
	SafeToOperate  bool           `json:"safe_to_operate"`
	Odometer       *float64       `json:"odometer,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QueueKind 离线队列类型
type QueueKind string

const (
	QueueLocations QueueKind = "locations"
	QueueLogs      QueueKind = "logs"
	QueueEvents    QueueKind = "events"
	QueueDvirs     QueueKind = "dvirs"
)

// AllQueueKinds 固定的队列遍历顺序
var AllQueueKinds = []QueueKind{QueueLocations, QueueLogs, QueueEvents, QueueDvirs}

// QueueItem 队列条目。payload 为各类型记录的 JSON 编码。
type QueueItem struct {
	ID         string    `json:"id" db:"id"`
	Kind       QueueKind `json:"kind" db:"kind"`
	Payload    []byte    `json:"payload" db:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at" db:"enqueued_at"`
}

// SyncResult 一次同步周期的结果。失败以数据形式返回，从不抛给调用方。
type SyncResult struct {
	LocationsSynced int      `json:"locations_synced"`
	LogsSynced      int      `json:"logs_synced"`
	EventsSynced    int      `json:"events_synced"`
	DvirsSynced     int      `json:"dvirs_synced"`
	Errors          []string `json:"errors"`
}

// Total 本周期同步的记录总数
func (r *SyncResult) Total() int {
	return r.LocationsSynced + r.LogsSynced + r.EventsSynced + r.DvirsSynced
}
