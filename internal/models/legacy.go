package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// 历史版本的职责日志在本地存储中有两种形态：
// v1 为旧采集端的松散结构（unix 秒时间戳、status 字段名），
// v2 为当前 DutyLog 结构。加载时统一归一化一次，后续代码只处理 DutyLog。

type versionEnvelope struct {
	SchemaVersion int `json:"schema_version"`
}

type legacyDutyLogV1 struct {
	Status      string   `json:"status"`
	StartTS     int64    `json:"start_ts"`
	EndTS       *int64   `json:"end_ts,omitempty"`
	DurationMin *float64 `json:"duration,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Odometer    *float64 `json:"odometer,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// NormalizeDutyLog 将任意版本的日志记录归一化为 DutyLog。
// 无 schema_version 字段的记录按 v1 处理。
func NormalizeDutyLog(raw []byte) (*DutyLog, error) {
	var env versionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode log envelope: %w", err)
	}

	switch env.SchemaVersion {
	case 0, 1:
		var v1 legacyDutyLogV1
		if err := json.Unmarshal(raw, &v1); err != nil {
			return nil, fmt.Errorf("decode v1 log: %w", err)
		}
		return v1.normalize()
	case 2:
		var log DutyLog
		if err := json.Unmarshal(raw, &log); err != nil {
			return nil, fmt.Errorf("decode v2 log: %w", err)
		}
		if !log.Type.Valid() {
			return nil, fmt.Errorf("v2 log has unknown duty status %q", log.Type)
		}
		return &log, nil
	default:
		return nil, fmt.Errorf("unsupported log schema version %d", env.SchemaVersion)
	}
}

func (v1 *legacyDutyLogV1) normalize() (*DutyLog, error) {
	status := DutyStatus(v1.Status)
	// 旧端使用过的别名
	switch v1.Status {
	case "on-duty", "onduty":
		status = StatusOnDuty
	case "off-duty", "offduty":
		status = StatusOffDuty
	case "sleeper":
		status = StatusSleeperBerth
	}
	if !status.Valid() {
		return nil, fmt.Errorf("v1 log has unknown duty status %q", v1.Status)
	}
	if v1.StartTS <= 0 {
		return nil, fmt.Errorf("v1 log missing start timestamp")
	}

	start := time.Unix(v1.StartTS, 0).UTC()
	log := &DutyLog{
		Type:            status,
		Date:            start.Format("2006-01-02"),
		StartTime:       start,
		DurationMinutes: v1.DurationMin,
		OdometerStart:   v1.Odometer,
		Notes:           v1.Note,
	}
	if v1.EndTS != nil {
		end := time.Unix(*v1.EndTS, 0).UTC()
		log.EndTime = &end
	}
	if v1.Lat != nil && v1.Lng != nil {
		log.StartLocation = &Location{Latitude: *v1.Lat, Longitude: *v1.Lng}
	}
	return log, nil
}
