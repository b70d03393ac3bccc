package sync

import (
	"encoding/json"
	"fmt"

	"github.com/langhaul/roadlog/internal/models"
)

// validateItem 传输前的结构校验。合规记录必须字段齐全、时间戳合法，
// 避免向后端发送无法核验的数据。
func validateItem(item *models.QueueItem) error {
	switch item.Kind {
	case models.QueueLogs:
		return validateLog(item)
	case models.QueueEvents:
		return validateEvent(item)
	case models.QueueDvirs:
		return validateDvir(item)
	default:
		return nil
	}
}

func validateLog(item *models.QueueItem) error {
	var log models.DutyLog
	if err := json.Unmarshal(item.Payload, &log); err != nil {
		return integrityErr(item, fmt.Sprintf("malformed payload: %v", err))
	}
	if !log.Type.Valid() {
		return integrityErr(item, fmt.Sprintf("unknown duty status %q", log.Type))
	}
	if log.StartTime.IsZero() {
		return integrityErr(item, "missing start time")
	}
	if log.EndTime == nil {
		return integrityErr(item, "queued log is not closed")
	}
	if log.EndTime.Before(log.StartTime) {
		return integrityErr(item, "end time precedes start time")
	}
	return nil
}

func validateEvent(item *models.QueueItem) error {
	var event models.ViolationEvent
	if err := json.Unmarshal(item.Payload, &event); err != nil {
		return integrityErr(item, fmt.Sprintf("malformed payload: %v", err))
	}
	if event.Type == "" {
		return integrityErr(item, "missing violation type")
	}
	switch event.Severity {
	case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
	default:
		return integrityErr(item, fmt.Sprintf("unknown severity %q", event.Severity))
	}
	if event.Timestamp.IsZero() {
		return integrityErr(item, "missing timestamp")
	}
	return nil
}

func validateDvir(item *models.QueueItem) error {
	var report models.InspectionReport
	if err := json.Unmarshal(item.Payload, &report); err != nil {
		return integrityErr(item, fmt.Sprintf("malformed payload: %v", err))
	}
	switch report.InspectionType {
	case models.InspectionPreTrip, models.InspectionPostTrip:
	default:
		return integrityErr(item, fmt.Sprintf("unknown inspection type %q", report.InspectionType))
	}
	if report.CreatedAt.IsZero() {
		return integrityErr(item, "missing created_at")
	}
	return nil
}

func integrityErr(item *models.QueueItem, reason string) error {
	return &models.DataIntegrityError{Kind: item.Kind, ItemID: item.ID, Reason: reason}
}
