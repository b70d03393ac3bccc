package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/langhaul/roadlog/internal/models"
)

// DutyLogRepository 职责日志仓库。仅追加已关闭的日志，
// 超过保留期的记录由 Prune 清理（已同步的数据不受影响）。
type DutyLogRepository struct {
	db *DB
}

// NewDutyLogRepository 创建日志仓库
func NewDutyLogRepository(db *DB) *DutyLogRepository {
	return &DutyLogRepository{db: db}
}

// Append 追加一条已关闭的日志
func (r *DutyLogRepository) Append(ctx context.Context, log *models.DutyLog) error {
	startLoc, err := marshalLocation(log.StartLocation)
	if err != nil {
		return fmt.Errorf("marshal start location: %w", err)
	}
	endLoc, err := marshalLocation(log.EndLocation)
	if err != nil {
		return fmt.Errorf("marshal end location: %w", err)
	}

	query := `
		INSERT INTO duty_logs (id, device_id, date, type, start_time, end_time, duration_minutes,
			start_location, end_location, odometer_start, odometer_end, notes, certified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		log.ID,
		log.DeviceID,
		log.Date,
		log.Type,
		log.StartTime,
		log.EndTime,
		log.DurationMinutes,
		startLoc,
		endLoc,
		log.OdometerStart,
		log.OdometerEnd,
		log.Notes,
		log.Certified,
	)
	if err != nil {
		return fmt.Errorf("insert duty log: %w", err)
	}
	return nil
}

// ListSince 获取起始时间不早于 since 的日志，按开始时间升序
func (r *DutyLogRepository) ListSince(ctx context.Context, since time.Time) ([]*models.DutyLog, error) {
	query := `
		SELECT id, device_id, date, type, start_time, end_time, duration_minutes,
			start_location, end_location, odometer_start, odometer_end, notes, certified
		FROM duty_logs WHERE start_time >= $1 ORDER BY start_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list duty logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.DutyLog
	for rows.Next() {
		log := &models.DutyLog{}
		var startLoc, endLoc []byte
		err := rows.Scan(
			&log.ID,
			&log.DeviceID,
			&log.Date,
			&log.Type,
			&log.StartTime,
			&log.EndTime,
			&log.DurationMinutes,
			&startLoc,
			&endLoc,
			&log.OdometerStart,
			&log.OdometerEnd,
			&log.Notes,
			&log.Certified,
		)
		if err != nil {
			return nil, fmt.Errorf("scan duty log: %w", err)
		}
		if log.StartLocation, err = unmarshalLocation(startLoc); err != nil {
			return nil, fmt.Errorf("decode start location: %w", err)
		}
		if log.EndLocation, err = unmarshalLocation(endLoc); err != nil {
			return nil, fmt.Errorf("decode end location: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// Prune 删除起始时间早于 before 的日志，返回删除条数
func (r *DutyLogRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM duty_logs WHERE start_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune duty logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountSince 统计窗口内的日志数
func (r *DutyLogRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM duty_logs WHERE start_time >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count duty logs: %w", err)
	}
	return count, nil
}

func marshalLocation(loc *models.Location) ([]byte, error) {
	if loc == nil {
		return nil, nil
	}
	return json.Marshal(loc)
}

func unmarshalLocation(data []byte) (*models.Location, error) {
	if len(data) == 0 {
		return nil, nil
	}
	loc := &models.Location{}
	if err := json.Unmarshal(data, loc); err != nil {
		return nil, err
	}
	return loc, nil
}
