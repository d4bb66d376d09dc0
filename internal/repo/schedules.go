package repo

import "gorm.io/gorm"

// CreateSchedule persists a new recurring command.
func (r *Repository) CreateSchedule(s Schedule) error {
	return r.db.Create(&s).Error
}

// GetSchedule returns a single schedule, or ErrNotFound.
func (r *Repository) GetSchedule(docID, scheduleID string) (Schedule, error) {
	var s Schedule
	err := r.db.First(&s, "doc_id = ? AND id = ?", docID, scheduleID).Error
	return s, err
}

// DueSchedules returns every ACTIVE schedule whose nextRunAt has elapsed,
// across all documents.
func (r *Repository) DueSchedules(now int64) ([]Schedule, error) {
	var rows []Schedule
	err := r.db.Where("status = ? AND next_run_at <= ?", ScheduleActive, now).Find(&rows).Error
	return rows, err
}

// ReserveDueSchedule atomically advances a schedule's nextRunAt and bumps
// totalRuns, returning false if another scheduler tick already reserved it.
// The CAS guards against two scheduler ticks racing on the same schedule.
func (r *Repository) ReserveDueSchedule(scheduleID string, prevNextRunAt, newNextRunAt, now int64) (bool, error) {
	won := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Schedule{}).
			Where("id = ? AND status = ? AND next_run_at = ?", scheduleID, ScheduleActive, prevNextRunAt).
			Updates(map[string]interface{}{
				"next_run_at": newNextRunAt,
				"total_runs":  gorm.Expr("total_runs + 1"),
				"last_run_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		won = result.RowsAffected == 1
		return nil
	})
	return won, err
}

// LinkScheduleToCommand records which command a scheduler tick produced,
// for observability.
func (r *Repository) LinkScheduleToCommand(docID, cmdID, scheduleID string, now int64) error {
	return r.UpdateCommandFields(docID, cmdID, map[string]interface{}{"schedule_id": scheduleID}, now)
}

// CancelSchedule flips a schedule to CANCELLED.
func (r *Repository) CancelSchedule(docID, scheduleID string) error {
	return r.db.Model(&Schedule{}).
		Where("doc_id = ? AND id = ?", docID, scheduleID).
		Update("status", ScheduleCancelled).Error
}

// ListSchedules returns every schedule for a document.
func (r *Repository) ListSchedules(docID string) ([]Schedule, error) {
	var rows []Schedule
	err := r.db.Where("doc_id = ?", docID).Find(&rows).Error
	return rows, err
}
