// Package queue is the persistent task queue backing the pipeline. Tasks
// live in SQLite so an interrupted batch resumes where it stopped.
package queue

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leadforge/outreach-orchestrator/pkg/classify"
	"github.com/leadforge/outreach-orchestrator/pkg/db/models"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
)

// Stats is the queue's status breakdown.
type Stats struct {
	Total      int64
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// ExportTask is a terminal task decoded at the storage boundary: the raw
// row JSON becomes a Lead and the stored stage results become their typed
// forms.
type ExportTask struct {
	Email       string
	LinkedInURL string
	Lead        leads.Lead
	Status      models.TaskStatus
	Stage1      *classify.Result
	Stage2      *generate.Result
	Error       string
	CompletedAt *time.Time
}

// TaskQueue wraps the tasks table with the pipeline's claim and update
// semantics.
type TaskQueue struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func New(db *gorm.DB, logger *logrus.Logger) *TaskQueue {
	return &TaskQueue{db: db, logger: logger}
}

// Initialize ensures the schema exists. With clean set, existing tasks are
// dropped first.
func (q *TaskQueue) Initialize(clean bool) error {
	if clean {
		if err := q.db.Migrator().DropTable(&models.Task{}); err != nil {
			return fmt.Errorf("failed to drop tasks table: %w", err)
		}
	}
	if err := q.db.AutoMigrate(&models.Task{}); err != nil {
		return fmt.Errorf("failed to migrate tasks table: %w", err)
	}
	return nil
}

// LoadFromCSV inserts one pending task per CSV row. Rows without an email
// and rows whose email is already queued are skipped; startPosition data
// rows are skipped before ingest begins (resume offset into a large file).
// Returns the number of newly inserted tasks.
func (q *TaskQueue) LoadFromCSV(csvPath string, startPosition int) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	inserted := 0
	skippedNoEmail := 0
	skippedExists := 0
	position := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Ragged rows cannot be mapped onto the header; skip them
			// like rows without an email instead of aborting the load.
			if errors.Is(err, csv.ErrFieldCount) {
				position++
				if position > startPosition {
					skippedNoEmail++
				}
				continue
			}
			return inserted, fmt.Errorf("failed to read CSV row: %w", err)
		}

		position++
		if position <= startPosition {
			continue
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		lead := leads.Normalize(row)
		if !lead.HasEmail() {
			skippedNoEmail++
			continue
		}

		leadData, err := json.Marshal(row)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode lead data: %w", err)
		}

		task := models.Task{
			Email:       strings.TrimSpace(lead.Email),
			LinkedInURL: lead.LinkedInURL,
			LeadData:    string(leadData),
			Status:      models.StatusPending,
		}

		// Email is unique; an existing task wins.
		result := q.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&task)
		if result.Error != nil {
			return inserted, fmt.Errorf("failed to insert task: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			skippedExists++
			continue
		}
		inserted++
	}

	if skippedNoEmail > 0 {
		q.logger.WithField("count", skippedNoEmail).Info("Skipped leads without email")
	}
	if skippedExists > 0 {
		q.logger.WithField("count", skippedExists).Info("Skipped leads already in queue")
	}

	return inserted, nil
}

// GetNextTask atomically claims the oldest pending task for a worker.
// Returns nil with no error when the queue is drained. The claim either
// fully succeeds or leaves no visible state change.
func (q *TaskQueue) GetNextTask(ctx context.Context, workerID string) (*models.Task, error) {
	var claimed *models.Task

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		err := tx.Where("status = ?", models.StatusPending).Order("id").First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		// Guard on status again: the row may have been claimed between
		// the select and this update.
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", task.ID, models.StatusPending).
			Updates(map[string]any{
				"status":     models.StatusProcessing,
				"worker_id":  workerID,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		task.Status = models.StatusProcessing
		task.WorkerID = &workerID
		task.StartedAt = &now
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return claimed, nil
}

// UpdateTask writes a task's terminal state. Stage results are serialized
// at this boundary; pass nil for stages that did not run.
func (q *TaskQueue) UpdateTask(ctx context.Context, taskID uint, status models.TaskStatus, stage1 *classify.Result, stage2 *generate.Result, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot update task %d to non-terminal status %q", taskID, status)
	}

	updates := map[string]any{
		"status":       status,
		"completed_at": time.Now().UTC(),
	}

	if stage1 != nil {
		data, err := json.Marshal(stage1)
		if err != nil {
			return fmt.Errorf("failed to encode stage 1 result: %w", err)
		}
		updates["stage1_result"] = string(data)
	}
	if stage2 != nil {
		data, err := json.Marshal(stage2)
		if err != nil {
			return fmt.Errorf("failed to encode stage 2 result: %w", err)
		}
		updates["stage2_result"] = string(data)
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}

	res := q.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", taskID, res.Error)
	}
	return nil
}

// GetStats returns the per-status task counts.
func (q *TaskQueue) GetStats() (*Stats, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	err := q.db.Model(&models.Task{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	stats := &Stats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusPending:
			stats.Pending = row.Count
		case models.StatusProcessing:
			stats.Processing = row.Count
		case models.StatusCompleted:
			stats.Completed = row.Count
		case models.StatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

// GetAllTasks returns every terminal task, completed before failed, in
// insertion order within each group, decoded for export.
func (q *TaskQueue) GetAllTasks() ([]ExportTask, error) {
	var tasks []models.Task
	err := q.db.
		Where("status IN ?", []models.TaskStatus{models.StatusCompleted, models.StatusFailed}).
		Order("CASE status WHEN 'completed' THEN 1 WHEN 'failed' THEN 2 END, id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read terminal tasks: %w", err)
	}

	out := make([]ExportTask, 0, len(tasks))
	for _, t := range tasks {
		export := ExportTask{
			Email:       t.Email,
			LinkedInURL: t.LinkedInURL,
			Status:      t.Status,
			CompletedAt: t.CompletedAt,
		}

		var row map[string]string
		if err := json.Unmarshal([]byte(t.LeadData), &row); err == nil {
			export.Lead = leads.Normalize(row)
		} else {
			q.logger.WithFields(logrus.Fields{
				"task_id": t.ID,
				"error":   err.Error(),
			}).Warn("Failed to decode stored lead data")
		}

		if t.Stage1Result != nil {
			var s1 classify.Result
			if err := json.Unmarshal([]byte(*t.Stage1Result), &s1); err == nil {
				export.Stage1 = &s1
			}
		}
		if t.Stage2Result != nil {
			var s2 generate.Result
			if err := json.Unmarshal([]byte(*t.Stage2Result), &s2); err == nil {
				export.Stage2 = &s2
			}
		}
		if t.Error != nil {
			export.Error = *t.Error
		}

		out = append(out, export)
	}
	return out, nil
}

// ResetProcessingTasks returns crashed-mid-flight tasks to pending so a
// resumed run can claim them again.
func (q *TaskQueue) ResetProcessingTasks() (int64, error) {
	res := q.db.Model(&models.Task{}).
		Where("status = ?", models.StatusProcessing).
		Updates(map[string]any{
			"status":     models.StatusPending,
			"worker_id":  nil,
			"started_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset processing tasks: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		q.logger.WithField("count", res.RowsAffected).Info("Reset processing tasks to pending")
	}
	return res.RowsAffected, nil
}
