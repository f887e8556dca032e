package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadforge/outreach-orchestrator/pkg/leads"
)

// TaskStatus represents the lifecycle state of a lead task.
// Transitions only move forward: pending -> processing -> completed/failed.
// The only backward transition is the explicit crash-recovery reset
// (processing -> pending).
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further automatic transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task represents the database model for one lead work item.
// Email is the natural key: re-loading the same CSV never duplicates work.
type Task struct {
	ID          uint   `gorm:"primaryKey;column:id;autoIncrement"`
	Email       string `gorm:"column:email;uniqueIndex:idx_email;not null"`
	LinkedInURL string `gorm:"column:linkedin_url"`
	// LeadData holds the full original CSV row as JSON, preserving every
	// source column for downstream use.
	LeadData string     `gorm:"column:lead_data;not null"`
	Status   TaskStatus `gorm:"column:status;index:idx_status;default:pending"`

	// Stage results, serialized JSON. Null until written back.
	Stage1Result *string `gorm:"column:stage1_result"`
	Stage2Result *string `gorm:"column:stage2_result"`
	Error        *string `gorm:"column:error"`

	WorkerID    *string    `gorm:"column:worker_id"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

// TableName specifies the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// Lead decodes the stored CSV row into the normalized lead schema.
func (t *Task) Lead() (leads.Lead, error) {
	var row map[string]string
	if err := json.Unmarshal([]byte(t.LeadData), &row); err != nil {
		return leads.Lead{}, fmt.Errorf("failed to decode lead data for task %d: %w", t.ID, err)
	}
	return leads.Normalize(row), nil
}
