package model

import (
	"time"
)

// 任务状态
const (
	JobStatusQueued     = "Queued"
	JobStatusProcessing = "Processing"
	JobStatusCompleted  = "Completed"
	JobStatusFailed     = "Failed"
)

// jobTransitions maps a target status to the statuses it may be entered from.
// Processing may be re-entered when a work item is redelivered after a crash.
var jobTransitions = map[string][]string{
	JobStatusProcessing: {JobStatusQueued, JobStatusProcessing},
	JobStatusCompleted:  {JobStatusProcessing},
	JobStatusFailed:     {JobStatusProcessing},
}

// DocumentAnalysisJob 一次文档分析请求
type DocumentAnalysisJob struct {
	JobID     string    `gorm:"column:job_id;primaryKey;size:64" json:"job_id"`
	FilePath  string    `gorm:"column:file_path;size:500;not null;index" json:"file_path"`
	Query     string    `gorm:"column:analysis_query;type:text;not null" json:"query"`
	Status    string    `gorm:"column:job_status;size:20;not null;default:Queued;index" json:"status"`
	Result    string    `gorm:"column:job_result;type:text" json:"result,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (DocumentAnalysisJob) TableName() string {
	return "document_analysis_jobs"
}

// IsTerminal reports whether no further transitions are possible.
func (j *DocumentAnalysisJob) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

func IsValidStatus(status string) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// AllowedPredecessors returns the statuses a job may be in for a move to status.
// Queued has none: it is only ever set on insert.
func AllowedPredecessors(status string) []string {
	return jobTransitions[status]
}

// CanTransition 状态只能向前流转
func CanTransition(from, to string) bool {
	for _, s := range jobTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}
