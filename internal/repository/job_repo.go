package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/findoc_analyzer/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrResultRequired    = errors.New("terminal status requires a result")
	ErrInvalidStatus     = errors.New("unknown job status")
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// NewJobID 生成任务 ID
func NewJobID() string {
	return "Job_" + uuid.NewString()
}

// Create inserts a Queued job and returns its id.
func (r *JobRepository) Create(filePath, query string) (string, error) {
	job := &model.DocumentAnalysisJob{
		JobID:    NewJobID(),
		FilePath: filePath,
		Query:    query,
		Status:   model.JobStatusQueued,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(job).Error
	})
	if err != nil {
		return "", err
	}
	return job.JobID, nil
}

func (r *JobRepository) GetByID(jobID string) (*model.DocumentAnalysisJob, error) {
	var job model.DocumentAnalysisJob
	err := r.db.Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByFilePath 按上传文件路径查找任务
func (r *JobRepository) GetByFilePath(filePath string) (*model.DocumentAnalysisJob, error) {
	var job model.DocumentAnalysisJob
	err := r.db.Where("file_path = ?", filePath).Order("created_at DESC").First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus moves a job to status and stores result in one statement.
// The row only changes if its current status is a legal predecessor, so
// concurrent writers can never regress a job. A terminal status needs a
// non-empty result; non-terminal statuses always clear it.
func (r *JobRepository) UpdateStatus(jobID, status, result string) error {
	if !model.IsValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if model.IsTerminalStatus(status) {
		if result == "" {
			return ErrResultRequired
		}
	} else {
		result = ""
	}

	from := model.AllowedPredecessors(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: -> %s", ErrInvalidTransition, status)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DocumentAnalysisJob{}).
			Where("job_id = ? AND job_status IN ?", jobID, from).
			Updates(map[string]interface{}{
				"job_status": status,
				"job_result": result,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var current model.DocumentAnalysisJob
		if err := tx.Select("job_status").Where("job_id = ?", jobID).First(&current).Error; err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	})
}

// CountByStatus 统计各状态任务数
func (r *JobRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string `gorm:"column:job_status"`
		Count  int64
	}
	err := r.db.Model(&model.DocumentAnalysisJob{}).
		Select("job_status, COUNT(*) AS count").
		Group("job_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
