package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/findoc_analyzer/internal/model"
)

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, status string, opts ...func(*model.DocumentAnalysisJob)) *model.DocumentAnalysisJob {
	t.Helper()

	job := &model.DocumentAnalysisJob{
		JobID:    "Job_" + uuid.NewString(),
		FilePath: fmt.Sprintf("data/financial_document_%s.pdf", uuid.NewString()),
		Query:    "Summarize risks",
		Status:   status,
	}
	if model.IsTerminalStatus(status) {
		job.Result = "seeded result"
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithFilePath 设置文件路径
func WithFilePath(path string) func(*model.DocumentAnalysisJob) {
	return func(j *model.DocumentAnalysisJob) {
		j.FilePath = path
	}
}

// WithQuery 设置查询
func WithQuery(query string) func(*model.DocumentAnalysisJob) {
	return func(j *model.DocumentAnalysisJob) {
		j.Query = query
	}
}

// SamplePDF builds a small text PDF with one page per entry in pages.
func SamplePDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	if len(pages) == 0 {
		pages = []string{
			"Revenue: $120 million, up 12 % year over year",
			"Net Income: $18 million",
			"Risk factors: rising debt , supply chain exposure",
		}
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.Cell(0, 10, text)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("Failed to render sample PDF: %v", err)
	}
	return buf.Bytes()
}

// WriteSamplePDF 将示例 PDF 写入 dir，返回路径
func WriteSamplePDF(t *testing.T, dir string, pages ...string) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("financial_document_%s.pdf", uuid.NewString()))
	if err := os.WriteFile(path, SamplePDF(t, pages...), 0644); err != nil {
		t.Fatalf("Failed to write sample PDF: %v", err)
	}
	return path
}
