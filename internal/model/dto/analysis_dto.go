package dto

// AnalyzeRequest 文档分析请求（multipart 表单，文件单独读取）
type AnalyzeRequest struct {
	Query string `form:"query"`
}

// AnalyzeResponse 提交成功响应
type AnalyzeResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Query         string `json:"query"`
	FileProcessed string `json:"file_processed"`
}

// JobStatusResponse 任务状态响应
type JobStatusResponse struct {
	JobID        string `json:"job_id"`
	JobStatus    string `json:"job_status"`
	JobCreatedAt string `json:"job_created_at"`
	JobUpdatedAt string `json:"job_updated_at"`
	JobResult    string `json:"job_result"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Message string `json:"message"`
}
