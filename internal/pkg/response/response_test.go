package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/test", handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	var body ErrorBody
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	return body
}

func TestSuccess(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Success(c, gin.H{"job_id": "Job_1"})
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, "Job_1", data["job_id"])
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		handler    gin.HandlerFunc
		wantStatus int
		wantDetail string
	}{
		{
			name:       "param error with message",
			handler:    func(c *gin.Context) { ParamError(c, "Only PDF files are supported") },
			wantStatus: http.StatusBadRequest,
			wantDetail: "Only PDF files are supported",
		},
		{
			name:       "param error default",
			handler:    func(c *gin.Context) { ParamError(c, "") },
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid request",
		},
		{
			name:       "not found with message",
			handler:    func(c *gin.Context) { NotFoundError(c, "Job not found") },
			wantStatus: http.StatusNotFound,
			wantDetail: "Job not found",
		},
		{
			name:       "not found default",
			handler:    func(c *gin.Context) { NotFoundError(c, "") },
			wantStatus: http.StatusNotFound,
			wantDetail: "Resource not found",
		},
		{
			name:       "server error default",
			handler:    func(c *gin.Context) { ServerError(c, "") },
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.handler)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDetail, parseError(t, w).Detail)
		})
	}
}

func TestError_UnknownStatus(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Error(c, http.StatusTeapot, "")
	})

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, parseError(t, w).Detail)
}

func TestError_AbortsChain(t *testing.T) {
	router := gin.New()
	reached := false
	router.GET("/test", func(c *gin.Context) {
		ParamError(c, "bad")
	}, func(c *gin.Context) {
		reached = true
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, reached)
}
