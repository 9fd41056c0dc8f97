package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/require"

	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
)

func init() {
	gin.SetMode(gin.TestMode)
	binding.EnableDecoderDisallowUnknownFields = true
}

// postProof 构造引擎并提交请求体。畸形请求体在绑定阶段就被拒绝，
// 不会触达service，处理器可以不注入service构造。
func postProof(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewProofHandler(logimpl.NewNop(), nil)
	engine := gin.New()
	engine.POST("/generate-proof", handler.GenerateProof)

	req := httptest.NewRequest(http.MethodPost, "/generate-proof", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGenerateProof_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"非JSON", "not json at all"},
		{"截断的JSON", `{"minAmount": "100"`},
		{"类型混淆", `{"minAmount": 100}`},
		{"未知字段", `{"minAmount": "100", "bogusField": "1"}`},
		{"缺少必填字段", `{"minAmount": "100"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postProof(t, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Contains(t, w.Body.String(), "malformed request body")
		})
	}
}
