package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/middleware"
	"github.com/noah-isme/campus-clearance-api/internal/models"
)

func newTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestCaseHandlerSubmitInvalidBody(t *testing.T) {
	handler := NewCaseHandler(nil, nil, nil)
	c, w := newTestContext(t, http.MethodPost, "/clearance/cases/case-1/submit", []byte(`not json`))
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCaseHandlerDecideInvalidBody(t *testing.T) {
	handler := NewCaseHandler(nil, nil, nil)
	c, w := newTestContext(t, http.MethodPost, "/clearance/cases/case-1/decision", []byte(`{`))
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "rev-1", Role: models.RoleReviewer})

	handler.Decide(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCaseHandlerUploadEvidenceMissingFile(t *testing.T) {
	handler := NewCaseHandler(nil, nil, nil)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPut, "/clearance/cases/case-1/requirements/r-1/evidence", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "case-1"}, {Key: "requirementId", Value: "r-1"}}

	handler.UploadEvidence(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
