package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

func newContext(accept string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents", nil)
	if accept != "" {
		c.Request.Header.Set("Accept", accept)
	}
	return c, w
}

func TestJSONEnvelope(t *testing.T) {
	c, w := newContext("")
	JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"scope": "own"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{"a"}, body["data"])
	assert.Equal(t, "own", body["meta"].(map[string]interface{})["scope"])
	assert.NotContains(t, body, "error")
}

func TestErrorMapsUnknownErrors(t *testing.T) {
	c, w := newContext("")
	Error(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, appErrors.ErrInternal.Code, body.Error.Code)
}

func TestDeny(t *testing.T) {
	c, w := newContext("text/html,application/xhtml+xml")
	Deny(c, appErrors.ErrAuthenticationRequired, "/login")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.True(t, c.IsAborted())

	c, w = newContext("application/json")
	Deny(c, appErrors.ErrForbidden, "/unauthorized")
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/unauthorized", body.Meta["redirect"])
	assert.True(t, c.IsAborted())
}

func TestAttachment(t *testing.T) {
	c, w := newContext("")
	Attachment(c, "assignment-S-1-history.csv", "text/csv; charset=utf-8", []byte("Version\n1\n"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="assignment-S-1-history.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "10", w.Header().Get("Content-Length"))
	assert.Equal(t, "Version\n1\n", w.Body.String())
}
