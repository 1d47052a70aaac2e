package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestOKWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "rid-1")

	OK(c, 0, gin.H{"id": "u1"}, "done")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])
	require.Equal(t, "rid-1", body["request_id"])
	require.Equal(t, "done", body["message"])
	require.Equal(t, "u1", body["data"].(map[string]any)["id"])
	require.NotContains(t, body, "error")
}

func TestFailAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, 0, "bad input", map[string]string{"phone": "must be exactly 8 digits"})

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, "must be exactly 8 digits", body["error"].(map[string]any)["phone"])
	require.NotContains(t, body, "data")
}
