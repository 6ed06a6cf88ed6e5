package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_MissingCredentials(t *testing.T) {
	t.Setenv("MOBIMATTER_API_KEY", "")
	t.Setenv("MOBIMATTER_MERCHANT_ID", "")
	t.Setenv("SHOPIFY_STORE_DOMAIN", "")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")
	t.Setenv("SHOPIFY_API_VERSION", "")

	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "configuration", body["kind"])
	assert.Contains(t, body["error"], "MOBIMATTER_API_KEY")
}
