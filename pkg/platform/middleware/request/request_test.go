package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/pkg/requestcontext"
)

func captureRequestID(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return seen, rr
}

func TestRequestID(t *testing.T) {
	t.Run("generates a uuid when absent", func(t *testing.T) {
		id, rr := captureRequestID(t, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, rr.Header().Get(HeaderRequestID))
	})

	t.Run("keeps a well-formed inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "edge-1234abcd")

		id, rr := captureRequestID(t, req)

		assert.Equal(t, "edge-1234abcd", id)
		assert.Equal(t, "edge-1234abcd", rr.Header().Get(HeaderRequestID))
	})

	t.Run("replaces a malformed inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "bad id\n<script>")

		id, _ := captureRequestID(t, req)

		assert.NotEqual(t, "bad id\n<script>", id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})
}
