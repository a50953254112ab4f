// Package request assigns every HTTP request an identifier that is carried in
// logs, stored reports and the X-Request-ID response header.
package request

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"docbridge/pkg/requestcontext"
)

// HeaderRequestID is read from inbound requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

// inbound ids from proxies are accepted only when they look like an id.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// RequestID reuses a well-formed inbound X-Request-ID or generates a UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
