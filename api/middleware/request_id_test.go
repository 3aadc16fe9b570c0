package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

func TestRequestID(t *testing.T) {
	h := RequestID(logger.Nop())(okHandler)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"keeps well formed id", "req-42.a:b", true},
		{"mints when missing", "", false},
		{"mints when too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"mints when it carries control characters", "abc\nlevel=error", false},
		{"mints when it carries spaces", "abc def", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header[requestIDHeader] = []string{tt.header}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			assert.NotEmpty(t, got)
			if tt.keep {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}
