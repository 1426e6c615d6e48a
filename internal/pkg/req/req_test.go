package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dmchat/internal/pkg/errs"
)

type sample struct {
	Name  string `json:"name" validate:"required,min=3"`
	Count int    `json:"count"`
}

func newJSONRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		ctype    string
		wantCode int
	}{
		{"valid", `{"name":"alice","count":2}`, "application/json", 0},
		{"wrong content type", `{"name":"alice"}`, "text/plain", errs.ErrUnsupportedMediaType},
		{"broken json", `{"name":`, "application/json", errs.ErrInvalidJSONFormat},
		{"unknown field", `{"name":"alice","extra":1}`, "application/json", errs.ErrInvalidJSONFormat},
		{"trailing data", `{"name":"alice"}{"name":"bob"}`, "application/json", errs.ErrExtraContentInBody},
		{"validation failure", `{"name":"al"}`, "application/json", errs.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := newJSONRequest(tt.body)
			r.Header.Set("Content-Type", tt.ctype)

			var dst sample
			err := BindJSON(httptest.NewRecorder(), r, &dst)

			if tt.wantCode == 0 {
				req.Nil(err)
				req.Equal("alice", dst.Name)
				return
			}
			req.NotNil(err)
			req.Equal(tt.wantCode, err.Code)
		})
	}
}

func TestQueryInt64(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/?limit=10&bad=x", nil)

	v, err := QueryInt64(r, "limit", 50)
	req.Nil(err)
	req.Equal(int64(10), v)

	v, err = QueryInt64(r, "skip", 0)
	req.Nil(err)
	req.Equal(int64(0), v)

	_, err = QueryInt64(r, "bad", 0)
	req.NotNil(err)
	req.Equal(errs.ErrInvalidParams, err.Code)
}
