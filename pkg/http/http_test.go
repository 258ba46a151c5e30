package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataResponseWritesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, NotFoundErrorf("asset %s not found", "dogecoin")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, "Not Found", body.Message)
}

func TestAppErrorResponseFallsBackTo500(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := NewServer(nil,
		WithHealthCheck("postgres", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("connection refused") }),
	)

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Data["postgres"])
	assert.Equal(t, "connection refused", body.Data["clickhouse"])
}

type createReq struct {
	AssetSlug string `json:"asset_slug" validate:"required"`
	Limit     int    `json:"limit" default:"10" validate:"gte=1,lte=52"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"limit":99}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var r createReq
	errs := ReadAndValidateRequest(c, &r)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "asset_slug", errs[0].Field)
	assert.Equal(t, "ERR_LTE", errs[1].Code)

	req = httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"asset_slug":"bitcoin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())

	r = createReq{}
	assert.Nil(t, ReadAndValidateRequest(c, &r))
	assert.Equal(t, 10, r.Limit)
}

func TestClientSendAndParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "quota exceeded", http.StatusPaymentRequired)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer ts.Close()

	c := NewClient()
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost, URL: ts.URL + "/ok", Body: map[string]string{"a": "b"},
	}, &out))
	assert.Equal(t, "abc", out.ID)

	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodPost, URL: ts.URL + "/fail"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusPaymentRequired, se.StatusCode)
	assert.Equal(t, "quota exceeded", se.Body)
}

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }
