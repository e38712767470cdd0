package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "OptionScan/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Limit  int    `json:"limit" default:"10" validate:"gte=1,lte=20"`
}

type probeHandler struct{}

func (probeHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/probe", func(c echo.Context) error {
		var req probeRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("database password=hunter2")
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("kaboom")
	})
	e.GET("/missing", func(c echo.Context) error {
		return NotFoundErrorf("strategy %q not found", "x")
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewServer(probeHandler{}, applogger.Nop(), WithMetrics("/metrics", reg, reg))
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodPost, "/probe", `{"ticker":"AAPL"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 10, data["limit"])
}

func TestReadAndValidateRequest_Errors(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodPost, "/probe", `{"ticker":"NOT A TICKER!","limit":50}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	raw, _ := json.Marshal(resp.Data)
	var details []ValidationError
	require.NoError(t, json.Unmarshal(raw, &details))
	codes := map[string]string{}
	for _, d := range details {
		codes[d.Field] = d.Code
	}
	assert.Equal(t, "ERR_TICKER", codes["ticker"])
	assert.Equal(t, "ERR_LTE", codes["limit"])
}

func TestReadAndValidateRequest_MalformedJSON(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, http.MethodPost, "/probe", `{"ticker":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorHandler_HidesInternalDetail(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, GenericErrorMessage, resp.Data)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestErrorHandler_Panic(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodGet, "/panic", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, GenericErrorMessage, resp.Data)
}

func TestErrorHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodGet, "/probe", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Contains(t, rec.Body.String(), "ERR_METHOD_NOT_ALLOWED")
}

func TestErrorHandler_AppError(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/probe", `{"ticker":"SPY"}`)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `optionscan_http_requests_total{method="POST",route="/probe",status="200"} 1`)
}

func TestClient_SendAndParse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "k", r.URL.Query().Get("apiKey"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"value":42}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("down"))
		}
	}))
	defer upstream.Close()

	c := NewClient()
	var out struct {
		Value int `json:"value"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      http.MethodGet,
		URL:         upstream.URL + "/ok",
		QueryParams: map[string][]string{"apiKey": {"k"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: http.MethodGet, URL: upstream.URL + "/down"}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, se.Temporary())
}
