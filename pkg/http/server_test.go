package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TradeOrdu/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	Limit  int    `json:"limit" default:"20" validate:"gte=1,lte=100"`
}

type probeHandler struct{}

func (probeHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/probe", func(c echo.Context) error {
		req := &probeRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("no %s", "BTCUSDT"))
	})
	e.GET("/opaque", func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("dial tcp 10.0.0.1: refused"))
	})
	e.GET("/panic", func(echo.Context) error { panic("boom") })
}

func newTestServer() *Server {
	return NewServer(logger.Nop(), probeHandler{}, WithHost("127.0.0.1"), WithPort(0), WithMetricsPath(""))
}

func call(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var env APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestEnvelopeAlwaysAnswers200(t *testing.T) {
	s := newTestServer()

	rec, env := call(t, s, stdhttp.MethodPost, "/probe", `{"symbol":"BTCUSDT"}`)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, stdhttp.StatusOK, env.Status)
	assert.Equal(t, map[string]interface{}{"symbol": "BTCUSDT", "limit": float64(20)}, env.Data)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec, env = call(t, s, stdhttp.MethodGet, "/missing", "")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, stdhttp.StatusNotFound, env.Status)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestOpaqueErrorsAreNotLeaked(t *testing.T) {
	rec, env := call(t, newTestServer(), stdhttp.MethodGet, "/opaque", "")
	assert.Equal(t, stdhttp.StatusInternalServerError, env.Status)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestValidationErrorsUseWireNames(t *testing.T) {
	rec, env := call(t, newTestServer(), stdhttp.MethodPost, "/probe", `{"limit":500}`)
	assert.Equal(t, stdhttp.StatusBadRequest, env.Status)

	var body struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	fields := []string{body.Data[0].Field, body.Data[1].Field}
	assert.ElementsMatch(t, []string{"symbol", "limit"}, fields)

	_, env = call(t, newTestServer(), stdhttp.MethodPost, "/probe", `{"symbol":`)
	assert.Equal(t, stdhttp.StatusBadRequest, env.Status)
}

func TestPanicIsRecovered(t *testing.T) {
	rec, env := call(t, newTestServer(), stdhttp.MethodGet, "/panic", "")
	assert.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
	assert.Equal(t, stdhttp.StatusInternalServerError, env.Status)
}

func TestServerStartsAndStops(t *testing.T) {
	s := newTestServer()
	assert.Nil(t, s.Addr())
	require.NoError(t, s.Start())

	resp, err := stdhttp.Get(fmt.Sprintf("http://%s/missing", s.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"status":404`)

	port := s.Addr().(*net.TCPAddr).Port
	taken := NewServer(logger.Nop(), nil, WithHost("127.0.0.1"), WithPort(port))
	assert.Error(t, taken.Start())

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, taken.Stop(context.Background()))
}
