package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func TestServerCORSOrigins(t *testing.T) {
	get := func(s *Server, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec
	}

	s := NewServer(nil, []Handler{pingHandler{}}, WithCORSOrigins([]string{"http://app.local"}))
	assert.Equal(t, "http://app.local", get(s, "http://app.local").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, get(s, "http://other.local").Header().Get("Access-Control-Allow-Origin"))

	s = NewServer(nil, []Handler{pingHandler{}}, WithCORSOrigins(nil), WithMetricsPath(""))
	rec := get(s, "http://app.local")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
