package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/allowlist"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/mcp"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/scrapinghub"
	shtoolset "github.com/lambdamechanic/scrapinghub-mcp/pkg/toolsets/scrapinghub"
)

type nopCaller struct{}

func (nopCaller) Do(context.Context, scrapinghub.Operation, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type HttpSuite struct {
	suite.Suite
	mcpServer *mcp.Server
}

func (s *HttpSuite) SetupTest() {
	gate := allowlist.NewGate(
		allowlist.Build(allowlist.Source{Kind: allowlist.SourcePackaged}, []string{"projects.list"}, config.SafetyConfig{}),
		false,
	)
	var err error
	s.mcpServer, err = mcp.NewServer(mcp.Configuration{
		Gate:     gate,
		Caller:   nopCaller{},
		Toolsets: []api.Toolset{shtoolset.NewToolset()},
	})
	s.Require().NoError(err)
}

func (s *HttpSuite) serve(serverConfig config.ServerConfig, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	NewHandler(s.mcpServer, serverConfig).ServeHTTP(recorder, req)
	return recorder
}

func (s *HttpSuite) TestHealthEndpoint() {
	recorder := s.serve(config.ServerConfig{}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, recorder.Code)
}

func (s *HttpSuite) TestMetricsEndpoint() {
	recorder := s.serve(config.ServerConfig{}, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, recorder.Code)
	s.Contains(recorder.Body.String(), "scrapinghub_mcp_allow_mutate")
}

func (s *HttpSuite) TestCORS() {
	serverConfig := config.ServerConfig{CORS: &config.CORSConfig{Origins: []string{"https://allowed.example/"}}}
	s.Run("preflight from allowed origin", func() {
		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://allowed.example")
		recorder := s.serve(serverConfig, req)
		s.Equal(http.StatusNoContent, recorder.Code)
		s.Equal("https://allowed.example", recorder.Header().Get(corsHeaderAllowOrigin))
		s.Equal("true", recorder.Header().Get(corsHeaderAllowCredentials))
		s.Equal("86400", recorder.Header().Get(corsHeaderMaxAge))
	})
	s.Run("preflight from other origin is rejected", func() {
		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://evil.example")
		recorder := s.serve(serverConfig, req)
		s.Equal(http.StatusForbidden, recorder.Code)
		s.Empty(recorder.Header().Get(corsHeaderAllowOrigin))
	})
	s.Run("wildcard origin without credentials", func() {
		wildcard := config.ServerConfig{CORS: &config.CORSConfig{Origins: []string{"*"}, MaxAge: 60}}
		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://any.example")
		recorder := s.serve(wildcard, req)
		s.Equal("*", recorder.Header().Get(corsHeaderAllowOrigin))
		s.Empty(recorder.Header().Get(corsHeaderAllowCredentials))
		s.Equal("60", recorder.Header().Get(corsHeaderMaxAge))
	})
	s.Run("disabled without configuration", func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://allowed.example")
		recorder := s.serve(config.ServerConfig{}, req)
		s.Equal(http.StatusOK, recorder.Code)
		s.Empty(recorder.Header().Get(corsHeaderAllowOrigin))
	})
}

func (s *HttpSuite) TestServeStopsOnContextCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.NoError(Serve(ctx, s.mcpServer, config.ServerConfig{Port: "0"}))
}

func TestHttp(t *testing.T) {
	suite.Run(t, new(HttpSuite))
}
