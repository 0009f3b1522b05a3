package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
)

func TestScanRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	var scanRoute *fiber.Route
	for idx := range routes {
		route := routes[idx]
		if route.Method == fiber.MethodGet && route.Path == "/s/:codeId" {
			scanRoute = &routes[idx]
			break
		}
	}

	require.NotNil(t, scanRoute, "expected scan redirect route to be registered")

	// The rate limiter is wrapped in a conditional function that only applies
	// in production; in test the wrapper still appears in the handler chain.
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range scanRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for scan route, handlers: %v", handlerNames)
}

func TestManagementRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := map[string]string{
		"/api/codes":                   fiber.MethodPost,
		"/api/codes/:codeId/stats":     fiber.MethodGet,
		"/api/codes/:codeId/stats/csv": fiber.MethodGet,
		"/api/codes/:codeId/logs/csv":  fiber.MethodGet,
		"/api/codes/:codeId/target":    fiber.MethodPost,
		"/_health":                     fiber.MethodGet,
	}

	found := make(map[string]bool)
	for _, route := range routes {
		if method, ok := expected[route.Path]; ok && route.Method == method {
			found[route.Path] = true
		}
	}

	for path := range expected {
		require.Truef(t, found[path], "expected route %s to be registered", path)
	}
}
