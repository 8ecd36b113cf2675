package middleware

import appctx "github.com/jsamuelsen11/cascade/internal/app/context"

var routeKey = appctx.NewKey[string]("route")

// SetRoute records the route pattern that matched the request. The router
// calls it; tracing and logging read it with Route.
func SetRoute(c *appctx.Context, pattern string) {
	routeKey.Set(c.State(), pattern)
}

// Route returns the matched route pattern, or "" when none matched.
func Route(c *appctx.Context) string {
	pattern, _ := routeKey.Get(c.State())
	return pattern
}
