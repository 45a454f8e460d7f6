// Package api implements the HTTP REST surface of the area core.
//
// Routes live under /api/v1. Every route except login, registration,
// activation, health and metrics requires a bearer access token; the
// middleware turns it into an auth.Principal on the request context and the
// services do the rest. Errors leave through writeServiceError, which maps
// the domain error kinds onto one JSON envelope:
//
//	{"status":403,"code":"forbidden","message":"…","type":"unauthorized"}
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
