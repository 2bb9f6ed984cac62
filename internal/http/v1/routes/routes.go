// Package routes assembles the public HTTP surface.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/identity-gateway/internal/http/health"
	"github.com/janisto/identity-gateway/internal/http/v1/users"
	"github.com/janisto/identity-gateway/internal/platform/auth"
	"github.com/janisto/identity-gateway/internal/service/account"
)

// APIPrefix is the mount point of the account endpoints.
const APIPrefix = "/api"

// Register wires all HTTP routes into api. Operations that declare the
// bearer scheme are checked by verifier.
func Register(api huma.API, verifier auth.Verifier, svc account.Orchestrator) {
	addBearerScheme(api.OpenAPI())
	api.UseMiddleware(auth.Middleware(api, verifier))

	health.Register(api)
	users.Register(api, APIPrefix, svc)
}

func addBearerScheme(oapi *huma.OpenAPI) {
	if oapi.Components == nil {
		oapi.Components = &huma.Components{}
	}
	if oapi.Components.SecuritySchemes == nil {
		oapi.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oapi.Components.SecuritySchemes[auth.SchemeName] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
		Description:  "Firebase ID token",
	}
}
