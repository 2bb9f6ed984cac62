// Package health exposes the liveness probe.
package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Response is the payload for the health endpoint.
type Response struct {
	Status string `json:"status" example:"healthy" doc:"Service status"`
}

// Output wraps Response for huma.
type Output struct {
	Body Response
}

// Register adds GET /health. It sits outside the /api prefix and needs no credentials.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, func(_ context.Context, _ *struct{}) (*Output, error) {
		return &Output{Body: Response{Status: "healthy"}}, nil
	})
}
