package controllers

import (
	"net/http"

	"github.com/rzbill/tbx/internal/runtime"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general *GeneralController
	ingest  *IngestController
	query   *QueryController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		ingest:  NewIngestController(rt, logger),
		query:   NewQueryController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This sets up the health endpoint, the JSON ingest endpoints and the
// index queries.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.ingest.RegisterRoutes(mux)
	r.query.RegisterRoutes(mux)
}
