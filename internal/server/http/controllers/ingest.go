package controllers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/runtime"
	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/rzbill/tbx/pkg/summary"
)

// IngestController accepts JSON writes and forwards them to the runtime's
// event writer.
type IngestController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewIngestController creates a new ingest controller.
func NewIngestController(rt *runtime.Runtime, logger logpkg.Logger) *IngestController {
	return &IngestController{rt: rt, logger: logger}
}

// RegisterRoutes registers ingest routes with the given mux.
func (c *IngestController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/scalars", c.handleScalars)
	mux.HandleFunc("POST /v1/text", c.handleText)
	mux.HandleFunc("POST /v1/flush", c.handleFlush)
}

// handleScalars writes every scalar of the request in one event.
func (c *IngestController) handleScalars(w http.ResponseWriter, r *http.Request) {
	var req scalarsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Scalars) == 0 {
		writeError(w, http.StatusBadRequest, "scalars is required")
		return
	}
	tags := make([]string, 0, len(req.Scalars))
	for tag := range req.Scalars {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	s := &event.Summary{}
	for _, tag := range tags {
		s.Set(event.Scalar(summary.CleanTag(tag), req.Scalars[tag]))
	}
	ev := event.Event{WallTime: req.WallTime, Step: req.Step, Summary: s}
	if err := c.rt.Writer().WriteEvent(req.Run, ev); err != nil {
		c.logger.WithContext(r.Context()).Warn("write scalars failed", logpkg.Str("run", req.Run), logpkg.Err(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *IngestController) handleText(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	err := c.rt.Writer().AddText(req.Tag, req.Text, req.Markdown, summary.Step(req.Step), summary.Run(req.Run))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleFlush flushes the writer and indexes the new records.
func (c *IngestController) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.Sync(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeNoContent(w)
}
