package controllers

import (
	"net/http"
	"strconv"

	"github.com/rzbill/tbx/internal/index"
	"github.com/rzbill/tbx/internal/runtime"
)

// QueryController serves reads from the scalar index. Runs are addressed by
// the "run" query parameter because run names may contain slashes; the log
// directory itself is ".".
type QueryController struct {
	rt *runtime.Runtime
}

// NewQueryController creates a new query controller.
func NewQueryController(rt *runtime.Runtime) *QueryController {
	return &QueryController{rt: rt}
}

// RegisterRoutes registers query routes with the given mux.
func (c *QueryController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/runs", c.handleRuns)
	mux.HandleFunc("GET /v1/tags", c.handleTags)
	mux.HandleFunc("GET /v1/scalars", c.handleScalars)
}

func (c *QueryController) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := c.rt.Index().Runs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []string{}
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (c *QueryController) handleTags(w http.ResponseWriter, r *http.Request) {
	run := r.URL.Query().Get("run")
	if run == "" {
		writeError(w, http.StatusBadRequest, "run is required")
		return
	}
	tags, err := c.rt.Index().Tags(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tags")
		return
	}
	if tags == nil {
		tags = []index.TagInfo{}
	}
	writeJSON(w, map[string]any{"run": run, "tags": tags})
}

// handleScalars returns a window of one series:
// ?run=&tag=&start=&limit=&reverse=
func (c *QueryController) handleScalars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	run, tag := q.Get("run"), q.Get("tag")
	if run == "" || tag == "" {
		writeError(w, http.StatusBadRequest, "run and tag are required")
		return
	}
	opts := index.QueryOptions{Limit: parseLimit(q.Get("limit")), Reverse: parseBool(q.Get("reverse"))}
	if s := q.Get("start"); s != "" {
		start, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start")
			return
		}
		opts.Start = start
	}
	pts, err := c.rt.Index().Scalars(run, tag, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query scalars")
		return
	}
	writeJSON(w, scalarsResp{Run: run, Tag: tag, Points: pts})
}
