// Package httpserver provides a minimal REST gateway for tbx: JSON endpoints
// that write scalars and text to the runtime's writer, a flush endpoint that
// also indexes, and read endpoints backed by the scalar index.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
//
// Routes:
//
//	GET  /v1/healthz
//	POST /v1/scalars   {"run":"train","step":3,"scalars":{"loss":0.25}}
//	POST /v1/text      {"run":"train","step":3,"tag":"notes","text":"...","markdown":true}
//	POST /v1/flush
//	GET  /v1/runs
//	GET  /v1/tags?run=train
//	GET  /v1/scalars?run=train&tag=loss&start=0&limit=100&reverse=false
package httpserver
