// Package filter compiles CEL expressions that select summary values when
// inspecting event files, for example:
//
//	kind == "scalar" && tag.startsWith("train/") && step >= 1000
//	kind == "scalar" && value > 10.0
//	wall_time > now - 3600.0
package filter
