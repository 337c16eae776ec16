// Package event defines the closed set of telemetry records written to an
// event file and their protobuf wire encoding.
//
// Field numbers follow TensorBoard's Event, Summary, HistogramProto and
// TensorProto schemas exactly; the encoder uses protowire directly because the
// record set is fixed and no generated code is required.
//
//	ev := event.Event{WallTime: 1700000000.5, Step: 3, Summary: &event.Summary{}}
//	ev.Summary.Set(event.Scalar("loss", 0.25))
//	b := event.Encode(ev)
//	back, err := event.Decode(b)
package event
