// Package pipeline provides orchestration for per-frame marker decoding.
//
// It wires the layer packages (L1-L5) and adapter sinks (detection log,
// dashboards) into a single decode per frame, and a producer/consumer
// worker for streams of frames. The pipeline does not own domain logic;
// it delegates to layer packages and adapters.
package pipeline
