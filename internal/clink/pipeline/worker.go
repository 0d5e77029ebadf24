package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/monitoring"
)

// Frame is one unit of work handed from the producer to the decoder. The
// aggregate must be a snapshot owned by this frame; the pixels are pinned
// through Pixels only while the frame decodes.
type Frame struct {
	Seq       uint64
	Captured  time.Time
	Aggregate *l1grid.Aggregate
	Pixels    framebuf.Locker
}

// Sink consumes decoded frames (detection log, dashboards). It is an
// adapter; implementations live outside the layer packages.
type Sink interface {
	Consume(f Frame, res FrameResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f Frame, res FrameResult) error

// Consume calls fn.
func (fn SinkFunc) Consume(f Frame, res FrameResult) error {
	return fn(f, res)
}

// Stats summarises a Run.
type Stats struct {
	Frames     int
	Skipped    int
	Markers    int
	LockErrors int
	SinkErrors int
}

// Run decodes frames from in until in is closed or ctx is cancelled, sending
// each result to every sink and then to out when out is non-nil.
// Cancellation is observed only between frames; a frame that has started
// decoding always completes. Frames that cannot be locked or arrive
// without an aggregate or pixels count as LockErrors. Sink errors are
// logged and counted, never fatal.
func (d *FrameDecoder) Run(ctx context.Context, in <-chan Frame, out chan<- FrameResult, sinks ...Sink) (Stats, error) {
	var st Stats
	for {
		var f Frame
		var ok bool
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case f, ok = <-in:
			if !ok {
				return st, nil
			}
		}

		res, err := d.DecodeLocked(f.Aggregate, f.Pixels)
		if err != nil {
			st.LockErrors++
			if errors.Is(err, framebuf.ErrReleased) {
				monitoring.Logf("[pipeline] frame %d released before decode", f.Seq)
			} else {
				monitoring.Logf("[pipeline] frame %d: %v", f.Seq, err)
			}
			continue
		}
		st.Frames++
		st.Markers += len(res.Markers)
		if res.Skipped {
			st.Skipped++
		}

		for _, s := range sinks {
			if err := s.Consume(f, res); err != nil {
				st.SinkErrors++
				monitoring.Logf("[pipeline] sink error on frame %d: %v", f.Seq, err)
			}
		}

		if out == nil {
			continue
		}
		select {
		case out <- res:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}
