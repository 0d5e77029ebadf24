package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
	"github.com/banshee-data/clinkcode/internal/clink/l3pairs"
	"github.com/banshee-data/clinkcode/internal/clink/l5codes"
	"github.com/banshee-data/clinkcode/internal/config"
	"github.com/banshee-data/clinkcode/internal/monitoring"
	"github.com/banshee-data/clinkcode/internal/timeutil"
)

// ErrIncompleteFrame is returned for a frame missing its aggregate or its
// pixels.
var ErrIncompleteFrame = errors.New("pipeline: frame has no aggregate or pixels")

// Rejection records why one candidate did not become a marker. Only
// collected when trace_rejections is enabled.
type Rejection struct {
	Candidate l3pairs.Candidate
	Reason    l5codes.Reason
}

// FrameResult is everything decoded from one frame.
type FrameResult struct {
	FrameID  uuid.UUID
	Presence l1grid.Presence
	// Skipped is true when the presence gate ruled out any marker and
	// extraction never ran.
	Skipped       bool
	BoardDetected bool
	TagCount      int
	Candidates    int
	Markers       []l5codes.Marker
	Rejections    []Rejection
	// Duplicates counts accepted markers dropped as repeats of another.
	Duplicates int
	Elapsed    time.Duration
}

// Codes returns the decoded codes in marker order.
func (r FrameResult) Codes() []int32 {
	out := make([]int32, len(r.Markers))
	for i, m := range r.Markers {
		out[i] = m.Code
	}
	return out
}

// Options holds optional dependencies for a FrameDecoder.
type Options struct {
	// Clock times each decode. Defaults to the wall clock.
	Clock timeutil.Clock
}

// FrameDecoder runs the full per-frame decode. It holds only immutable
// configuration, so one FrameDecoder may serve many concurrent frames.
type FrameDecoder struct {
	layout  l1grid.Layout
	matcher l3pairs.Matcher
	codes   *l5codes.Decoder
	dedupe  bool
	trace   bool
	clock   timeutil.Clock
}

// NewFrameDecoder builds a decoder from cfg. A nil cfg uses the defaults.
func NewFrameDecoder(cfg *config.DecoderConfig, opts Options) (*FrameDecoder, error) {
	if cfg == nil {
		cfg = config.DefaultDecoderConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decoder config: %w", err)
	}
	layout := l1grid.LayoutFromConfig(cfg)
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FrameDecoder{
		layout:  layout,
		matcher: l3pairs.NewMatcher(cfg.GetPairingThresholdDivisor()),
		codes:   l5codes.NewDecoder(cfg.GetValidDiagonals()),
		dedupe:  cfg.GetDedupeMarkers(),
		trace:   cfg.GetTraceRejections(),
		clock:   clock,
	}, nil
}

// Layout returns the aggregate layout frames must use.
func (d *FrameDecoder) Layout() l1grid.Layout {
	return d.layout
}

// Codes returns the code decoder, for encoding with the same whitelist.
func (d *FrameDecoder) Codes() *l5codes.Decoder {
	return d.codes
}

// Decode runs extraction, pairing and code reading for one frame. The
// sampler must stay valid for the duration of the call. Decode never
// fails: every rejection simply yields fewer markers.
func (d *FrameDecoder) Decode(agg *l1grid.Aggregate, s framebuf.Sampler) FrameResult {
	start := d.clock.Now()
	res := FrameResult{FrameID: uuid.New(), Presence: agg.Presence()}
	if !res.Presence.Any() {
		res.Skipped = true
		res.Elapsed = d.clock.Since(start)
		return res
	}

	tags := l2tags.Extract(agg)
	res.TagCount = tags.Count()
	if res.Presence.Board {
		res.BoardDetected = true
		for _, t := range l1grid.BoardTypes {
			if len(tags[t]) == 0 {
				res.BoardDetected = false
				break
			}
		}
	}

	cw, ccw := tags[l1grid.Code3PartCW], tags[l1grid.Code3PartCCW]
	if res.Presence.Code && len(cw) >= 2 && len(ccw) >= 2 {
		cands := l3pairs.CrossMatch(d.matcher.Generate(cw), d.matcher.Generate(ccw))
		res.Candidates = len(cands)
		for _, c := range cands {
			m, reason := d.codes.Assemble(c, s)
			if !m.Valid {
				if d.trace {
					res.Rejections = append(res.Rejections, Rejection{Candidate: c, Reason: reason})
					monitoring.Logf("[pipeline] candidate cw=(%d,%d) ccw=(%d,%d) rejected: %s",
						c.CW.A.CellIndex, c.CW.B.CellIndex, c.CCW.A.CellIndex, c.CCW.B.CellIndex, reason)
				}
				continue
			}
			if d.dedupe && isDuplicate(res.Markers, m) {
				res.Duplicates++
				continue
			}
			res.Markers = append(res.Markers, m)
		}
	}

	res.Elapsed = d.clock.Since(start)
	if len(res.Markers) > 0 {
		monitoring.Logf("[pipeline] frame %s: %d markers from %d candidates in %s",
			res.FrameID, len(res.Markers), res.Candidates, res.Elapsed)
	}
	return res
}

// DecodeLocked pins the frame for the whole decode and unpins it on every
// return path.
func (d *FrameDecoder) DecodeLocked(agg *l1grid.Aggregate, px framebuf.Locker) (FrameResult, error) {
	if agg == nil || px == nil {
		return FrameResult{}, ErrIncompleteFrame
	}
	buf, err := px.Lock()
	if err != nil {
		return FrameResult{}, fmt.Errorf("lock frame: %w", err)
	}
	defer px.Unlock()
	return d.Decode(agg, buf), nil
}

// isDuplicate reports whether m repeats an accepted marker: same code with
// centers closer than half the smaller CW diagonal.
func isDuplicate(accepted []l5codes.Marker, m l5codes.Marker) bool {
	for _, a := range accepted {
		if a.Code != m.Code {
			continue
		}
		sep := min(cwSeparation(a), cwSeparation(m))
		if a.Center.Dist(m.Center) < sep/2 {
			return true
		}
	}
	return false
}

func cwSeparation(m l5codes.Marker) float64 {
	return m.TopLeft.DistTo(m.BottomRight)
}
