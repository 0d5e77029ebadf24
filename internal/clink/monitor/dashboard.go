package monitor

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
)

// FrameSample is the per-frame record kept by a Dashboard.
type FrameSample struct {
	Seq       uint64
	ElapsedMs float64
	Markers   int
	Skipped   bool
	Codes     []int32
	CentersX  []float64
	CentersY  []float64
}

// Dashboard accumulates decode results and renders them as an HTML page.
// It implements pipeline.Sink and is safe for concurrent use.
type Dashboard struct {
	mu      sync.Mutex
	title   string
	limit   int
	samples []FrameSample
}

// NewDashboard creates a dashboard keeping at most limit frames (0 keeps
// every frame).
func NewDashboard(title string, limit int) *Dashboard {
	return &Dashboard{title: title, limit: limit}
}

// Consume records one frame.
func (d *Dashboard) Consume(f pipeline.Frame, res pipeline.FrameResult) error {
	s := FrameSample{
		Seq:       f.Seq,
		ElapsedMs: float64(res.Elapsed.Microseconds()) / 1000,
		Markers:   len(res.Markers),
		Skipped:   res.Skipped,
		Codes:     res.Codes(),
	}
	for _, m := range res.Markers {
		s.CentersX = append(s.CentersX, m.Center.X)
		s.CentersY = append(s.CentersY, m.Center.Y)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, s)
	if d.limit > 0 && len(d.samples) > d.limit {
		d.samples = d.samples[len(d.samples)-d.limit:]
	}
	return nil
}

// Samples returns a copy of the recorded frames, oldest first.
func (d *Dashboard) Samples() []FrameSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FrameSample(nil), d.samples...)
}

// Render writes the dashboard page to w.
func (d *Dashboard) Render(w io.Writer) error {
	samples := d.Samples()

	x := make([]string, len(samples))
	latency := make([]opts.LineData, len(samples))
	counts := make([]opts.BarData, len(samples))
	var centers []opts.ScatterData
	codeHits := make(map[int32]int)
	var totalMs float64
	for i, s := range samples {
		x[i] = strconv.FormatUint(s.Seq, 10)
		latency[i] = opts.LineData{Value: s.ElapsedMs}
		counts[i] = opts.BarData{Value: s.Markers}
		totalMs += s.ElapsedMs
		for j, code := range s.Codes {
			codeHits[code]++
			centers = append(centers, opts.ScatterData{Value: []interface{}{s.CentersX[j], s.CentersY[j], code}})
		}
	}
	var meanMs float64
	if len(samples) > 0 {
		meanMs = totalMs / float64(len(samples))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: d.title, Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Decode latency", Subtitle: fmt.Sprintf("frames=%d mean=%.3fms", len(samples), meanMs)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x).AddSeries("latency", latency)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Markers per frame", Subtitle: fmt.Sprintf("distinct codes=%d", len(codeHits))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("markers", counts)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Marker centers"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)"}),
	)
	scatter.AddSeries("centers", centers, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	page := components.NewPage()
	page.AddCharts(line, bar, scatter)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}
