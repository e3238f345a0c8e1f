package shipper

import (
	"bytes"
	"fmt"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/connector"
)

// Exported gauge names.
const (
	metricSprintAttainment = "sprintpulse_sprint_attainment_percent"
	metricSprintCommitted  = "sprintpulse_sprint_committed_points"
	metricSprintDelivered  = "sprintpulse_sprint_delivered_points"
	metricBoardAverage     = "sprintpulse_board_average_attainment_percent"
	metricActiveSprintPts  = "sprintpulse_active_sprint_points"
	metricCoveragePercent  = "sprintpulse_coverage_percent"
	metricLastRunTimestamp = "sprintpulse_last_run_timestamp_seconds"
)

var help = map[string]string{
	metricSprintAttainment: "Delivered points as a percentage of committed points for a closed sprint.",
	metricSprintCommitted:  "Story points committed at the start of a closed sprint.",
	metricSprintDelivered:  "Story points completed in a closed sprint.",
	metricBoardAverage:     "Mean attainment over closed sprints with a positive commitment.",
	metricActiveSprintPts:  "Story points currently committed to an active sprint.",
	metricCoveragePercent:  "Line coverage of the branch head commit.",
	metricLastRunTimestamp: "Unix time the report run started.",
}

// familySet accumulates gauges by metric name.
type familySet map[string]*dto.MetricFamily

func (fs familySet) gauge(name string, value float64, labels ...string) {
	mf, ok := fs[name]
	if !ok {
		mf = &dto.MetricFamily{
			Name: proto.String(name),
			Help: proto.String(help[name]),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		fs[name] = mf
	}
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(value)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	mf.Metric = append(mf.Metric, m)
}

func (fs familySet) sorted() []*dto.MetricFamily {
	names := make([]string, 0, len(fs))
	for n := range fs {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*dto.MetricFamily, 0, len(names))
	for _, n := range names {
		out = append(out, fs[n])
	}
	return out
}

// VelocityFamilies builds the velocity gauges for reports.
func VelocityFamilies(reports []*compute.BoardReport) []*dto.MetricFamily {
	fs := familySet{}
	for _, r := range reports {
		board := r.Board.Name
		for _, v := range r.ClosedVelocities() {
			sprint := v.Sprint.Name
			fs.gauge(metricSprintAttainment, v.Velocity.Attainment.Value, "board", board, "sprint", sprint)
			fs.gauge(metricSprintCommitted, v.Velocity.Estimated.Value, "board", board, "sprint", sprint)
			fs.gauge(metricSprintDelivered, v.Velocity.Completed.Value, "board", board, "sprint", sprint)
		}
		if avg := r.Metrics.AverageAttainment; avg != nil {
			fs.gauge(metricBoardAverage, *avg, "board", board)
		}
		for _, a := range r.Active {
			fs.gauge(metricActiveSprintPts, a.Points, "board", board, "sprint", a.Sprint.Name)
		}
		if _, ok := fs[metricLastRunTimestamp]; !ok && !r.GeneratedAt.IsZero() {
			fs.gauge(metricLastRunTimestamp, float64(r.GeneratedAt.Unix()))
		}
	}
	return fs.sorted()
}

// CoverageFamilies builds the coverage gauge for results.
func CoverageFamilies(results []*connector.Coverage) []*dto.MetricFamily {
	fs := familySet{}
	for _, c := range results {
		fs.gauge(metricCoveragePercent, c.Percent, "repo", c.Repo, "branch", c.Branch)
	}
	return fs.sorted()
}

// WriteTextfile renders families in the Prometheus text format and writes
// them atomically, as the node exporter textfile collector expects.
func WriteTextfile(path string, families []*dto.MetricFamily) error {
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("shipper: encode %s: %w", mf.GetName(), err)
		}
	}
	return WriteFileAtomic(path, buf.Bytes())
}
