package metrics

import (
	"strconv"

	"classroom-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "classroom_quiz"

// Recorder exports live-session and report counters to Prometheus.
// It satisfies both app.Metrics and report.Metrics.
type Recorder struct {
	submissions    *prometheus.CounterVec
	bonusesSpawned prometheus.Counter
	bonusesClaimed prometheus.Counter
	advances       *prometheus.CounterVec
	activeRooms    prometheus.Gauge
	reports        prometheus.Counter
	reportFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Task submissions by scoring mode and correctness.",
		}, []string{"mode", "correct"}),
		bonusesSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonuses_spawned_total",
			Help:      "Bonuses spawned by teachers.",
		}),
		bonusesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonuses_claimed_total",
			Help:      "Bonuses successfully claimed by teams.",
		}),
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_advances_total",
			Help:      "Task progressions by resulting room state.",
		}, []string{"state"}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently held in memory.",
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Session reports archived.",
		}),
		reportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Session report failures by stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		r.submissions,
		r.bonusesSpawned,
		r.bonusesClaimed,
		r.advances,
		r.activeRooms,
		r.reports,
		r.reportFailures,
	)
	return r
}

func (r *Recorder) SubmissionRecorded(mode domain.ScoringMode, correct bool) {
	r.submissions.WithLabelValues(string(mode), strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) BonusSpawned() { r.bonusesSpawned.Inc() }

func (r *Recorder) BonusClaimed() { r.bonusesClaimed.Inc() }

func (r *Recorder) TaskAdvanced(state domain.RoomState) {
	r.advances.WithLabelValues(string(state)).Inc()
}

func (r *Recorder) ActiveRooms(n int) { r.activeRooms.Set(float64(n)) }

func (r *Recorder) ReportGenerated() { r.reports.Inc() }

func (r *Recorder) ReportFailed(stage string) {
	r.reportFailures.WithLabelValues(stage).Inc()
}
