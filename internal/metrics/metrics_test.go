package metrics

import (
	"testing"

	"classroom-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.SubmissionRecorded(domain.ScoringRanked, true)
	r.SubmissionRecorded(domain.ScoringRanked, true)
	r.SubmissionRecorded(domain.ScoringImmediate, false)
	r.BonusSpawned()
	r.BonusClaimed()
	r.TaskAdvanced(domain.RoomTaskActive)
	r.TaskAdvanced(domain.RoomComplete)
	r.ActiveRooms(3)
	r.ReportGenerated()
	r.ReportFailed("email")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.submissions.WithLabelValues("ranked", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissions.WithLabelValues("immediate", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.bonusesClaimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.advances.WithLabelValues("complete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.activeRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reportFailures.WithLabelValues("email")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 7)
}
