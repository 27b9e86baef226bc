package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleFinal() domain.FinalResults {
	avg := 2000.0
	return domain.FinalResults{
		RoomCode: "ABC123",
		Results: []domain.PlayerResult{
			{PlayerID: "p1", TeamID: "red", Attempts: 2, Correct: 2, Accuracy: 1, Engagement: 1, AvgTimeMs: &avg, SpeedScore: 0.7, Grade: 96},
			{PlayerID: "p2", TeamID: "blue", Attempts: 2, Correct: 1, Accuracy: 0.5, Engagement: 1, AvgTimeMs: &avg, SpeedScore: 0.7, Grade: 66},
			{PlayerID: "p3", TeamID: "blue", Attempts: 0, Accuracy: 0, Engagement: 0, Grade: 0},
		},
		Tasks: []domain.TaskSummary{
			{Index: 0, Prompt: "2 + 2?", Submissions: 2, Correct: 2},
			{Index: 1, Prompt: "Capital of France?", Submissions: 3, Correct: 1},
			{Index: 2, Prompt: "Skipped", Submissions: 0, Correct: 0},
		},
		Leaderboard: domain.Leaderboard{
			RoomCode: "ABC123",
			Entries: []domain.LeaderboardEntry{
				{TeamID: "red", Name: "Red", Color: "#e53935", Score: 30},
				{TeamID: "blue", Name: "Blue", Color: "#1e88e5", Score: 10},
			},
		},
		CompletedAt: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildAnalytics(t *testing.T) {
	a := BuildAnalytics(sampleFinal())

	assert.Equal(t, "ABC123", a.RoomCode)
	assert.Equal(t, 54.0, a.ClassAverageScore)
	assert.Equal(t, 50.0, a.ClassAverageAccuracy)
	require.Len(t, a.Tasks, 3)
	assert.Equal(t, 100.0, a.Tasks[0].AvgCorrectPct)
	assert.Equal(t, 33.3, a.Tasks[1].AvgCorrectPct)
	assert.Equal(t, 0.0, a.Tasks[2].AvgCorrectPct)
	assert.Len(t, a.Students, 3)
	assert.Len(t, a.Teams, 2)
}

func TestBuildAnalyticsEmptyRoom(t *testing.T) {
	a := BuildAnalytics(domain.FinalResults{RoomCode: "EMPTY"})
	assert.Zero(t, a.ClassAverageScore)
	assert.Zero(t, a.ClassAverageAccuracy)
	assert.Empty(t, a.Tasks)
}

func TestRenderWorkbook(t *testing.T) {
	data, err := RenderWorkbook(BuildAnalytics(sampleFinal()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetTasks, sheetStudents, sheetTeams}, f.GetSheetList())

	room, err := f.GetCellValue(sheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", room)

	rows, err := f.GetRows(sheetTasks)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Capital of France?", rows[2][1])

	rows, err = f.GetRows(sheetStudents)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "p1", rows[1][0])
	assert.Equal(t, "96", rows[1][8])

	rows, err = f.GetRows(sheetTeams)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Red", rows[1][1])
}

func TestRenderTeamChart(t *testing.T) {
	png, err := RenderTeamChart(BuildAnalytics(sampleFinal()))
	require.NoError(t, err)
	require.True(t, len(png) > 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	none, err := RenderTeamChart(Analytics{RoomCode: "X"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRenderTeamChartAllZero(t *testing.T) {
	final := sampleFinal()
	for i := range final.Leaderboard.Entries {
		final.Leaderboard.Entries[i].Score = 0
	}
	png, err := RenderTeamChart(BuildAnalytics(final))
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestSendgridMailer(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewSendgridMailer("sg-key", "Classroom Quiz", "noreply@example.com").WithHost(srv.URL)
	err := mailer.Send(context.Background(), Email{
		To:      "teacher@example.com",
		Subject: "Session report ABC123",
		Text:    "done",
		Attachments: []Attachment{
			{Filename: "report.xlsx", ContentType: "application/octet-stream", Content: []byte("xlsx")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", gotAuth)

	attachments, ok := gotBody["attachments"].([]any)
	require.True(t, ok, "attachments missing: %v", gotBody)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "report.xlsx", first["filename"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("xlsx")), first["content"])

	personalizations := gotBody["personalizations"].([]any)
	p := personalizations[0].(map[string]any)
	assert.Equal(t, "[Classroom Quiz] Session report ABC123", p["subject"])
}

func TestSendgridMailerRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	mailer := NewSendgridMailer("bad", "Classroom Quiz", "noreply@example.com").WithHost(srv.URL)
	err := mailer.Send(context.Background(), Email{To: "teacher@example.com", Subject: "x", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingNotifier struct {
	codes    []string
	messages []string
}

func (n *recordingNotifier) NotifyError(code, message string) {
	n.codes = append(n.codes, code)
	n.messages = append(n.messages, message)
}

type countingMetrics struct {
	generated int
	failed    []string
}

func (m *countingMetrics) ReportGenerated()          { m.generated++ }
func (m *countingMetrics) ReportFailed(stage string) { m.failed = append(m.failed, stage) }

func TestWorkerEmailsAndArchives(t *testing.T) {
	store := NewMemoryStore()
	mailer := &recordingMailer{}
	metrics := &countingMetrics{}
	w := NewWorker(WorkerDeps{Store: store, Mailer: mailer, Metrics: metrics})

	final := sampleFinal()
	final.TeacherMail = "teacher@example.com"
	require.NoError(t, w.Handle(context.Background(), final))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "teacher@example.com", msg.To)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "report-ABC123.xlsx", msg.Attachments[0].Filename)
	assert.Equal(t, "scores-ABC123.png", msg.Attachments[1].Filename)

	r, err := store.Get(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "teacher@example.com", r.EmailedTo)
	assert.NotEmpty(t, r.Workbook)
	assert.Equal(t, 1, metrics.generated)
	assert.Empty(t, metrics.failed)
}

func TestWorkerWithoutTeacherEmailSkipsMail(t *testing.T) {
	store := NewMemoryStore()
	mailer := &recordingMailer{}
	w := NewWorker(WorkerDeps{Store: store, Mailer: mailer})

	require.NoError(t, w.Handle(context.Background(), sampleFinal()))
	assert.Empty(t, mailer.sent)

	r, err := store.Get(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Empty(t, r.EmailedTo)
}

func TestWorkerMailFailureNotifiesRoom(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	w := NewWorker(WorkerDeps{
		Store:    store,
		Mailer:   &recordingMailer{err: errors.New("smtp down")},
		Notifier: notifier,
		Metrics:  metrics,
	})

	final := sampleFinal()
	final.TeacherMail = "teacher@example.com"
	require.NoError(t, w.Handle(context.Background(), final))

	assert.Equal(t, []string{"ABC123"}, notifier.codes)
	assert.Equal(t, []string{"report email failed"}, notifier.messages)
	assert.Equal(t, []string{"email"}, metrics.failed)

	r, err := store.Get(context.Background(), "ABC123")
	require.NoError(t, err, "report is archived even when mail fails")
	assert.Empty(t, r.EmailedTo)
}

func TestWorkerLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	w := NewWorker(WorkerDeps{
		Mailer: &recordingMailer{err: errors.New("smtp down")},
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	final := sampleFinal()
	final.TeacherMail = "teacher@example.com"
	require.NoError(t, w.Handle(context.Background(), final))

	var msgs []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		assert.Equal(t, "ABC123", line["room"])
		msgs = append(msgs, line["msg"].(string))
	}
	assert.Equal(t, []string{"session report failed", "session report generated"}, msgs)
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
