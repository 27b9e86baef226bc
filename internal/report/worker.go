package report

import (
	"context"
	"fmt"
	"log/slog"

	"classroom-quiz-service/internal/domain"
)

// Notifier surfaces report failures to the room that produced them.
type Notifier interface {
	NotifyError(code, message string)
}

type Metrics interface {
	ReportGenerated()
	ReportFailed(stage string)
}

type WorkerDeps struct {
	Store    Store
	Mailer   Mailer
	Notifier Notifier
	Metrics  Metrics
	Logger   *slog.Logger
}

// Worker turns finished rooms into archived, emailed reports.
type Worker struct {
	store    Store
	mailer   Mailer
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
}

func NewWorker(deps WorkerDeps) *Worker {
	w := &Worker{
		store:    deps.Store,
		mailer:   deps.Mailer,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if w.store == nil {
		w.store = NewMemoryStore()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.mailer == nil {
		w.mailer = LogMailer{Logger: w.logger}
	}
	if w.metrics == nil {
		w.metrics = nopMetrics{}
	}
	return w
}

// Handle builds, emails and archives the report for one finished room.
func (w *Worker) Handle(ctx context.Context, final domain.FinalResults) error {
	r, err := w.Generate(ctx, final)
	if err != nil {
		w.fail(ctx, final.RoomCode, "render", err)
		return err
	}

	if final.TeacherMail != "" {
		if err := w.mailer.Send(ctx, reportEmail(final.TeacherMail, r)); err != nil {
			w.fail(ctx, final.RoomCode, "email", err)
		} else {
			r.EmailedTo = final.TeacherMail
		}
	}

	if err := w.store.Save(ctx, r); err != nil {
		w.fail(ctx, final.RoomCode, "archive", err)
		return err
	}

	w.metrics.ReportGenerated()
	w.logger.InfoContext(ctx, "session report generated",
		slog.String("room", r.RoomCode),
		slog.Int("students", len(r.Analytics.Students)),
		slog.String("emailed_to", r.EmailedTo),
	)
	return nil
}

// Generate renders the analytics, workbook and chart without side effects.
func (w *Worker) Generate(ctx context.Context, final domain.FinalResults) (Report, error) {
	a := BuildAnalytics(final)
	workbook, err := RenderWorkbook(a)
	if err != nil {
		return Report{}, fmt.Errorf("render workbook: %w", err)
	}
	chart, err := RenderTeamChart(a)
	if err != nil {
		// Chart failures are not fatal.
		w.logger.WarnContext(ctx, "skipping report chart",
			slog.String("room", final.RoomCode),
			slog.Any("error", err),
		)
		chart = nil
	}
	return Report{
		RoomCode:    final.RoomCode,
		Analytics:   a,
		Workbook:    workbook,
		Chart:       chart,
		CompletedAt: final.CompletedAt,
	}, nil
}

func (w *Worker) fail(ctx context.Context, code, stage string, err error) {
	w.metrics.ReportFailed(stage)
	w.logger.ErrorContext(ctx, "session report failed",
		slog.String("room", code),
		slog.String("stage", stage),
		slog.Any("error", err),
	)
	if w.notifier != nil {
		w.notifier.NotifyError(code, fmt.Sprintf("report %s failed", stage))
	}
}

func reportEmail(to string, r Report) Email {
	a := r.Analytics
	text := fmt.Sprintf(
		"Room %s finished.\nStudents: %d\nClass average score: %.1f\nClass average accuracy: %.1f%%\n",
		a.RoomCode, len(a.Students), a.ClassAverageScore, a.ClassAverageAccuracy,
	)
	msg := Email{
		To:      to,
		Subject: "Session report " + a.RoomCode,
		Text:    text,
		Attachments: []Attachment{{
			Filename:    "report-" + a.RoomCode + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     r.Workbook,
		}},
	}
	if len(r.Chart) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    "scores-" + a.RoomCode + ".png",
			ContentType: "image/png",
			Content:     r.Chart,
		})
	}
	return msg
}

type nopMetrics struct{}

func (nopMetrics) ReportGenerated()    {}
func (nopMetrics) ReportFailed(string) {}
