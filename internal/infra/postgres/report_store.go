package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classroom-quiz-service/internal/report"
	"github.com/uptrace/bun"
)

type sessionReportModel struct {
	bun.BaseModel `bun:"table:session_reports"`

	RoomCode    string          `bun:"room_code,pk"`
	Analytics   json.RawMessage `bun:"analytics,type:jsonb"`
	Workbook    []byte          `bun:"workbook"`
	Chart       []byte          `bun:"chart"`
	EmailedTo   string          `bun:"emailed_to,nullzero"`
	CompletedAt time.Time       `bun:"completed_at"`
}

// ReportStore archives generated session reports in Postgres through bun.
type ReportStore struct {
	db *bun.DB
}

func NewReportStore(db *bun.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) Save(ctx context.Context, r report.Report) error {
	analytics, err := json.Marshal(r.Analytics)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}
	model := &sessionReportModel{
		RoomCode:    r.RoomCode,
		Analytics:   analytics,
		Workbook:    r.Workbook,
		Chart:       r.Chart,
		EmailedTo:   r.EmailedTo,
		CompletedAt: r.CompletedAt,
	}
	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (room_code) DO UPDATE").
		Set("analytics = EXCLUDED.analytics").
		Set("workbook = EXCLUDED.workbook").
		Set("chart = EXCLUDED.chart").
		Set("emailed_to = EXCLUDED.emailed_to").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.RoomCode, err)
	}
	return nil
}

func (s *ReportStore) Get(ctx context.Context, roomCode string) (report.Report, error) {
	var model sessionReportModel
	err := s.db.NewSelect().Model(&model).Where("room_code = ?", roomCode).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, report.ErrReportNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("load report %s: %w", roomCode, err)
	}
	out := report.Report{
		RoomCode:    model.RoomCode,
		Workbook:    model.Workbook,
		Chart:       model.Chart,
		EmailedTo:   model.EmailedTo,
		CompletedAt: model.CompletedAt,
	}
	if err := json.Unmarshal(model.Analytics, &out.Analytics); err != nil {
		return report.Report{}, fmt.Errorf("unmarshal analytics: %w", err)
	}
	return out, nil
}
