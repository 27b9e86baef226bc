package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/scoring"
	"github.com/google/uuid"
)

var errStaleAdvance = errors.New("room already moved past the task")

// RoomRepository abstracts where live rooms are kept (in-memory, Redis-marked, etc).
// It holds process-scoped state: create it at startup and inject it.
type RoomRepository interface {
	GetOrCreate(code string) *Room
	Get(code string) (*Room, bool)
	Delete(code string)
	DeleteIfEmpty(code string)
	Len() int
}

// TaskSetRepository loads task plans (from cache/backing store).
type TaskSetRepository interface {
	GetTaskSet(ctx context.Context, id string) (domain.TaskSet, error)
}

// SessionRecorder is the persistence collaborator for team session records.
// Records are retained for a fixed window (24h by default).
type SessionRecorder interface {
	CreateTeamSessionRecord(ctx context.Context, rec domain.TeamSessionRecord) error
	MarkOffline(ctx context.Context, roomCode, playerID string) error
}

// CompletionPublisher hands finished sessions to downstream consumers (reports).
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, results domain.FinalResults) error
}

// Metrics records engine activity.
type Metrics interface {
	SubmissionRecorded(mode domain.ScoringMode, correct bool)
	BonusSpawned()
	BonusClaimed()
	TaskAdvanced(state domain.RoomState)
	ActiveRooms(n int)
}

// BonusDefaults apply when a spawn request omits points or duration.
type BonusDefaults struct {
	Points   int
	Duration time.Duration
}

// Dependencies wires LiveService collaborators. Only Rooms is required.
type Dependencies struct {
	Rooms      RoomRepository
	TaskSets   TaskSetRepository
	Recorder   SessionRecorder
	Publisher  CompletionPublisher
	Strategies *scoring.Registry
	Metrics    Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// LiveService drives rooms through their task plans: joins, submissions,
// scoring, bonuses and completion.
type LiveService struct {
	rooms      RoomRepository
	tasksets   TaskSetRepository
	recorder   SessionRecorder
	publisher  CompletionPublisher
	strategies *scoring.Registry
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
	defaults   Settings
	bonus      BonusDefaults
}

func NewLiveService(deps Dependencies, defaults Settings, bonus BonusDefaults) *LiveService {
	s := &LiveService{
		rooms:      deps.Rooms,
		tasksets:   deps.TaskSets,
		recorder:   deps.Recorder,
		publisher:  deps.Publisher,
		strategies: deps.Strategies,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		defaults:   defaults,
		bonus:      bonus,
	}
	if s.strategies == nil {
		s.strategies = scoring.DefaultRegistry()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.defaults.Mode == "" {
		s.defaults.Mode = domain.ScoringRanked
	}
	if s.bonus.Points <= 0 {
		s.bonus.Points = 5
	}
	if s.bonus.Duration <= 0 {
		s.bonus.Duration = 8 * time.Second
	}
	return s
}

func (s *LiveService) room(code string) (*Room, error) {
	room, ok := s.rooms.Get(domain.NormalizeRoomCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Join registers a device in a room, creating the room and team on first use,
// and returns the current leaderboard.
func (s *LiveService) Join(ctx context.Context, code string, in JoinInput) (domain.Leaderboard, error) {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return domain.Leaderboard{}, domain.ErrInvalidRoomCode
	}
	if in.PlayerID == "" {
		in.PlayerID = uuid.NewString()
	}
	if in.TeamID == "" {
		in.TeamID = in.DisplayName
	}
	if in.TeamID == "" {
		return domain.Leaderboard{}, domain.ErrInvalidSubmission
	}

	strategy, err := s.strategies.For(s.defaults.Mode)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	var (
		lb   domain.Leaderboard
		team *domain.Team
	)
	for {
		room := s.rooms.GetOrCreate(code)
		room.init(s.defaults, strategy)
		lb, team = room.join(in)
		// A concurrent Leave may have dropped the room before the join landed;
		// once the participant is online the room can no longer be disposed.
		if current, ok := s.rooms.Get(code); ok && current == room {
			break
		}
	}
	s.metrics.ActiveRooms(s.rooms.Len())
	if s.recorder != nil {
		rec := domain.TeamSessionRecord{
			RoomCode:    code,
			TeamID:      team.ID,
			TeamName:    team.Name,
			PlayerID:    in.PlayerID,
			DisplayName: in.DisplayName,
			JoinedAt:    s.now(),
		}
		if err := s.recorder.CreateTeamSessionRecord(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to record team session",
				slog.String("room", code),
				slog.String("team_id", team.ID),
				slog.Any("error", err),
			)
		}
	}
	s.logger.InfoContext(ctx, "participant joined",
		slog.String("room", code),
		slog.String("player_id", in.PlayerID),
		slog.String("team_id", team.ID),
	)
	return lb, nil
}

// Leave marks a participant offline and drops the room when nothing would be lost.
func (s *LiveService) Leave(ctx context.Context, code, playerID string) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	if !room.leave(playerID) {
		return
	}
	if s.recorder != nil {
		if err := s.recorder.MarkOffline(ctx, room.Code(), playerID); err != nil {
			s.logger.WarnContext(ctx, "failed to mark participant offline",
				slog.String("room", room.Code()),
				slog.String("player_id", playerID),
				slog.Any("error", err),
			)
		}
	}
	s.release(room)
}

// Open creates a room for a teacher device without adding a team and
// returns its current snapshot.
func (s *LiveService) Open(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return domain.RoomSnapshot{}, domain.ErrInvalidRoomCode
	}
	room := s.rooms.GetOrCreate(code)
	strategy, err := s.strategies.For(s.defaults.Mode)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	room.init(s.defaults, strategy)
	s.metrics.ActiveRooms(s.rooms.Len())
	s.logger.InfoContext(ctx, "room opened", slog.String("room", code))
	return room.snapshot(), nil
}

// Release drops a room once nothing in it would be lost. Observers call it
// after unsubscribing.
func (s *LiveService) Release(code string) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	s.release(room)
}

func (s *LiveService) release(room *Room) {
	if room.Disposable() {
		s.rooms.DeleteIfEmpty(room.Code())
		s.metrics.ActiveRooms(s.rooms.Len())
	}
}

// Close tears a room down explicitly and disconnects its subscribers.
func (s *LiveService) Close(code string) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	s.rooms.Delete(room.Code())
	room.Shutdown()
	s.metrics.ActiveRooms(s.rooms.Len())
}

// Subscribe returns a channel of room events, primed with a snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveService) Subscribe(_ context.Context, code string) (<-chan domain.Event, func(), error) {
	room, err := s.room(code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// ConfigureInput changes a room's settings and, optionally, its task plan.
// Nil fields keep their current value.
type ConfigureInput struct {
	TaskSetID    string
	Tasks        []domain.TaskDefinition
	Mode         *domain.ScoringMode
	AutoAdvance  *bool
	TeacherEmail *string
}

// Configure updates room settings and loads a task plan while the room is in
// the lobby. The scoring mode cannot change while a task is running.
func (s *LiveService) Configure(ctx context.Context, code string, in ConfigureInput) (domain.RoomSnapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	settings := room.currentSettings()
	if in.Mode != nil {
		settings.Mode = *in.Mode
	}
	if in.AutoAdvance != nil {
		settings.AutoAdvance = *in.AutoAdvance
	}
	if in.TeacherEmail != nil {
		settings.TeacherEmail = *in.TeacherEmail
	}
	strategy, err := s.strategies.For(settings.Mode)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	var plan *domain.TaskSet
	if in.TaskSetID != "" || len(in.Tasks) > 0 {
		ts := domain.TaskSet{ID: in.TaskSetID, Tasks: in.Tasks}
		if in.TaskSetID != "" && len(in.Tasks) == 0 {
			if s.tasksets == nil {
				return domain.RoomSnapshot{}, domain.ErrTaskSetNotFound
			}
			ts, err = s.tasksets.GetTaskSet(ctx, in.TaskSetID)
			if err != nil {
				return domain.RoomSnapshot{}, err
			}
		}
		if ts.ID == "" {
			ts.ID = "inline"
		}
		if err := domain.ValidateTaskSet(ts); err != nil {
			return domain.RoomSnapshot{}, err
		}
		plan = &ts
	}

	snap, err := room.configure(settings, strategy, plan)
	if err != nil {
		return snap, err
	}
	if plan != nil {
		s.logger.InfoContext(ctx, "task plan loaded",
			slog.String("room", room.Code()),
			slog.String("task_set_id", plan.ID),
			slog.Int("tasks", len(plan.Tasks)),
		)
	}
	return snap, nil
}

// LaunchTask advances a room with a task plan. Without a plan the task is
// broadcast as-is and scoring state is left alone.
func (s *LiveService) LaunchTask(ctx context.Context, code string, task *domain.TaskDefinition) (AdvanceResult, error) {
	room, err := s.room(code)
	if err != nil {
		return AdvanceResult{}, err
	}
	if room.hasPlan() {
		return s.advance(ctx, room, nil)
	}
	if task == nil {
		return AdvanceResult{}, domain.ErrNoTaskPlan
	}
	snap := room.passthrough(*task)
	return AdvanceResult{State: domain.RoomLobby, Task: &snap}, nil
}

// Advance closes the current round (if any) and shows the next task, or
// completes the session when the plan is exhausted.
func (s *LiveService) Advance(ctx context.Context, code string) (AdvanceResult, error) {
	room, err := s.room(code)
	if err != nil {
		return AdvanceResult{}, err
	}
	return s.advance(ctx, room, nil)
}

func (s *LiveService) advance(ctx context.Context, room *Room, expected *int) (AdvanceResult, error) {
	res, err := room.advance(expected)
	if err != nil {
		return res, err
	}
	s.metrics.TaskAdvanced(res.State)

	if res.Final == nil {
		s.logger.InfoContext(ctx, "task started",
			slog.String("room", room.Code()),
			slog.Int("task_index", res.Task.Index),
		)
		return res, nil
	}

	s.logger.InfoContext(ctx, "task set complete",
		slog.String("room", room.Code()),
		slog.Int("players", len(res.Final.Results)),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishCompletion(ctx, *res.Final); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish completion",
				slog.String("room", room.Code()),
				slog.Any("error", err),
			)
			room.notify(domain.Event{Type: domain.EventError, Payload: domain.ErrorMessage{Message: "report generation unavailable"}})
		}
	}
	return res, nil
}

// Submit records a team's answer on the current task and applies the room's
// scoring strategy. Rooms with auto-advance move on once every team answered.
func (s *LiveService) Submit(ctx context.Context, code string, in SubmitInput) (SubmitResult, error) {
	room, err := s.room(code)
	if err != nil {
		return SubmitResult{}, err
	}
	res, err := room.submit(in)
	if err != nil {
		return res, err
	}
	s.metrics.SubmissionRecorded(room.currentSettings().Mode, res.Submission.IsCorrect)

	if res.autoAdvance {
		expected := res.taskIndex
		if _, err := s.advance(ctx, room, &expected); err != nil && !errors.Is(err, errStaleAdvance) {
			s.logger.WarnContext(ctx, "auto-advance failed",
				slog.String("room", room.Code()),
				slog.Any("error", err),
			)
		}
	}
	return res, nil
}

// AllSubmitted reports whether every team has answered the current task.
func (s *LiveService) AllSubmitted(code string) bool {
	room, err := s.room(code)
	if err != nil {
		return false
	}
	return room.allSubmitted()
}

// SpawnBonus announces a claimable bonus. Zero points or duration use the defaults.
func (s *LiveService) SpawnBonus(ctx context.Context, code string, points int, durationMs int64) (domain.Bonus, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Bonus{}, err
	}
	if points <= 0 {
		points = s.bonus.Points
	}
	duration := time.Duration(durationMs) * time.Millisecond
	if duration <= 0 {
		duration = s.bonus.Duration
	}
	bonus, err := room.spawnBonus(uuid.NewString(), points, duration)
	if err != nil {
		return bonus, err
	}
	s.metrics.BonusSpawned()
	s.logger.InfoContext(ctx, "bonus spawned",
		slog.String("room", room.Code()),
		slog.String("bonus_id", bonus.ID),
		slog.Int("points", bonus.Points),
	)
	return bonus, nil
}

// ClaimBonus awards a live bonus to a team. Unknown, claimed or expired
// bonuses award nothing.
func (s *LiveService) ClaimBonus(ctx context.Context, code, bonusID, teamID string) (domain.BonusClaim, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.BonusClaim{}, err
	}
	claim, err := room.claimBonus(bonusID, teamID)
	if err != nil {
		return claim, err
	}
	s.metrics.BonusClaimed()
	return claim, nil
}

// Snapshot returns the room view used for reconnecting clients.
func (s *LiveService) Snapshot(code string) (domain.RoomSnapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.snapshot(), nil
}

// FinalResults returns the results of a completed room.
func (s *LiveService) FinalResults(code string) (domain.FinalResults, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.FinalResults{}, err
	}
	res, ok := room.finalResults()
	if !ok {
		return domain.FinalResults{}, fmt.Errorf("room %s: %w", room.Code(), domain.ErrResultsPending)
	}
	return res, nil
}

// NotifyError tells every device in a room that a collaborator failed.
func (s *LiveService) NotifyError(code, message string) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	room.notify(domain.Event{Type: domain.EventError, Payload: domain.ErrorMessage{Message: message}})
}

type nopMetrics struct{}

func (nopMetrics) SubmissionRecorded(domain.ScoringMode, bool) {}
func (nopMetrics) BonusSpawned()                               {}
func (nopMetrics) BonusClaimed()                               {}
func (nopMetrics) TaskAdvanced(domain.RoomState)               {}
func (nopMetrics) ActiveRooms(int)                             {}
