package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/scoring"
)

// teamPalette colors teams that join without one, in join order.
var teamPalette = []string{"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4", "#46f0f0", "#f032e6", "#bcf60c"}

const subscriberBuffer = 32

// Settings are the per-room knobs a teacher can change.
type Settings struct {
	Mode         domain.ScoringMode
	AutoAdvance  bool
	TeacherEmail string
}

// Room is the in-memory state of one live session. All mutation happens under
// mu and never waits on I/O, so every inbound event is applied atomically.
type Room struct {
	code      string
	createdAt time.Time
	now       func() time.Time

	mu           sync.Mutex
	initialized  bool
	settings     Settings
	strategy     scoring.Strategy
	state        domain.RoomState
	teams        map[string]*domain.Team
	roster       []string
	participants map[string]*domain.Participant
	taskSetID    string
	plan         []domain.TaskDefinition
	index        int
	current      *domain.TaskSnapshot
	log          []domain.Submission
	bonuses      map[string]*domain.Bonus
	finished     *domain.FinalResults
	subscribers  map[chan domain.Event]struct{}
}

// NewRoom is exported for infrastructure layers that create rooms.
func NewRoom(code string) *Room {
	return NewRoomWithClock(code, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code string, now func() time.Time) *Room {
	return &Room{
		code:         domain.NormalizeRoomCode(code),
		createdAt:    now(),
		now:          now,
		state:        domain.RoomLobby,
		strategy:     scoring.Ranked{Config: scoring.DefaultConfig()},
		settings:     Settings{Mode: domain.ScoringRanked},
		teams:        make(map[string]*domain.Team),
		participants: make(map[string]*domain.Participant),
		index:        -1,
		bonuses:      make(map[string]*domain.Bonus),
		subscribers:  make(map[chan domain.Event]struct{}),
	}
}

// Code returns the normalized room code.
func (r *Room) Code() string { return r.code }

// Disposable reports whether dropping the room loses nothing: nobody is online
// or watching, and the room is either an untouched lobby without a plan or
// already completed.
func (r *Room) Disposable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subscribers) > 0 {
		return false
	}
	for _, p := range r.participants {
		if p.Online {
			return false
		}
	}
	return r.state == domain.RoomComplete ||
		(r.state == domain.RoomLobby && len(r.log) == 0 && len(r.plan) == 0)
}

// Shutdown closes every subscriber channel.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Room) init(defaults Settings, strategy scoring.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}
	r.initialized = true
	r.settings = defaults
	r.strategy = strategy
}

// JoinInput describes a device joining a room.
type JoinInput struct {
	PlayerID    string
	DisplayName string
	TeamID      string
	TeamName    string
	Color       string
}

func (r *Room) join(in JoinInput) (domain.Leaderboard, *domain.Team) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	team := r.ensureTeamLocked(in.TeamID, in.TeamName, in.Color)
	if p, ok := r.participants[in.PlayerID]; ok {
		p.DisplayName = in.DisplayName
		p.TeamID = team.ID
		p.Online = true
	} else {
		r.participants[in.PlayerID] = &domain.Participant{
			PlayerID:    in.PlayerID,
			DisplayName: in.DisplayName,
			TeamID:      team.ID,
			Online:      true,
			JoinedAt:    now,
		}
	}
	lb := r.leaderboardLocked()
	r.emitLocked(domain.Event{Type: domain.EventLeaderboardUpdate, Payload: lb})
	copied := *team
	return lb, &copied
}

func (r *Room) leave(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[playerID]
	if !ok {
		return false
	}
	p.Online = false
	return true
}

// ensureTeamLocked creates teams lazily; the roster keeps join order.
func (r *Room) ensureTeamLocked(teamID, name, color string) *domain.Team {
	if team, ok := r.teams[teamID]; ok {
		if name != "" {
			team.Name = name
		}
		if color != "" {
			team.Color = color
		}
		return team
	}
	if name == "" {
		name = teamID
	}
	if color == "" {
		color = teamPalette[len(r.roster)%len(teamPalette)]
	}
	team := &domain.Team{ID: teamID, Name: name, Color: color, LastUpdated: r.now()}
	r.teams[teamID] = team
	r.roster = append(r.roster, teamID)
	return team
}

// configure applies settings and, when plan is non-nil, a new task plan as one
// step. The plan can only change in the lobby and the scoring mode only while
// no task is running, so a round is never scored by two strategies.
func (r *Room) configure(settings Settings, strategy scoring.Strategy, plan *domain.TaskSet) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan != nil && r.state != domain.RoomLobby {
		return domain.RoomSnapshot{}, domain.ErrPlanLocked
	}
	if strategy.Mode() != r.strategy.Mode() && r.current != nil {
		return domain.RoomSnapshot{}, domain.ErrModeLocked
	}
	if plan != nil {
		r.taskSetID = plan.ID
		r.plan = append([]domain.TaskDefinition(nil), plan.Tasks...)
	}
	r.settings = settings
	r.strategy = strategy
	snap := r.snapshotLocked()
	r.emitLocked(domain.Event{Type: domain.EventSnapshot, Payload: snap})
	return snap, nil
}

func (r *Room) currentSettings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *Room) hasPlan() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plan) > 0
}

// AdvanceResult describes what one advance did.
type AdvanceResult struct {
	State domain.RoomState
	Task  *domain.TaskSnapshot
	Round *domain.RoundScore
	Final *domain.FinalResults
}

// advance moves to the next task. When expected is non-nil the room only
// advances if it is still on that task index, so racing auto-advances collapse
// into one.
func (r *Room) advance(expected *int) (AdvanceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == domain.RoomComplete {
		return AdvanceResult{State: r.state}, domain.ErrSessionComplete
	}
	if len(r.plan) == 0 {
		return AdvanceResult{State: r.state}, domain.ErrNoTaskPlan
	}
	if expected != nil && *expected != r.index {
		return AdvanceResult{State: r.state}, errStaleAdvance
	}

	var res AdvanceResult
	if r.current != nil {
		res.Round = r.closeRoundLocked()
	}

	r.index++
	if r.index >= len(r.plan) {
		r.state = domain.RoomComplete
		r.current = nil
		final := r.finalResultsLocked()
		r.finished = &final
		res.State = r.state
		res.Final = &final
		r.emitLocked(domain.Event{Type: domain.EventTasksetComplete, Payload: final})
		return res, nil
	}

	def := r.plan[r.index]
	task := &domain.TaskSnapshot{
		Index:     r.index,
		Total:     len(r.plan),
		Prompt:    strings.TrimSpace(def.Prompt),
		Options:   append([]string(nil), def.Options...),
		Type:      def.Type,
		Points:    def.Points,
		StartedAt: r.now(),
	}
	if def.CorrectAnswer != nil {
		answer := strings.TrimSpace(*def.CorrectAnswer)
		task.CorrectAnswer = &answer
	}
	task.ManualGrading = task.CorrectAnswer == nil
	if task.Type == "" {
		task.Type = domain.TaskTypeShortAnswer
	}
	if task.Points <= 0 {
		task.Points = domain.DefaultTaskPoints
	}
	r.current = task
	r.state = domain.RoomTaskActive

	view := *task
	res.State = r.state
	res.Task = &view
	r.emitLocked(domain.Event{Type: domain.EventRoundStarted, Payload: view})
	r.emitLocked(domain.Event{Type: domain.EventTaskUpdate, Payload: view})
	return res, nil
}

// closeRoundLocked applies the strategy's round-close deltas for the current task.
func (r *Room) closeRoundLocked() *domain.RoundScore {
	entries := make([]scoring.Entry, 0, len(r.current.Submissions))
	for _, sub := range r.current.Submissions {
		entries = append(entries, scoring.Entry{TeamID: sub.TeamID, IsCorrect: sub.IsCorrect, ResponseTimeMs: sub.ResponseTimeMs})
	}
	deltas := r.strategy.OnRoundClose(append([]string(nil), r.roster...), entries)

	now := r.now()
	for teamID, delta := range deltas {
		if delta == 0 {
			continue
		}
		team := r.ensureTeamLocked(teamID, "", "")
		team.Score += delta
		team.LastUpdated = now
	}
	for i := range r.current.Submissions {
		sub := &r.current.Submissions[i]
		sub.Awarded += deltas[sub.TeamID]
		r.replaceLogLocked(*sub)
	}

	round := &domain.RoundScore{TaskIndex: r.current.Index, Deltas: deltas}
	r.emitLocked(domain.Event{Type: domain.EventRoundScored, Payload: *round})
	r.emitLocked(domain.Event{Type: domain.EventLeaderboardUpdate, Payload: r.leaderboardLocked()})
	return round
}

// SubmitInput is a team's answer as received from a client.
type SubmitInput struct {
	TeamID     string
	PlayerID   string
	Answer     string
	Correct    bool
	ElapsedMs  *int64
	BasePoints int
}

// SubmitResult is returned to the submitting client.
type SubmitResult struct {
	Submission   domain.Submission  `json:"submission"`
	Awarded      int                `json:"awarded"`
	TeamScore    int                `json:"teamScore"`
	Replaced     bool               `json:"replaced"`
	AllSubmitted bool               `json:"allSubmitted"`
	Leaderboard  domain.Leaderboard `json:"-"`
	taskIndex    int
	autoAdvance  bool
}

func (r *Room) submit(in SubmitInput) (SubmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(in.TeamID) == "" {
		return SubmitResult{}, domain.ErrInvalidSubmission
	}
	if r.state == domain.RoomComplete {
		return SubmitResult{}, domain.ErrSessionComplete
	}
	if r.current == nil {
		if len(r.plan) == 0 && r.strategy.Mode() == domain.ScoringImmediate {
			return r.tickLocked(in), nil
		}
		return SubmitResult{}, domain.ErrNoActiveTask
	}

	now := r.now()
	sub := domain.Submission{
		TeamID:      in.TeamID,
		PlayerID:    in.PlayerID,
		TaskIndex:   r.current.Index,
		Answer:      strings.TrimSpace(in.Answer),
		IsCorrect:   in.Correct,
		SubmittedAt: now,
	}
	if r.current.CorrectAnswer != nil && sub.Answer != "" {
		sub.IsCorrect = strings.EqualFold(sub.Answer, *r.current.CorrectAnswer)
	}
	if in.ElapsedMs != nil && *in.ElapsedMs >= 0 {
		sub.ResponseTimeMs = *in.ElapsedMs
	} else {
		sub.ResponseTimeMs = now.Sub(r.current.StartedAt).Milliseconds()
	}

	basePoints := in.BasePoints
	if basePoints <= 0 {
		basePoints = r.current.Points
	}
	sub.Awarded = r.strategy.OnSubmit(scoring.Entry{TeamID: sub.TeamID, IsCorrect: sub.IsCorrect, ResponseTimeMs: sub.ResponseTimeMs}, basePoints)

	team := r.ensureTeamLocked(in.TeamID, "", "")
	res := SubmitResult{taskIndex: r.current.Index}
	previous := 0
	for i := range r.current.Submissions {
		if r.current.Submissions[i].TeamID == sub.TeamID {
			previous = r.current.Submissions[i].Awarded
			r.current.Submissions[i] = sub
			res.Replaced = true
			break
		}
	}
	if res.Replaced {
		r.replaceLogLocked(sub)
	} else {
		r.current.Submissions = append(r.current.Submissions, sub)
		r.log = append(r.log, sub)
	}
	r.current.Submitted = len(r.current.Submissions)

	team.Score += sub.Awarded - previous
	team.LastUpdated = now

	res.Submission = sub
	res.Awarded = sub.Awarded
	res.TeamScore = team.Score
	res.AllSubmitted = r.allSubmittedLocked()
	res.autoAdvance = r.settings.AutoAdvance && res.AllSubmitted
	res.Leaderboard = r.leaderboardLocked()
	r.emitLocked(domain.Event{Type: domain.EventLeaderboardUpdate, Payload: res.Leaderboard})
	return res, nil
}

// tickLocked scores a submission straight onto the team for rooms running the
// live ticker without a task plan.
func (r *Room) tickLocked(in SubmitInput) SubmitResult {
	var elapsed int64 = -1
	if in.ElapsedMs != nil {
		elapsed = *in.ElapsedMs
	}
	sub := domain.Submission{
		TeamID:         in.TeamID,
		PlayerID:       in.PlayerID,
		TaskIndex:      -1,
		IsCorrect:      in.Correct,
		ResponseTimeMs: elapsed,
		SubmittedAt:    r.now(),
	}
	sub.Awarded = r.strategy.OnSubmit(scoring.Entry{TeamID: sub.TeamID, IsCorrect: sub.IsCorrect, ResponseTimeMs: elapsed}, in.BasePoints)

	team := r.ensureTeamLocked(in.TeamID, "", "")
	team.Score += sub.Awarded
	team.LastUpdated = sub.SubmittedAt

	lb := r.leaderboardLocked()
	r.emitLocked(domain.Event{Type: domain.EventLeaderboardUpdate, Payload: lb})
	return SubmitResult{
		Submission:  sub,
		Awarded:     sub.Awarded,
		TeamScore:   team.Score,
		Leaderboard: lb,
		taskIndex:   -1,
	}
}

func (r *Room) replaceLogLocked(sub domain.Submission) {
	for i := range r.log {
		if r.log[i].TaskIndex == sub.TaskIndex && r.log[i].TeamID == sub.TeamID {
			r.log[i] = sub
			return
		}
	}
	r.log = append(r.log, sub)
}

func (r *Room) allSubmitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allSubmittedLocked()
}

func (r *Room) allSubmittedLocked() bool {
	if r.current == nil || len(r.roster) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(r.current.Submissions))
	for _, sub := range r.current.Submissions {
		seen[sub.TeamID] = struct{}{}
	}
	for _, teamID := range r.roster {
		if _, ok := seen[teamID]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) spawnBonus(id string, points int, duration time.Duration) (domain.Bonus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomComplete {
		return domain.Bonus{}, domain.ErrSessionComplete
	}
	bonus := domain.Bonus{
		ID:         id,
		Points:     points,
		DurationMs: duration.Milliseconds(),
		ExpiresAt:  r.now().Add(duration),
	}
	r.bonuses[id] = &bonus
	r.emitLocked(domain.Event{Type: domain.EventBonus, Payload: bonus})
	return bonus, nil
}

func (r *Room) claimBonus(bonusID, teamID string) (domain.BonusClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bonus, ok := r.bonuses[bonusID]
	if !ok {
		return domain.BonusClaim{}, domain.ErrBonusNotFound
	}
	if strings.TrimSpace(teamID) == "" {
		return domain.BonusClaim{}, domain.ErrInvalidSubmission
	}
	delete(r.bonuses, bonusID)

	now := r.now()
	if now.After(bonus.ExpiresAt) {
		return domain.BonusClaim{}, domain.ErrBonusExpired
	}

	team := r.ensureTeamLocked(teamID, "", "")
	team.Score += bonus.Points
	team.LastUpdated = now

	claim := domain.BonusClaim{BonusID: bonusID, TeamID: teamID, Points: bonus.Points}
	r.emitLocked(domain.Event{Type: domain.EventBonusClaimed, Payload: claim})
	r.emitLocked(domain.Event{Type: domain.EventLeaderboardUpdate, Payload: r.leaderboardLocked()})
	return claim, nil
}

// passthrough broadcasts a task without touching progression or scoring.
func (r *Room) passthrough(def domain.TaskDefinition) domain.TaskSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := domain.TaskSnapshot{
		Index:         -1,
		Prompt:        strings.TrimSpace(def.Prompt),
		ManualGrading: def.CorrectAnswer == nil,
		Options:       append([]string(nil), def.Options...),
		Type:          def.Type,
		Points:        def.Points,
		StartedAt:     r.now(),
	}
	if task.Type == "" {
		task.Type = domain.TaskTypeShortAnswer
	}
	if task.Points <= 0 {
		task.Points = domain.DefaultTaskPoints
	}
	r.emitLocked(domain.Event{Type: domain.EventTaskUpdate, Payload: task})
	return task
}

func (r *Room) notify(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(ev)
}

func (r *Room) snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	snap := domain.RoomSnapshot{
		RoomCode:    r.code,
		State:       r.state,
		TaskIndex:   r.index,
		TaskCount:   len(r.plan),
		Mode:        r.strategy.Mode(),
		Bonuses:     make([]domain.Bonus, 0, len(r.bonuses)),
		Leaderboard: r.leaderboardLocked(),
	}
	if r.current != nil {
		view := *r.current
		snap.CurrentTask = &view
	}
	for _, b := range r.bonuses {
		snap.Bonuses = append(snap.Bonuses, *b)
	}
	sort.Slice(snap.Bonuses, func(i, j int) bool {
		return snap.Bonuses[i].ExpiresAt.Before(snap.Bonuses[j].ExpiresAt)
	})
	return snap
}

func (r *Room) finalResults() (domain.FinalResults, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		return domain.FinalResults{}, false
	}
	return *r.finished, true
}

func (r *Room) finalResultsLocked() domain.FinalResults {
	tasks := make([]domain.TaskSummary, len(r.plan))
	for i, def := range r.plan {
		tasks[i] = domain.TaskSummary{Index: i, Prompt: strings.TrimSpace(def.Prompt)}
	}
	for _, sub := range r.log {
		if sub.TaskIndex < 0 || sub.TaskIndex >= len(tasks) {
			continue
		}
		tasks[sub.TaskIndex].Submissions++
		if sub.IsCorrect {
			tasks[sub.TaskIndex].Correct++
		}
	}
	return domain.FinalResults{
		RoomCode:    r.code,
		Results:     scoring.PlayerResults(r.log, len(r.plan)),
		Tasks:       tasks,
		Leaderboard: r.leaderboardLocked(),
		TeacherMail: r.settings.TeacherEmail,
		CompletedAt: r.now(),
	}
}

func (r *Room) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- domain.Event{Type: domain.EventSnapshot, Payload: r.snapshotLocked()}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) emitLocked(ev domain.Event) {
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event rather than block the room.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (r *Room) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(r.teams))
	scores := make(map[string]int, len(r.teams))
	for _, team := range r.teams {
		entries = append(entries, domain.LeaderboardEntry{
			TeamID: team.ID,
			Name:   team.Name,
			Color:  team.Color,
			Score:  team.Score,
		})
		scores[team.Name] = team.Score
	}

	// Score desc, then whoever reached the score first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti := r.teams[entries[i].TeamID]
		tj := r.teams[entries[j].TeamID]
		if !ti.LastUpdated.Equal(tj.LastUpdated) {
			return ti.LastUpdated.Before(tj.LastUpdated)
		}
		return entries[i].Name < entries[j].Name
	})

	return domain.Leaderboard{
		RoomCode:  r.code,
		Entries:   entries,
		Scores:    scores,
		UpdatedAt: r.now(),
	}
}
