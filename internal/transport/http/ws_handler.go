package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/auth"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/judge"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// TokenVerifier checks teacher credentials presented on connect.
type TokenVerifier interface {
	Enabled() bool
	VerifyTeacher(token, room string) (auth.Claims, error)
}

// Judge is the remote debate judging collaborator.
type Judge interface {
	Judge(ctx context.Context, transcript []judge.Utterance, resolution string) (judge.Verdict, error)
}

// RateLimit bounds inbound messages per connection. Zero PerSecond disables it.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type Options struct {
	Auth      TokenVerifier
	Judge     Judge
	RateLimit RateLimit
	Logger    *slog.Logger
}

type WSHandler struct {
	service  *app.LiveService
	auth     TokenVerifier
	judge    Judge
	limits   RateLimit
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, opts Options) *WSHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		auth:    opts.Auth,
		judge:   opts.Judge,
		limits:  opts.RateLimit,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

const (
	msgSubmit     = "submit"
	msgLaunchTask = "launchTask"
	msgAdvance    = "advance"
	msgSpawnBonus = "spawnBonus"
	msgClaimBonus = "claimBonus"
	msgConfigure  = "configure"
	msgSnapshot   = "snapshot"
	msgJudge      = "judge"

	msgSubmitResult = "submitResult"
	msgJudgeVerdict = "judgeVerdict"
)

var teacherOnly = map[string]bool{
	msgLaunchTask: true,
	msgAdvance:    true,
	msgSpawnBonus: true,
	msgConfigure:  true,
	msgJudge:      true,
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type submitPayload struct {
	TeamID     string `json:"teamId"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
	ElapsedMs  *int64 `json:"elapsedMs"`
	BasePoints int    `json:"basePoints"`
}

type launchPayload struct {
	Task *domain.TaskDefinition `json:"task"`
}

type bonusPayload struct {
	Points     int   `json:"points"`
	DurationMs int64 `json:"durationMs"`
}

type claimPayload struct {
	BonusID string `json:"bonusId"`
	TeamID  string `json:"teamId"`
}

type configurePayload struct {
	TaskSetID    string                  `json:"taskSetId"`
	Tasks        []domain.TaskDefinition `json:"tasks"`
	Mode         *domain.ScoringMode     `json:"mode"`
	AutoAdvance  *bool                   `json:"autoAdvance"`
	TeacherEmail *string                 `json:"teacherEmail"`
}

type judgePayload struct {
	Transcript []judge.Utterance `json:"transcript"`
	Resolution string            `json:"resolution"`
}

type joinedPayload struct {
	RoomCode    string             `json:"roomCode"`
	PlayerID    string             `json:"playerId,omitempty"`
	TeamID      string             `json:"teamId,omitempty"`
	Role        string             `json:"role"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// client is one websocket connection bound to a room.
type client struct {
	room     string
	playerID string
	teamID   string
	teacher  bool
	send     chan outboundMessage[any]
	limiter  *rate.Limiter
	jobs     sync.WaitGroup
}

func (c *client) reply(typ string, payload any) {
	c.send <- outboundMessage[any]{Type: typ, Payload: payload}
}

func (c *client) fail(message string) {
	c.reply(string(domain.EventError), domain.ErrorMessage{Message: message})
}

// ServeWS upgrades HTTP requests to websockets and wires them into the live room use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := domain.NormalizeRoomCode(q.Get("room"))
	name := strings.TrimSpace(q.Get("name"))
	teacher := q.Get("role") == auth.RoleTeacher
	if code == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	if !teacher && name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	if teacher && h.auth != nil && h.auth.Enabled() {
		if _, err := h.auth.VerifyTeacher(bearerToken(r), code); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, stopJobs := context.WithCancel(r.Context())
	defer stopJobs()
	c := &client{
		room:     code,
		playerID: q.Get("player"),
		teamID:   strings.TrimSpace(q.Get("team")),
		teacher:  teacher,
		send:     make(chan outboundMessage[any], 16),
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}
	if h.limits.PerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.limits.PerSecond), max(h.limits.Burst, 1))
	}

	joined := joinedPayload{RoomCode: code, Role: "student"}
	if teacher {
		joined.Role = auth.RoleTeacher
		snap, err := h.service.Open(ctx, code)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[domain.ErrorMessage]{Type: string(domain.EventError), Payload: domain.ErrorMessage{Message: err.Error()}})
			return
		}
		joined.Leaderboard = snap.Leaderboard
	} else {
		if c.playerID == "" {
			c.playerID = uuid.NewString()
		}
		if c.teamID == "" {
			c.teamID = name
		}
		lb, err := h.service.Join(ctx, code, app.JoinInput{
			PlayerID:    c.playerID,
			DisplayName: name,
			TeamID:      c.teamID,
			TeamName:    c.teamID,
			Color:       q.Get("color"),
		})
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[domain.ErrorMessage]{Type: string(domain.EventError), Payload: domain.ErrorMessage{Message: err.Error()}})
			return
		}
		joined.PlayerID = c.playerID
		joined.TeamID = c.teamID
		joined.Leaderboard = lb
	}

	updates, cancel, err := h.service.Subscribe(ctx, code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[domain.ErrorMessage]{Type: string(domain.EventError), Payload: domain.ErrorMessage{Message: err.Error()}})
		if !teacher {
			h.service.Leave(ctx, code, c.playerID)
		}
		return
	}

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		broken := false
		for msg := range c.send {
			if broken {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.DebugContext(ctx, "ws write error", slog.String("room", code), slog.Any("error", err))
				broken = true
				_ = conn.SetReadDeadline(time.Now())
			}
		}
	}()

	c.reply(string(domain.EventJoined), joined)

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					// Room closed: unblock the reader so the connection winds down.
					_ = conn.SetReadDeadline(time.Now())
					return
				}
				select {
				case c.send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !c.limiter.Allow() {
			c.fail("rate limited")
			continue
		}
		h.dispatch(ctx, c, inbound)
	}

	close(closeSignals)
	<-updatesDone
	stopJobs()
	c.jobs.Wait()
	cancel()
	if teacher {
		h.service.Release(code)
	} else {
		h.service.Leave(context.WithoutCancel(ctx), code, c.playerID)
	}
	close(c.send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, in inboundMessage) {
	if teacherOnly[in.Type] && !c.teacher {
		c.fail(domain.ErrForbidden.Error())
		return
	}

	var err error
	switch in.Type {
	case msgSubmit:
		var p submitPayload
		if !decode(c, in, &p) {
			return
		}
		team := c.teamID
		if c.teacher {
			team = p.TeamID
		}
		var res app.SubmitResult
		res, err = h.service.Submit(ctx, c.room, app.SubmitInput{
			TeamID:     team,
			PlayerID:   c.playerID,
			Answer:     p.Answer,
			Correct:    p.Correct,
			ElapsedMs:  p.ElapsedMs,
			BasePoints: p.BasePoints,
		})
		if err == nil {
			c.reply(msgSubmitResult, res)
		}

	case msgLaunchTask:
		var p launchPayload
		if !decode(c, in, &p) {
			return
		}
		_, err = h.service.LaunchTask(ctx, c.room, p.Task)

	case msgAdvance:
		_, err = h.service.Advance(ctx, c.room)

	case msgSpawnBonus:
		var p bonusPayload
		if !decode(c, in, &p) {
			return
		}
		_, err = h.service.SpawnBonus(ctx, c.room, p.Points, p.DurationMs)

	case msgClaimBonus:
		var p claimPayload
		if !decode(c, in, &p) {
			return
		}
		team := c.teamID
		if c.teacher {
			team = p.TeamID
		}
		_, err = h.service.ClaimBonus(ctx, c.room, p.BonusID, team)

	case msgConfigure:
		var p configurePayload
		if !decode(c, in, &p) {
			return
		}
		_, err = h.service.Configure(ctx, c.room, app.ConfigureInput{
			TaskSetID:    p.TaskSetID,
			Tasks:        p.Tasks,
			Mode:         p.Mode,
			AutoAdvance:  p.AutoAdvance,
			TeacherEmail: p.TeacherEmail,
		})

	case msgSnapshot:
		var snap domain.RoomSnapshot
		snap, err = h.service.Snapshot(c.room)
		if err == nil {
			c.reply(string(domain.EventSnapshot), snap)
		}

	case msgJudge:
		var p judgePayload
		if !decode(c, in, &p) {
			return
		}
		h.startJudging(ctx, c, p)

	default:
		c.fail("unsupported message type")
		return
	}

	if err != nil {
		h.report(ctx, c, in.Type, err)
	}
}

// startJudging runs the remote call off the read loop; the verdict or failure
// goes back to the requesting client only.
func (h *WSHandler) startJudging(ctx context.Context, c *client, p judgePayload) {
	if h.judge == nil {
		c.fail(judge.ErrNotConfigured.Error())
		return
	}
	c.jobs.Add(1)
	go func() {
		defer c.jobs.Done()
		verdict, err := h.judge.Judge(ctx, p.Transcript, p.Resolution)
		if err != nil {
			h.logger.WarnContext(ctx, "judge call failed", slog.String("room", c.room), slog.Any("error", err))
			c.fail("judge unavailable: " + err.Error())
			return
		}
		c.reply(msgJudgeVerdict, verdict)
	}()
}

// report sends err back to the client unless it is a stale or duplicate event.
func (h *WSHandler) report(ctx context.Context, c *client, typ string, err error) {
	if domain.IsNoOp(err) {
		h.logger.DebugContext(ctx, "dropping no-op event",
			slog.String("room", c.room),
			slog.String("type", typ),
			slog.Any("error", err),
		)
		return
	}
	h.logger.DebugContext(ctx, "rejected event",
		slog.String("room", c.room),
		slog.String("type", typ),
		slog.Any("error", err),
	)
	c.fail(err.Error())
}

func decode(c *client, in inboundMessage, dst any) bool {
	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return true
	}
	if err := json.Unmarshal(in.Payload, dst); err != nil {
		c.fail("invalid " + in.Type + " payload")
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
