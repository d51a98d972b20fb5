package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/common"
	"github.com/AccelByte/extend-chat-moderation/pkg/metrics"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
)

// ErrMalformedRequest is reported for requests that cannot be decoded.
var ErrMalformedRequest = errors.New("malformed evaluation request")

// Evaluator is implemented by *checker.Checker.
type Evaluator interface {
	Evaluate(ctx context.Context, req checker.Request) (*rule.Verdict, error)
}

// Publisher sends a payload on a subject. *NATSClient implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EvaluateRequest is the JSON body of a chatguard.evaluate request.
type EvaluateRequest struct {
	Category string            `json:"category"`
	Sender   checker.SenderRef `json:"sender"`
	Text     string            `json:"text"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// EvaluateResponse is the reply. Verdict is nil only for malformed requests.
type EvaluateResponse struct {
	Verdict *rule.Verdict `json:"verdict,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// EventMessage is published on chatguard.events.<kind>.
type EventMessage struct {
	ID       string     `json:"id"`
	At       time.Time  `json:"at"`
	Player   string     `json:"player"`
	Category string     `json:"category"`
	Event    rule.Event `json:"event"`
}

// CommandMessage is published on chatguard.commands for the host to run.
type CommandMessage struct {
	ID      string       `json:"id"`
	At      time.Time    `json:"at"`
	Player  string       `json:"player"`
	Command rule.Command `json:"command"`
}

// HandlerConfig tunes side-effect publishing.
type HandlerConfig struct {
	// CommandRate caps commands per second across all players; 0 disables the cap.
	CommandRate  float64
	CommandBurst int
	Clock        func() time.Time
}

// EvaluateHandler decodes requests, runs the evaluator and publishes the
// verdict's events and commands.
type EvaluateHandler struct {
	evaluator Evaluator
	publisher Publisher
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewEvaluateHandler creates a handler. publisher may be nil to skip publishing.
func NewEvaluateHandler(evaluator Evaluator, publisher Publisher, cfg HandlerConfig) *EvaluateHandler {
	limit := rate.Inf
	if cfg.CommandRate > 0 {
		limit = rate.Limit(cfg.CommandRate)
	}
	burst := cfg.CommandBurst
	if burst < 1 {
		burst = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &EvaluateHandler{
		evaluator: evaluator,
		publisher: publisher,
		limiter:   rate.NewLimiter(limit, burst),
		now:       cfg.Clock,
	}
}

// Handle evaluates one JSON request and returns the JSON reply. The reply is
// always usable: a degraded evaluation still carries its pass-through verdict
// with the error text, and the error is also returned.
func (h *EvaluateHandler) Handle(ctx context.Context, data []byte) ([]byte, error) {
	scope := common.ChildScopeFromRemoteScope(ctx, "chatguard.evaluate")
	defer scope.Finish()

	var req EvaluateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		scope.TraceError(err)
		scope.Log.Warnf("rejecting request: %v", err)
		return marshal(EvaluateResponse{Error: err.Error()}), err
	}

	category, err := rule.ParseCategory(req.Category)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		scope.TraceError(err)
		scope.Log.Warnf("rejecting request: %v", err)
		return marshal(EvaluateResponse{Error: err.Error()}), err
	}

	scope.SetAttributes("chatguard.category", string(category))
	scope.SetAttributes("chatguard.player", req.Sender.PlayerID)

	verdict, evalErr := h.evaluator.Evaluate(scope.Ctx, checker.Request{
		Category: category,
		Sender:   &req.Sender,
		Text:     req.Text,
		Vars:     req.Vars,
	})

	resp := EvaluateResponse{Verdict: verdict}
	if evalErr != nil {
		scope.TraceError(evalErr)
		resp.Error = evalErr.Error()
	}
	if verdict != nil {
		scope.SetAttributes("chatguard.cancelled", verdict.Cancelled)
		if len(verdict.FailedChecks) > 0 {
			scope.SetAttributes("chatguard.failed_checks", verdict.FailedChecks)
		}
		h.publish(scope, req.Sender.PlayerID, category, verdict)
	}

	return marshal(resp), evalErr
}

// publish sends events and commands fire-and-forget. Failures are counted
// and logged but never affect the verdict.
func (h *EvaluateHandler) publish(scope *common.Scope, player string, category rule.Category, v *rule.Verdict) {
	if h.publisher == nil {
		return
	}
	now := h.now()

	for _, e := range v.Events {
		msg := EventMessage{
			ID:       uuid.NewString(),
			At:       now,
			Player:   player,
			Category: string(category),
			Event:    e,
		}
		h.send(scope, "event", SubjectEvents+"."+string(e.Kind), msg)
	}

	for _, c := range v.Commands {
		if !h.limiter.Allow() {
			metrics.PublishDroppedTotal.WithLabelValues("command").Inc()
			scope.Log.Warnf("command rate exceeded, dropping %q for player %s", c.Line, player)
			continue
		}
		msg := CommandMessage{
			ID:      uuid.NewString(),
			At:      now,
			Player:  player,
			Command: c,
		}
		h.send(scope, "command", SubjectCommands, msg)
	}
}

func (h *EvaluateHandler) send(scope *common.Scope, kind, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err == nil {
		err = h.publisher.Publish(subject, data)
	}
	if err != nil {
		metrics.PublishDroppedTotal.WithLabelValues(kind).Inc()
		scope.Log.Errorf("failed to publish %s on %s: %v", kind, subject, err)
		return
	}
	metrics.PublishedTotal.WithLabelValues(kind).Inc()
}

func marshal(resp EvaluateResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Verdicts hold only plain fields.
		logrus.Errorf("failed to encode response: %v", err)
		return []byte(`{"error":"internal encoding error"}`)
	}
	return data
}
