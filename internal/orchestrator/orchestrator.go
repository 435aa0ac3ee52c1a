package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opencivic/civbot/internal/citydata"
	"github.com/opencivic/civbot/internal/classifier"
	"github.com/opencivic/civbot/internal/delivery"
	"github.com/opencivic/civbot/internal/orchestrator/flows"
	"github.com/opencivic/civbot/internal/orchestrator/sessions"
	"github.com/opencivic/civbot/internal/orchestrator/turnlog"
)

// Options configure an Orchestrator beyond its required collaborators.
type Options struct {
	// Thresholds are the confidence cut-offs the state machine routes by.
	Thresholds Thresholds
	// HistoryWindow bounds the per-session turn history kept for classifier
	// context.
	HistoryWindow int
	// CollaboratorTimeout caps each call to the classifier and the open-data
	// service. Each call gets one retry on failure.
	CollaboratorTimeout time.Duration
	// TurnLog, when set, receives an audit record per processed turn.
	TurnLog *turnlog.Service
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Orchestrator drives one conversation turn end to end: load session,
// classify, transition, execute the chosen action, persist, reply. Turns for
// the same user are serialized; different users proceed in parallel.
type Orchestrator struct {
	store      sessions.Store
	classifier classifier.Classifier
	data       citydata.Client
	registry   *flows.Registry

	thresholds    Thresholds
	historyWindow int
	timeout       time.Duration
	turns         *turnlog.Service
	logger        *zap.Logger
	locks         *userLocks
}

// New creates an orchestrator over the given collaborators.
func New(store sessions.Store, cls classifier.Classifier, data citydata.Client, registry *flows.Registry, optFns ...func(*Options)) *Orchestrator {
	opts := Options{
		Thresholds:          DefaultThresholds(),
		HistoryWindow:       10,
		CollaboratorTimeout: 5 * time.Second,
		Logger:              zap.NewNop(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		store:         store,
		classifier:    cls,
		data:          data,
		registry:      registry,
		thresholds:    opts.Thresholds,
		historyWindow: opts.HistoryWindow,
		timeout:       opts.CollaboratorTimeout,
		turns:         opts.TurnLog,
		logger:        opts.Logger,
		locks:         newUserLocks(),
	}
}

// HandleTurn processes one inbound message and returns the reply directive.
// A storage failure aborts the turn with a *sessions.StoreError so the
// transport can signal the channel to retry; collaborator failures degrade
// instead of aborting.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, text string) (*delivery.Message, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	o.locks.Lock(userID)
	defer o.locks.Unlock(userID)

	now := time.Now()
	sess, err := o.store.GetSession(ctx, userID)
	if err != nil {
		o.logger.Error("session load failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}
	if sess == nil {
		sess = sessions.NewSession(userID, now)
	}

	action, cls := o.decide(ctx, sess, text)
	reply := o.execute(ctx, sess, action)

	sess.AppendTurn(sessions.Turn{Role: sessions.RoleUser, Text: text, Timestamp: now}, o.historyWindow)
	sess.AppendTurn(sessions.Turn{Role: sessions.RoleBot, Text: reply.Text, Timestamp: now}, o.historyWindow)
	sess.Touch(now)

	// A completed flow retires the session; the turn log keeps the record.
	if sess.State == sessions.StateCompleted {
		err = o.store.DeleteSession(ctx, userID)
	} else {
		err = o.store.PutSession(ctx, sess)
	}
	if err != nil {
		o.logger.Error("session persist failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	o.recordTurn(ctx, sess, cls, action, reply, nil)

	o.logger.Debug("turn processed",
		zap.String("user_id", userID),
		zap.String("state", string(sess.State)),
		zap.String("action", string(action.Type)))
	return &reply, nil
}

// decide classifies the message and runs the transition. With the classifier
// down it falls back: keyword escalation stays reachable, an in-progress flow
// still consumes the text as its slot answer, and anything else degrades to a
// clarification.
func (o *Orchestrator) decide(ctx context.Context, sess *sessions.Session, text string) (Action, *classifier.Classification) {
	cls, err := o.classify(ctx, text, sess.History)
	if err == nil {
		return Transition(sess, text, cls, o.registry, o.thresholds), cls
	}

	o.logger.Warn("classifier unavailable",
		zap.String("user_id", sess.UserID),
		zap.Error(err))

	if classifier.MatchesEscalationKeyword(text) {
		return escalate(sess), nil
	}
	if sess.InFlow() {
		// Mid-flow the text is the slot answer (or the confirmation); a
		// zero-confidence stand-in routes it without intent influence.
		neutral := &classifier.Classification{Intent: classifier.IntentGeneralInquiry}
		return Transition(sess, text, neutral, o.registry, o.thresholds), nil
	}
	return Action{Type: ActionClarify, Degraded: true}, nil
}

func (o *Orchestrator) classify(ctx context.Context, text string, history []sessions.Turn) (*classifier.Classification, error) {
	turns := make([]classifier.Turn, len(history))
	for i, t := range history {
		turns[i] = classifier.Turn{Role: string(t.Role), Text: t.Text}
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		cls, err := o.classifier.Classify(callCtx, text, turns)
		cancel()
		if err == nil {
			return cls, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// execute turns an action into the outbound reply, performing whatever
// collaborator calls the action requires.
func (o *Orchestrator) execute(ctx context.Context, sess *sessions.Session, action Action) delivery.Message {
	switch action.Type {
	case ActionEscalate:
		return renderEscalation(action.TicketID)
	case ActionStatusLookup:
		return o.statusReply(ctx, sess, action.RequestNumber)
	case ActionAskRequestNumber:
		return renderAskRequestNumber()
	case ActionPromptSlot:
		return renderSlotPrompt(action)
	case ActionConfirmFlow:
		return o.confirmationReply(action)
	case ActionSubmitFlow:
		o.logger.Info("flow submitted",
			zap.String("user_id", sess.UserID),
			zap.String("flow_id", action.FlowID),
			zap.Int("slots", len(action.Slots)))
		return renderSubmitted()
	case ActionStaticResponse:
		return renderStaticResponse(action.Topic)
	default:
		return renderClarify(action.Degraded)
	}
}

func (o *Orchestrator) confirmationReply(action Action) delivery.Message {
	schema := o.registry.Get(action.FlowID)
	if schema == nil {
		return renderClarify(false)
	}
	return renderConfirmation(schema, action.Slots)
}

// statusReply looks the request up, retrying once on transient failure.
// Not-found is a normal outcome, not a degraded one.
func (o *Orchestrator) statusReply(ctx context.Context, sess *sessions.Session, requestNumber string) delivery.Message {
	var rec *citydata.ServiceRequest
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		rec, err = o.data.LookupByRequestNumber(callCtx, requestNumber)
		cancel()
		if err == nil || errors.Is(err, citydata.ErrNotFound) {
			break
		}
	}

	switch {
	case err == nil:
		return renderStatus(rec)
	case errors.Is(err, citydata.ErrNotFound):
		return renderStatusNotFound(requestNumber)
	default:
		o.logger.Warn("status lookup unavailable",
			zap.String("user_id", sess.UserID),
			zap.String("request_number", requestNumber),
			zap.Error(err))
		return renderLookupDegraded()
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, sess *sessions.Session, cls *classifier.Classification, action Action, reply delivery.Message, turnErr error) {
	if o.turns == nil {
		return
	}
	entry := &turnlog.TurnLog{
		UserID:    sess.UserID,
		State:     string(sess.State),
		Action:    string(action.Type),
		Success:   turnErr == nil && !action.Degraded,
		ReplyText: reply.Text,
	}
	if cls != nil {
		entry.Intent = string(cls.Intent)
		entry.Confidence = cls.Confidence
	}
	if turnErr != nil {
		entry.ErrorMsg = turnErr.Error()
	}
	o.turns.Record(ctx, entry)
}

// Sweep evicts expired sessions under the same per-user locks HandleTurn
// takes, so a sweep never races a turn that is refreshing the session.
func (o *Orchestrator) Sweep(ctx context.Context, now time.Time) (int, error) {
	userIDs, err := o.store.ExpiredUserIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, userID := range userIDs {
		o.locks.Lock(userID)
		ok, err := o.store.EvictIfExpired(ctx, userID, now)
		o.locks.Unlock(userID)
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}
	if evicted > 0 {
		o.logger.Info("expired sessions evicted", zap.Int("count", evicted))
	}
	return evicted, nil
}

// ResetSession removes a user's session out of band (operator action).
func (o *Orchestrator) ResetSession(ctx context.Context, userID string) error {
	o.locks.Lock(userID)
	defer o.locks.Unlock(userID)
	return o.store.DeleteSession(ctx, userID)
}
