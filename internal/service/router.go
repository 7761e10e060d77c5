package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"whatsflow/internal/constants"
	"whatsflow/internal/database"
	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/features"
	"whatsflow/internal/flow"
	"whatsflow/internal/metrics"
	"whatsflow/internal/models"
	"whatsflow/internal/rules"
	"whatsflow/internal/tracing"
	"whatsflow/pkg/whatsapp"
	"whatsflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// InboundEvent is one normalized inbound message.
type InboundEvent struct {
	From               string
	PhoneNumberID      string
	DisplayPhoneNumber string
	MessageType        models.MessageType
	Text               string
	MediaID            string
	Caption            string
	ContactName        string
	WhatsAppMessageID  string
	Timestamp          time.Time
}

// EventFromWebhook normalizes messages[i] of a webhook change.
func EventFromWebhook(v *types.ChangeValue, m *types.Message) InboundEvent {
	ev := InboundEvent{
		From:               m.From,
		PhoneNumberID:      v.Metadata.PhoneNumberID,
		DisplayPhoneNumber: v.Metadata.DisplayPhoneNumber,
		MessageType:        models.MessageType(m.Type),
		Text:               whatsapp.ExtractText(m),
		ContactName:        whatsapp.ContactName(v, m.From),
		WhatsAppMessageID:  m.ID,
	}
	if media := whatsapp.MediaOf(m); media != nil {
		ev.MediaID = media.ID
		ev.Caption = media.Caption
	}
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && secs > 0 {
		ev.Timestamp = time.Unix(secs, 0).UTC()
	}
	return ev
}

// Outcome is what a dispatch stage did with a turn.
type Outcome int

const (
	NoAction Outcome = iota
	Handled
)

// Stage names, also used as metric labels.
const (
	StageFlow       = "flow"
	StageRule       = "rule"
	StageAIFallback = "ai_fallback"
	StageDefault    = "default"
)

// Result summarizes one HandleInbound call.
type Result struct {
	AccountID string
	MessageID int64
	Stage     string
	Duplicate bool
	Dropped   string
}

// turn carries one inbound message through the dispatch stages.
type turn struct {
	account   *models.Account
	event     InboundEvent
	inboundID int64
	conv      *models.Conversation
}

func (t *turn) contact() string {
	return t.event.From
}

func (t *turn) inFlow() bool {
	return t.conv.InFlow()
}

type stage struct {
	name string
	run  func(ctx context.Context, t *turn) Outcome
}

// Router is the inbound entry point. It persists the message and runs the
// dispatch stages in priority order until one handles the turn.
type Router struct {
	store     Store
	sender    *Sender
	client    whatsapp.Client
	responder *Responder
	publisher Publisher
	replies   atomic.Pointer[models.RepliesConfig]
	locks     *keyedMutex
	logger    *logrus.Logger
}

// NewRouter builds a router. The client is used for media URL resolution;
// sends go through sender.
func NewRouter(store Store, client whatsapp.Client, sender *Sender, responder *Responder, publisher Publisher, replies models.RepliesConfig, logger *logrus.Logger) *Router {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	r := &Router{
		store:     store,
		sender:    sender,
		client:    client,
		responder: responder,
		publisher: publisher,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
	r.UpdateReplies(replies)
	return r
}

// UpdateReplies swaps the canned replies; used by config hot reload.
func (r *Router) UpdateReplies(replies models.RepliesConfig) {
	if replies.Default == "" {
		replies.Default = constants.DefaultReply
	}
	if replies.AIApology == "" {
		replies.AIApology = constants.AIApologyReply
	}
	if replies.ButtonFallback == "" {
		replies.ButtonFallback = constants.ButtonFallbackBody
	}
	r.replies.Store(&replies)
}

// HandleInbound processes one inbound message. Errors are returned only when
// the message could not be recorded; send and AI failures are logged and
// degrade to canned replies.
func (r *Router) HandleInbound(ctx context.Context, ev InboundEvent) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "router.handle_inbound",
		attribute.String("message_type", string(ev.MessageType)),
	)
	defer span.End()

	metrics.IncrementCounter(metrics.InboundMessagesTotal, map[string]string{"type": string(ev.MessageType)}, "Inbound WhatsApp messages")

	account, err := r.store.GetAccountByPhoneNumberID(ctx, ev.PhoneNumberID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return Result{}, apperrors.NewDatabaseError("resolve account", err)
	}
	if account == nil {
		metrics.IncrementCounter(metrics.InboundDroppedTotal, map[string]string{"reason": "unknown_account"}, "Inbound messages not dispatched")
		r.logger.WithField("phone_number_id", ev.PhoneNumberID).Warn("Skipping inbound message for unknown account")
		return Result{Dropped: "unknown_account"}, nil
	}
	if ev.From == "" {
		metrics.IncrementCounter(metrics.InboundDroppedTotal, map[string]string{"reason": "no_sender"}, "Inbound messages not dispatched")
		return Result{AccountID: account.ID, Dropped: "no_sender"}, nil
	}
	span.SetAttributes(attribute.String("account_id", account.ID))

	unlock := r.locks.Lock(conversationKey(account.ID, ev.From))
	defer unlock()

	inbound := r.inboundMessage(ctx, account, ev)
	inserted, err := r.store.SaveMessage(ctx, inbound)
	if err != nil {
		tracing.RecordError(ctx, err)
		return Result{AccountID: account.ID}, apperrors.NewDatabaseError("save inbound message", err)
	}

	log := r.logger.WithFields(contactFields(ctx, account.ID, ev.From, ev.WhatsAppMessageID))
	if !inserted {
		metrics.IncrementCounter(metrics.InboundDuplicatesTotal, nil, "Redelivered inbound messages")
		log.Info("Skipping redelivered inbound message")
		return Result{AccountID: account.ID, Duplicate: true}, nil
	}
	r.publisher.Publish(*inbound)

	if err := r.store.TouchConversation(ctx, database.ConversationUpdate{
		AccountID:     account.ID,
		ContactNumber: ev.From,
		ContactName:   ev.ContactName,
		LastMessage:   inbound.Body,
		LastMessageAt: inbound.CreatedAt,
	}); err != nil {
		log.WithError(err).Error("Failed to update conversation")
	}

	conv, err := r.store.GetConversation(ctx, account.ID, ev.From)
	if err != nil {
		log.WithError(err).Error("Failed to load conversation, dispatching as idle")
		conv = nil
	}

	log.WithFields(logrus.Fields{
		LogFieldMessageType: ev.MessageType,
		"body":              bodyField(ctx, ev.Text),
		"in_flow":           conv.InFlow(),
	}).Info("Processing inbound message")

	t := &turn{account: account, event: ev, inboundID: inbound.ID, conv: conv}
	name := r.dispatch(ctx, t,
		stage{StageFlow, r.continueFlow},
		stage{StageRule, r.matchRule},
		stage{StageAIFallback, r.aiFallback},
		stage{StageDefault, r.defaultReply},
	)

	return Result{AccountID: account.ID, MessageID: inbound.ID, Stage: name}, nil
}

// dispatch runs stages in order and stops at the first Handled outcome.
func (r *Router) dispatch(ctx context.Context, t *turn, stages ...stage) string {
	for _, s := range stages {
		stageCtx, span := tracing.StartSpan(ctx, "router.stage."+s.name)
		outcome := s.run(stageCtx, t)
		span.SetAttributes(attribute.Bool("handled", outcome == Handled))
		span.End()

		label := "no_action"
		if outcome == Handled {
			label = "handled"
		}
		metrics.IncrementCounter(metrics.DispatchOutcomeTotal, map[string]string{"stage": s.name, "outcome": label}, "Dispatch stage outcomes")

		if outcome == Handled {
			r.logger.WithFields(logrus.Fields{
				LogFieldAccountID: t.account.ID,
				LogFieldStage:     s.name,
			}).Debug("Inbound message handled")
			return s.name
		}
	}
	return ""
}

func (r *Router) inboundMessage(ctx context.Context, account *models.Account, ev InboundEvent) *models.Message {
	msg := &models.Message{
		AccountID:         account.ID,
		Direction:         models.DirectionIncoming,
		PhoneNumber:       ev.From,
		Body:              ev.Text,
		Type:              ev.MessageType,
		MediaCaption:      ev.Caption,
		WhatsAppMessageID: ev.WhatsAppMessageID,
		Status:            models.MessageStatusReceived,
		CreatedAt:         ev.Timestamp,
	}
	if msg.Type == "" {
		msg.Type = models.MessageType("unknown")
	}

	if ev.MessageType.IsMedia() && ev.MediaID != "" && features.IsEnabled(features.FlagInboundMediaResolution) {
		mediaCtx, cancel := r.sender.withTimeout(ctx)
		defer cancel()
		url, err := r.client.GetMediaURL(mediaCtx, account.AccessToken, ev.MediaID)
		if err != nil {
			r.logger.WithFields(contactFields(ctx, account.ID, ev.From, ev.WhatsAppMessageID)).
				WithError(err).Warn("Failed to resolve inbound media URL")
		} else {
			msg.MediaURL = url
		}
	}
	return msg
}

// continueFlow feeds the turn to the node the conversation is parked on.
func (r *Router) continueFlow(ctx context.Context, t *turn) Outcome {
	if !t.inFlow() {
		return NoAction
	}
	flowID, nodeID := t.conv.FlowState()
	log := r.logger.WithFields(logrus.Fields{
		LogFieldAccountID: t.account.ID,
		LogFieldFlowID:    flowID,
		LogFieldNodeID:    nodeID,
	})

	f, err := r.store.GetFlow(ctx, flowID)
	if err != nil || f == nil {
		if err == nil {
			err = fmt.Errorf("flow %s not found", flowID)
		}
		log.WithError(apperrors.NewFlowDataError(flowID, err)).Warn("Failed to load active flow, clearing flow state")
		r.clearFlow(ctx, t)
		return NoAction
	}

	g := flow.NewGraph(f)
	if g.OutDegree(nodeID) > 1 {
		log.Warn("Node has several outgoing edges, following the first")
	}

	tr := g.Advance(nodeID, t.event.Text)
	metrics.IncrementCounter(metrics.FlowTransitionsTotal, map[string]string{"kind": tr.Kind.String()}, "Flow transitions by kind")

	switch tr.Kind {
	case flow.Reprompt:
		r.send(ctx, t, fmt.Sprintf(constants.RepromptFormat, tr.Expected), nil)
		return Handled

	case flow.Stalled:
		log.Info("Flow step matched but node has no outgoing edge")
		return Handled

	case flow.Advanced:
		ok, err := r.store.AdvanceFlowState(ctx, t.account.ID, t.contact(), flowID, nodeID, tr.Target.ID)
		if err != nil {
			log.WithError(err).Error("Failed to advance flow state")
			return Handled
		}
		if !ok {
			log.Warn("Flow state changed concurrently, skipping emission")
			return Handled
		}
		r.emit(ctx, t, tr.Target)
		return Handled

	case flow.Broken:
		log.WithError(apperrors.NewFlowDataError(flowID, tr.Err)).Warn("Flow edge points at a missing node, clearing flow state")
		r.clearFlow(ctx, t)
		return NoAction

	default:
		log.Debug("Conversation is not waiting on an input node, clearing flow state")
		r.clearFlow(ctx, t)
		return NoAction
	}
}

// matchRule runs the first rule whose trigger matches.
func (r *Router) matchRule(ctx context.Context, t *turn) Outcome {
	list, err := r.store.ListRules(ctx, t.account.ID)
	if err != nil {
		r.logger.WithField(LogFieldAccountID, t.account.ID).WithError(err).Error("Failed to load rules")
		return NoAction
	}

	rule := rules.Match(t.event.Text, list)
	if rule == nil {
		return NoAction
	}
	log := r.logger.WithFields(logrus.Fields{
		LogFieldAccountID: t.account.ID,
		LogFieldRuleID:    rule.ID,
	})

	switch {
	case rule.UseAI:
		log.Debug("Matched AI rule")
		r.clearFlow(ctx, t)
		r.replyWithAI(ctx, t)
		return Handled

	case rule.HasFlow():
		return r.startFlow(ctx, t, *rule.FlowID, log)

	default:
		log.Debug("Matched static rule")
		r.clearFlow(ctx, t)
		for _, text := range rule.Responses {
			r.send(ctx, t, text, nil)
		}
		if len(rule.Buttons) > 0 {
			body := r.replies.Load().ButtonFallback
			if n := len(rule.Responses); n > 0 {
				body = rule.Responses[n-1]
			}
			r.send(ctx, t, body, rule.Buttons)
		}
		return Handled
	}
}

// startFlow positions the conversation on the first content node of flowID.
// A flow that cannot be loaded is a data error and falls through; a flow
// whose start leads nowhere still counts as handled.
func (r *Router) startFlow(ctx context.Context, t *turn, flowID string, log *logrus.Entry) Outcome {
	log = log.WithField(LogFieldFlowID, flowID)

	f, err := r.store.GetFlow(ctx, flowID)
	if err != nil || f == nil {
		if err == nil {
			err = fmt.Errorf("flow %s not found", flowID)
		}
		log.WithError(apperrors.NewFlowDataError(flowID, err)).Warn("Failed to load flow for rule")
		return NoAction
	}

	g := flow.NewGraph(f)
	first, err := g.Start()
	if err != nil {
		level := logrus.InfoLevel
		if !errors.Is(err, flow.ErrNoOutgoingEdge) {
			level = logrus.WarnLevel
		}
		log.WithError(err).Log(level, "Flow rule matched but flow has nowhere to start")
		return Handled
	}
	if g.OutDegree(models.StartNodeID) > 1 {
		log.Warn("Start node has several outgoing edges, following the first")
	}

	if err := r.store.SetFlowState(ctx, t.account.ID, t.contact(), flowID, first.ID); err != nil {
		log.WithError(err).Error("Failed to store flow state")
	} else {
		metrics.IncrementCounter(metrics.FlowTransitionsTotal, map[string]string{"kind": "started"}, "Flow transitions by kind")
		log.WithField(LogFieldNodeID, first.ID).Info("Started flow")
	}
	r.emit(ctx, t, first)
	return Handled
}

func (r *Router) aiFallback(ctx context.Context, t *turn) Outcome {
	if !t.account.AIEnabled || !features.IsEnabled(features.FlagAIFallback) {
		return NoAction
	}
	if r.responder == nil || !r.responder.Configured(t.account) {
		return NoAction
	}
	r.replyWithAI(ctx, t)
	return Handled
}

func (r *Router) defaultReply(ctx context.Context, t *turn) Outcome {
	r.send(ctx, t, r.replies.Load().Default, nil)
	return Handled
}

// replyWithAI sends a completion, or the apology when the provider or its
// configuration is unavailable.
func (r *Router) replyWithAI(ctx context.Context, t *turn) {
	reply := ""
	var err error
	if r.responder == nil {
		err = ErrAINotConfigured
	} else {
		reply, err = r.responder.Reply(ctx, AIRequest{
			Account:         t.account,
			Contact:         t.contact(),
			Text:            t.event.Text,
			BeforeMessageID: t.inboundID,
		})
	}
	if err == nil && reply == "" {
		err = apperrors.NewAIError(t.account.Provider(), errors.New("empty completion"))
	}
	if err != nil {
		apperrors.WrapLogger(r.logger).LogWarn(err, "AI reply unavailable, sending apology",
			logrus.Fields{LogFieldAccountID: t.account.ID})
		reply = r.replies.Load().AIApology
	}
	r.send(ctx, t, reply, nil)
}

// emit sends a node's entry content, if it has any.
func (r *Router) emit(ctx context.Context, t *turn, node *models.Node) {
	e := flow.Emit(node)
	if e == nil {
		return
	}
	if e.Interactive() {
		r.send(ctx, t, e.Text, e.Buttons)
		return
	}
	r.send(ctx, t, e.Text, nil)
}

// send delivers text, or an interactive message when buttons are given.
// Failures are logged by the sender and never abort the turn.
func (r *Router) send(ctx context.Context, t *turn, text string, buttons []models.Button) {
	if len(buttons) > 0 {
		if text == "" {
			text = r.replies.Load().ButtonFallback
		}
		_, _ = r.sender.SendButtons(ctx, t.account, t.contact(), text, buttons)
		return
	}
	if text == "" {
		return
	}
	_, _ = r.sender.SendText(ctx, t.account, t.contact(), text)
}

func (r *Router) clearFlow(ctx context.Context, t *turn) {
	if !t.inFlow() {
		return
	}
	if err := r.store.ClearFlowState(ctx, t.account.ID, t.contact()); err != nil {
		r.logger.WithField(LogFieldAccountID, t.account.ID).WithError(err).Error("Failed to clear flow state")
		return
	}
	t.conv.CurrentFlowID = nil
	t.conv.CurrentNodeID = nil
}
