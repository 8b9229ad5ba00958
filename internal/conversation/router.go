package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// Control commands, matched exactly after trimming and upper-casing.
const (
	CommandCancel = "CANCEL"
	CommandRebook = "REBOOK"
	CommandStop   = "STOP"
	CommandHelp   = "HELP"
)

// InboundMessage is one webhook delivery.
type InboundMessage struct {
	MessageID string
	From      string
	To        string
	Body      string
}

type inputKind int

const (
	inputText inputKind = iota
	inputCommand
)

type dispatchKey struct {
	state State
	input inputKind
}

type turn struct {
	phone   string
	body    string
	command string
	convo   *Context
}

type turnFunc func(ctx context.Context, t turn) (string, error)

// Router classifies each inbound message and runs exactly one handler for it.
type Router struct {
	store     Store
	extractor IntentExtractor
	handler   *Handler
	locker    Locker
	metrics   *metrics.SchedulerMetrics
	logger    *logging.Logger
	table     map[dispatchKey]turnFunc
}

func NewRouter(store Store, extractor IntentExtractor, handler *Handler, logger *logging.Logger) *Router {
	if store == nil || extractor == nil || handler == nil {
		panic("conversation: router requires store, extractor and handler")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{
		store:     store,
		extractor: extractor,
		handler:   handler,
		locker:    NoopLocker{},
		logger:    logger,
	}
	r.table = map[dispatchKey]turnFunc{
		{StateIdle, inputCommand}:              r.handleCommand,
		{StateAwaitingSelection, inputCommand}: r.handleCommand,
		{StateAwaitingSelection, inputText}:    r.handleSelection,
		{StateIdle, inputText}:                 r.handleRequest,
	}
	return r
}

// WithConversationLocker serializes turns per phone number.
func (r *Router) WithConversationLocker(l Locker) *Router {
	if l != nil {
		r.locker = l
	}
	return r
}

func (r *Router) WithMetrics(m *metrics.SchedulerMetrics) *Router {
	r.metrics = m
	return r
}

// HandleMessage always returns a non-empty reply. Failures leave stored state as it was
// at the point of failure.
func (r *Router) HandleMessage(ctx context.Context, msg InboundMessage) (reply string) {
	phone := scheduling.NormalizePhone(msg.From)
	logger := r.logger.With("message_id", msg.MessageID, "phone", logging.RedactPhone(phone))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while handling message", "panic", fmt.Sprint(rec))
			reply = replyApology
		}
		if strings.TrimSpace(reply) == "" {
			reply = replyApology
		}
	}()

	if phone == "" {
		logger.Warn("inbound message without sender")
		return replyApology
	}

	var out string
	err := r.locker.WithLock(ctx, phoneLockKey(phone), func(ctx context.Context) error {
		var err error
		out, err = r.dispatch(ctx, phone, msg.Body)
		return err
	})
	if err == nil {
		return out
	}

	var turnErr *Error
	if errors.As(err, &turnErr) && turnErr.Kind == KindValidation {
		logger.Info("validation reply", "op", turnErr.Op)
		return turnErr.Reply
	}
	logger.Error("message handling failed", "kind", KindOf(err).String(), "error", err)
	return replyApology
}

func (r *Router) dispatch(ctx context.Context, phone, body string) (string, error) {
	t := turn{phone: phone, body: body, command: commandOf(body)}
	input := inputText
	if t.command != "" {
		input = inputCommand
	}

	convo, err := r.store.Get(ctx, phone)
	if err != nil {
		if input == inputText {
			return "", collaboratorError("load_context", err)
		}
		// Commands do not depend on stored state.
		r.logger.Warn("context unavailable for command", "command", t.command, "error", err)
		convo = &Context{State: StateIdle}
	}
	t.convo = convo

	state := StateIdle
	if convo.AwaitingSelection() {
		state = StateAwaitingSelection
	}
	fn, ok := r.table[dispatchKey{state: state, input: input}]
	if !ok {
		return "", fmt.Errorf("conversation: no handler for state %s", state)
	}
	return fn(ctx, t)
}

func (r *Router) handleCommand(ctx context.Context, t turn) (string, error) {
	r.metrics.ObserveInbound("command")
	switch t.command {
	case CommandCancel:
		return r.handler.Handle(ctx, t.phone, scheduling.Intent{Type: scheduling.IntentCancel})
	case CommandRebook:
		return replyRebook, nil
	case CommandStop:
		if err := r.store.Clear(ctx, t.phone); err != nil {
			return "", collaboratorError("clear_context", err)
		}
		return replyUnsubscribe, nil
	default:
		return replyHelp, nil
	}
}

func (r *Router) handleSelection(ctx context.Context, t turn) (string, error) {
	r.metrics.ObserveInbound("selection")
	alternatives := t.convo.Alternatives

	choice, err := strconv.Atoi(strings.TrimSpace(t.body))
	if err != nil {
		return "", validationError("select_alternative", replySelectionNotNumber)
	}
	if choice < 1 || choice > len(alternatives) {
		return "", validationError("select_alternative", selectionRangeReply(len(alternatives)))
	}

	slot := alternatives[choice-1]
	service, patientName, rescheduleID := t.convo.Service, t.convo.PatientName, t.convo.RescheduleID
	intent := scheduling.Intent{
		Type:        scheduling.IntentBook,
		Date:        slot.Date,
		Time:        slot.Time,
		Service:     service,
		PatientName: patientName,
	}
	if rescheduleID != "" {
		intent.Type = scheduling.IntentReschedule
	}

	if err := r.store.Update(ctx, t.phone, func(c *Context) {
		c.ClearSelection()
		c.LastIntent = &intent
	}); err != nil {
		return "", collaboratorError("clear_selection", err)
	}

	if rescheduleID != "" {
		return r.handler.rescheduleSelected(ctx, t.phone, rescheduleID, slot, service, patientName)
	}
	return r.handler.Handle(ctx, t.phone, intent)
}

func (r *Router) handleRequest(ctx context.Context, t turn) (string, error) {
	r.metrics.ObserveInbound("request")
	intent := r.extractor.ParseIntent(ctx, t.body)
	r.logger.Info("intent extracted", "intent", intent.Type, "phone", logging.RedactPhone(t.phone))

	if err := r.store.Update(ctx, t.phone, func(c *Context) {
		c.LastIntent = &intent
	}); err != nil {
		return "", collaboratorError("save_intent", err)
	}
	return r.handler.Handle(ctx, t.phone, intent)
}

func commandOf(body string) string {
	switch cmd := strings.ToUpper(strings.TrimSpace(body)); cmd {
	case CommandCancel, CommandRebook, CommandStop, CommandHelp:
		return cmd
	default:
		return ""
	}
}
