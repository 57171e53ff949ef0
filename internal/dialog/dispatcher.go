package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clinicvoice/frontdesk/internal/observability/metrics"
	"github.com/clinicvoice/frontdesk/internal/practice"
	"github.com/clinicvoice/frontdesk/pkg/logging"
)

// Tool names the voice platform is configured to call.
const (
	ToolFindAppointmentType = "find_appointment_type"
	ToolIdentifyPatient     = "identify_patient"
	ToolCheckAvailability   = "check_availability"
	ToolSelectSlot          = "select_slot"
)

// Invocation is one tool call delivered by the voice platform.
type Invocation struct {
	ToolName string
	CallID   string
	// PracticeID is the resolved tenant for this call. Used only on the
	// first invocation; afterwards the persisted state is authoritative.
	PracticeID string
	// Arguments may arrive as a decoded object or as a raw JSON string.
	Arguments any
}

// Result is the structured response returned to the platform. Exactly one
// field is set.
type Result struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PracticeStore resolves practice scheduling configuration.
type PracticeStore interface {
	Get(ctx context.Context, practiceID string) (*practice.Config, error)
}

// Dispatcher routes tool invocations to the engine's handlers, with state
// load/save, audit writes, and a last-resort panic net around each turn.
type Dispatcher struct {
	engine    *Engine
	states    StateStore
	practices PracticeStore
	audit     *AuditLog
	metrics   *metrics.DialogMetrics
	logger    *logging.Logger
}

// NewDispatcher builds a dispatcher. Audit and metrics may be nil.
func NewDispatcher(engine *Engine, states StateStore, practices PracticeStore, audit *AuditLog, m *metrics.DialogMetrics, logger *logging.Logger) *Dispatcher {
	if engine == nil {
		panic("dialog: engine cannot be nil")
	}
	if states == nil {
		panic("dialog: state store cannot be nil")
	}
	if practices == nil {
		panic("dialog: practice store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		engine:    engine,
		states:    states,
		practices: practices,
		audit:     audit,
		metrics:   m,
		logger:    logger,
	}
}

// Dispatch handles one tool invocation end to end. It always returns a
// result: caller-facing failures become speakable text, and only protocol
// problems (bad arguments, unknown tool) use the error shape.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (res Result) {
	start := time.Now()
	entryID := d.recordStart(ctx, inv)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panic", "tool", inv.ToolName, "call_id", inv.CallID, "panic", r)
			res = Result{Result: msgTechnicalIssue}
		}
		latency := time.Since(start)
		d.metrics.ObserveInvocation(inv.ToolName, invocationStatus(res))
		d.metrics.ObserveToolLatency(inv.ToolName, latency.Seconds())
		d.recordResult(entryID, res, latency)
	}()

	if inv.CallID == "" {
		return Result{Error: "missing call id"}
	}

	args, err := parseArguments(inv.Arguments)
	if err != nil {
		d.logger.Warn("unparseable tool arguments", "tool", inv.ToolName, "call_id", inv.CallID, "error", err)
		return Result{Error: "invalid tool arguments"}
	}
	utterance := extractUtterance(args)

	state, err := d.states.Load(ctx, inv.CallID)
	if err != nil {
		d.logger.Error("state load failed", "call_id", inv.CallID, "error", err)
		return Result{Result: msgTechnicalIssue}
	}
	if state.PracticeID == "" {
		state.PracticeID = inv.PracticeID
	}

	// A tenant lookup failure must still produce a speakable result;
	// the voice platform cannot show the caller a raw error.
	cfg, err := d.practices.Get(ctx, state.PracticeID)
	if err != nil || cfg == nil {
		d.logger.Error("practice config lookup failed", "practice_id", state.PracticeID, "error", err)
		cfg = practice.DefaultConfig(state.PracticeID)
	}
	if !cfg.SchedulingConfigured() {
		d.saveState(ctx, state)
		return Result{Result: msgContactOffice}
	}

	var next *ConversationState
	var reply string
	switch inv.ToolName {
	case ToolFindAppointmentType:
		next, reply = d.engine.HandleFindAppointmentType(ctx, state, cfg, utterance)
	case ToolIdentifyPatient:
		next, reply = d.engine.HandleIdentify(ctx, state, cfg, utterance)
	case ToolCheckAvailability:
		next, reply = d.engine.HandleCheckAvailability(ctx, state, cfg, utterance)
	case ToolSelectSlot:
		next, reply = d.engine.HandleSelectSlot(ctx, state, cfg, utterance)
	default:
		return Result{Error: fmt.Sprintf("unknown tool: %s", inv.ToolName)}
	}

	if inv.ToolName == ToolSelectSlot && state.Booking.Stage != BookingConfirmed {
		if next.Booking.Stage == BookingConfirmed {
			d.metrics.ObserveBooking("confirmed")
		} else {
			d.metrics.ObserveBooking("not_confirmed")
		}
	}

	// The one state write per invocation, after all external side effects.
	d.saveState(ctx, next)
	return Result{Result: reply}
}

func (d *Dispatcher) saveState(ctx context.Context, state *ConversationState) {
	if err := d.states.Save(ctx, state); err != nil {
		d.logger.Error("state save failed", "call_id", state.CallID, "error", err)
	}
}

func (d *Dispatcher) recordStart(ctx context.Context, inv Invocation) string {
	entryID, err := d.audit.RecordStart(ctx, inv.CallID, inv.ToolName, rawArguments(inv.Arguments))
	if err != nil {
		d.logger.Warn("audit start write failed", "call_id", inv.CallID, "error", err)
	}
	return entryID
}

// recordResult completes the audit row off the request path so a slow
// store never delays the spoken response.
func (d *Dispatcher) recordResult(entryID string, res Result, latency time.Duration) {
	if d.audit == nil || entryID == "" {
		return
	}
	payload, _ := json.Marshal(res)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.audit.RecordResult(ctx, entryID, string(payload), res.Error == "", latency); err != nil {
			d.logger.Warn("audit result write failed", "entry_id", entryID, "error", err)
		}
	}()
}

// invocationStatus classifies the turn for metrics. Turns that failed
// internally but still produced speakable fallback text count as
// degraded, not ok.
func invocationStatus(res Result) string {
	switch {
	case res.Error != "":
		return "error"
	case res.Result == msgTechnicalIssue:
		return "degraded"
	default:
		return "ok"
	}
}

// rawArguments renders the argument bag for the audit row.
func rawArguments(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// parseArguments accepts the loosely-typed argument bag: a decoded map, a
// raw JSON string, or bytes. Anything else is a protocol error.
func parseArguments(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("dialog: parse arguments: %w", err)
		}
		return out, nil
	case []byte:
		return parseArguments(string(v))
	case json.RawMessage:
		return parseArguments(string(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("dialog: parse arguments: %w", err)
		}
		return parseArguments(string(data))
	}
}

// utteranceKeys are the argument names the platform's agent uses for the
// caller's words, in priority order.
var utteranceKeys = []string{"utterance", "user_input", "input", "text", "response", "query", "preferred_date", "date"}

func extractUtterance(args map[string]any) string {
	for _, key := range utteranceKeys {
		if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
