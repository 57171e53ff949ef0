package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/clinicvoice/frontdesk/internal/dialog"
	"github.com/clinicvoice/frontdesk/internal/practice"
	"github.com/clinicvoice/frontdesk/internal/tenancy"
	"github.com/clinicvoice/frontdesk/pkg/logging"
)

// ----- Voice platform webhook event types -----

// VoiceToolEvent is the top-level webhook payload. The voice platform's AI
// assistant sends one event per tool invocation during a call; our endpoint
// is registered as a webhook tool, and the assistant's LLM calls it whenever
// it needs the booking core to act.
type VoiceToolEvent struct {
	// AssistantID is the assistant that originated the event.
	AssistantID string `json:"assistant_id,omitempty"`
	// CallID groups turns within a single call.
	CallID string `json:"call_id,omitempty"`
	// ConversationID is an older alias some assistant versions send.
	ConversationID string `json:"conversation_id,omitempty"`
	// From is the caller's phone number (E.164).
	From string `json:"from,omitempty"`
	// To is the practice number that received the call (E.164).
	To string `json:"to,omitempty"`
	// Payload holds the tool-specific data.
	Payload VoiceToolPayload `json:"payload,omitempty"`
}

// VoiceToolPayload carries the tool invocation details.
type VoiceToolPayload struct {
	// ToolName is the name of the webhook tool being invoked.
	ToolName string `json:"tool_name,omitempty"`
	// ToolCallID must be echoed back so the platform can correlate the result.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Arguments is the argument bag supplied by the assistant's LLM. Some
	// platform versions send an object, others a JSON-encoded string.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// VoiceToolResponse is the JSON body returned to the platform. The
// assistant's TTS engine speaks Response to the caller.
type VoiceToolResponse struct {
	ToolCallID string `json:"tool_call_id"`
	Response   string `json:"response"`
}

// VoiceToolErrorResponse is returned when the event itself is malformed.
type VoiceToolErrorResponse struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Error      string `json:"error"`
}

// ----- Handler -----

// practiceByNumberLookup resolves a practice id from the called number.
type practiceByNumberLookup interface {
	LookupByNumber(ctx context.Context, phone string) (string, error)
}

// toolDispatcher routes one tool invocation through the conversation core.
type toolDispatcher interface {
	Dispatch(ctx context.Context, inv dialog.Invocation) dialog.Result
}

// VoiceToolHandler handles voice assistant tool-call webhooks. It is a thin
// channel adapter: it resolves the practice from the called number, hands
// the invocation to the dialog dispatcher, and returns text for TTS.
type VoiceToolHandler struct {
	practices  practiceByNumberLookup
	dispatcher toolDispatcher
	logger     *logging.Logger
}

// VoiceToolHandlerConfig configures the VoiceToolHandler.
type VoiceToolHandlerConfig struct {
	Practices  practiceByNumberLookup
	Dispatcher toolDispatcher
	Logger     *logging.Logger
}

// NewVoiceToolHandler creates a new VoiceToolHandler.
func NewVoiceToolHandler(cfg VoiceToolHandlerConfig) *VoiceToolHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceToolHandler{
		practices:  cfg.Practices,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

// HandleToolCall is the HTTP handler for POST /webhooks/voice/tool-call.
func (h *VoiceToolHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("voice tool: failed to read body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var event VoiceToolEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("voice tool: failed to parse event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callID := event.CallID
	if callID == "" {
		callID = event.ConversationID
	}

	h.logger.Info("voice tool: received event",
		"assistant_id", event.AssistantID,
		"call_id", callID,
		"from", event.From,
		"to", event.To,
		"tool_name", event.Payload.ToolName,
	)

	if callID == "" {
		h.writeError(w, event.Payload.ToolCallID, "missing call id", http.StatusBadRequest)
		return
	}
	if event.Payload.ToolName == "" {
		h.writeError(w, event.Payload.ToolCallID, "missing tool name", http.StatusBadRequest)
		return
	}

	// Resolve the tenant from the number the caller dialed. A lookup
	// failure still dispatches: the persisted state may already carry the
	// practice, and the dispatcher degrades to a speakable message if not.
	practiceID := ""
	to := practice.NormalizeE164(event.To)
	if h.practices != nil && to != "" {
		practiceID, err = h.practices.LookupByNumber(ctx, to)
		if err != nil {
			h.logger.Warn("voice tool: practice lookup failed", "to", to, "error", err)
		}
	}
	if practiceID != "" {
		ctx = tenancy.WithPracticeID(ctx, practiceID)
	}

	var args any
	if len(event.Payload.Arguments) > 0 {
		// A JSON string here is a doubly-encoded argument object.
		var asString string
		if err := json.Unmarshal(event.Payload.Arguments, &asString); err == nil {
			args = asString
		} else {
			args = event.Payload.Arguments
		}
	}

	res := h.dispatcher.Dispatch(ctx, dialog.Invocation{
		ToolName:   event.Payload.ToolName,
		CallID:     callID,
		PracticeID: practiceID,
		Arguments:  args,
	})
	if res.Error != "" {
		h.writeError(w, event.Payload.ToolCallID, res.Error, http.StatusBadRequest)
		return
	}
	h.writeResponse(w, event.Payload.ToolCallID, res.Result)
}

// writeResponse sends a successful VoiceToolResponse.
func (h *VoiceToolHandler) writeResponse(w http.ResponseWriter, toolCallID, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(VoiceToolResponse{
		ToolCallID: toolCallID,
		Response:   text,
	})
}

// writeError sends an error response.
func (h *VoiceToolHandler) writeError(w http.ResponseWriter, toolCallID, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(VoiceToolErrorResponse{
		ToolCallID: toolCallID,
		Error:      msg,
	})
}
