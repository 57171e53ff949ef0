package dialog

import (
	"context"
	"time"

	"github.com/clinicvoice/frontdesk/internal/ehr"
	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/pkg/logging"
)

// NLUService is the language-understanding surface the handlers depend on.
// Every operation is best-effort: a NoMatch/empty result means "ask the
// caller again"; only transport errors are returned as errors.
type NLUService interface {
	MatchOffering(ctx context.Context, utterance string, catalog []nlu.CatalogEntry) (int, error)
	NormalizeDate(ctx context.Context, utterance, timezone string, now time.Time) (string, error)
	NormalizeBirthDate(ctx context.Context, utterance string) (string, error)
	MatchSlot(ctx context.Context, utterance string, offers []string) (int, error)
	ConfirmationText(ctx context.Context, c nlu.ConfirmationContext) (string, error)
}

const (
	defaultSlotPresentationCount = 4
	defaultTranscriptRetryDelay  = 3 * time.Second
)

// Engine implements the per-call conversation handlers. It is stateless
// across invocations: every handler derives a next state from the snapshot
// it is given and never mutates it in place.
type Engine struct {
	ehr                  ehr.Client
	nlu                  NLUService
	transcripts          TranscriptFetcher
	transcriptRetryDelay time.Duration
	slotCount            int
	logger               *logging.Logger
	now                  func() time.Time
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	EHR         ehr.Client
	NLU         NLUService
	Transcripts TranscriptFetcher // optional
	// TranscriptRetryDelay is how long to wait before the single retry
	// when the transcript comes back empty.
	TranscriptRetryDelay time.Duration
	// SlotPresentationCount caps how many slots are read aloud when the
	// practice config does not set its own cap.
	SlotPresentationCount int
	Logger                *logging.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewEngine builds a conversation engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.EHR == nil {
		panic("dialog: ehr client cannot be nil")
	}
	if cfg.NLU == nil {
		panic("dialog: nlu service cannot be nil")
	}
	if cfg.TranscriptRetryDelay <= 0 {
		cfg.TranscriptRetryDelay = defaultTranscriptRetryDelay
	}
	if cfg.SlotPresentationCount <= 0 {
		cfg.SlotPresentationCount = defaultSlotPresentationCount
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		ehr:                  cfg.EHR,
		nlu:                  cfg.NLU,
		transcripts:          cfg.Transcripts,
		transcriptRetryDelay: cfg.TranscriptRetryDelay,
		slotCount:            cfg.SlotPresentationCount,
		logger:               cfg.Logger,
		now:                  cfg.Now,
	}
}
