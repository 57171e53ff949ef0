// Package nlu interprets free-text caller utterances into structured
// decisions using an LLM completion service. Every operation is
// best-effort: a nil/err result means "ask the caller again", never a
// hard failure.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicvoice/frontdesk/pkg/logging"
)

var tracer = otel.Tracer("frontdesk.internal.nlu")

// NoMatch is returned by the matching operations when the utterance does
// not resolve to any candidate.
const NoMatch = -1

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CatalogEntry is one offering presented to the matcher. Internal ids are
// withheld; the matcher only ever sees names and keywords.
type CatalogEntry struct {
	Name     string
	Keywords []string
}

// ConfirmationContext carries the facts a generated confirmation should recite.
type ConfirmationContext struct {
	PracticeName string
	Purpose      string // e.g. "patient info summary", "booking confirmation"
	Facts        []string
}

// Service implements the NLU operations over an OpenAI-compatible
// chat-completions API.
type Service struct {
	client chatClient
	model  string
	logger *logging.Logger
}

// NewService builds an NLU service.
func NewService(client chatClient, model string, logger *logging.Logger) *Service {
	if client == nil {
		panic("nlu: chat client cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{client: client, model: model, logger: logger}
}

const matchOfferingPrompt = `You match a caller's request to a clinic's service catalog.

Catalog:
%s

Caller said: %q

Pick the single best catalog entry, judging by names and keywords. If none
fits, say so. Never invent a service that is not in the catalog.

Respond with JSON only: {"match": <1-based entry number>} or {"match": null}`

// MatchOffering resolves an utterance to a catalog index, or NoMatch.
// A single unambiguous keyword hit short-circuits the LLM call.
func (s *Service) MatchOffering(ctx context.Context, utterance string, catalog []CatalogEntry) (int, error) {
	if len(catalog) == 0 || strings.TrimSpace(utterance) == "" {
		return NoMatch, nil
	}

	if idx := keywordMatch(utterance, catalog); idx != NoMatch {
		return idx, nil
	}

	var sb strings.Builder
	for i, entry := range catalog {
		fmt.Fprintf(&sb, "%d. %s", i+1, entry.Name)
		if len(entry.Keywords) > 0 {
			fmt.Fprintf(&sb, " (keywords: %s)", strings.Join(entry.Keywords, ", "))
		}
		sb.WriteString("\n")
	}

	text, err := s.complete(ctx, "nlu.match_offering", fmt.Sprintf(matchOfferingPrompt, sb.String(), utterance), 30)
	if err != nil {
		return NoMatch, err
	}

	var result struct {
		Match *int `json:"match"`
	}
	if err := json.Unmarshal(extractJSON(text), &result); err != nil || result.Match == nil {
		return NoMatch, nil
	}
	idx := *result.Match - 1
	if idx < 0 || idx >= len(catalog) {
		return NoMatch, nil
	}
	return idx, nil
}

// keywordMatch returns the catalog index when exactly one entry's keyword
// appears in the utterance. Ambiguous hits defer to the LLM.
func keywordMatch(utterance string, catalog []CatalogEntry) int {
	lower := strings.ToLower(utterance)
	found := NoMatch
	for i, entry := range catalog {
		for _, kw := range entry.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				if found != NoMatch && found != i {
					return NoMatch
				}
				found = i
				break
			}
		}
	}
	return found
}

const normalizeDatePrompt = `Today is %s (%s) in timezone %s.

A caller said they want an appointment: %q

Resolve that to a single calendar date. "Next Tuesday" means the Tuesday of
next week. If the utterance does not describe a resolvable date, say so.

Respond with JSON only: {"date": "YYYY-MM-DD"} or {"date": null}`

// NormalizeDate resolves a free-text date preference to an ISO date in the
// given timezone. Returns "" when the utterance is not resolvable.
func (s *Service) NormalizeDate(ctx context.Context, utterance, timezone string, now time.Time) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return "", nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	localNow := now.In(loc)

	prompt := fmt.Sprintf(normalizeDatePrompt,
		localNow.Format("2006-01-02"), localNow.Format("Monday"), timezone, utterance)

	text, err := s.complete(ctx, "nlu.normalize_date", prompt, 30)
	if err != nil {
		return "", err
	}

	var result struct {
		Date *string `json:"date"`
	}
	if err := json.Unmarshal(extractJSON(text), &result); err != nil || result.Date == nil {
		return "", nil
	}
	if _, err := time.Parse("2006-01-02", *result.Date); err != nil {
		return "", nil
	}
	return *result.Date, nil
}

const normalizeBirthDatePrompt = `A caller stated their date of birth: %q

Resolve it to a single calendar date. It must be a plausible birth date in
the past. If the utterance is not a resolvable date, say so.

Respond with JSON only: {"date": "YYYY-MM-DD"} or {"date": null}`

// NormalizeBirthDate resolves a spoken date of birth to an ISO date.
// Returns "" when the utterance is not resolvable; callers re-prompt
// rather than store an invalid value.
func (s *Service) NormalizeBirthDate(ctx context.Context, utterance string) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return "", nil
	}

	text, err := s.complete(ctx, "nlu.normalize_birth_date", fmt.Sprintf(normalizeBirthDatePrompt, utterance), 30)
	if err != nil {
		return "", err
	}

	var result struct {
		Date *string `json:"date"`
	}
	if err := json.Unmarshal(extractJSON(text), &result); err != nil || result.Date == nil {
		return "", nil
	}
	parsed, err := time.Parse("2006-01-02", *result.Date)
	if err != nil || !parsed.Before(time.Now()) {
		return "", nil
	}
	return *result.Date, nil
}

const matchSlotPrompt = `A caller was offered these appointment times:

%s

The caller said: %q

Which single offer did they pick? Match only against the list above; do not
invent times. If the utterance does not clearly pick one, say so.

Respond with JSON only: {"match": <1-based offer number>} or {"match": null}`

// MatchSlot resolves an utterance to an index into the offered slot
// descriptions, or NoMatch. Ordinal and positional phrasings resolve
// without an LLM call.
func (s *Service) MatchSlot(ctx context.Context, utterance string, offers []string) (int, error) {
	if len(offers) == 0 || strings.TrimSpace(utterance) == "" {
		return NoMatch, nil
	}

	if idx := slotShortcut(utterance, len(offers)); idx != NoMatch {
		return idx, nil
	}

	var sb strings.Builder
	for i, offer := range offers {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, offer)
	}

	text, err := s.complete(ctx, "nlu.match_slot", fmt.Sprintf(matchSlotPrompt, sb.String(), utterance), 30)
	if err != nil {
		return NoMatch, err
	}

	var result struct {
		Match *int `json:"match"`
	}
	if err := json.Unmarshal(extractJSON(text), &result); err != nil || result.Match == nil {
		return NoMatch, nil
	}
	idx := *result.Match - 1
	if idx < 0 || idx >= len(offers) {
		return NoMatch, nil
	}
	return idx, nil
}

var ordinalWords = []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth"}

// slotShortcut resolves ordinal ("the second one"), positional ("option 2",
// "number 2"), and "the last one" phrasings without consulting the model.
func slotShortcut(utterance string, n int) int {
	lower := strings.ToLower(utterance)
	if strings.Contains(lower, "last one") || strings.Contains(lower, "the last") {
		return n - 1
	}
	for i, word := range ordinalWords {
		if i >= n {
			break
		}
		if strings.Contains(lower, word) {
			return i
		}
	}
	for i := 1; i <= n; i++ {
		d := fmt.Sprintf("%d", i)
		if strings.Contains(lower, "option "+d) || strings.Contains(lower, "number "+d) {
			return i - 1
		}
	}
	return NoMatch
}

const confirmationPrompt = `You are the voice assistant for %s. Compose one short spoken
%s for a phone caller. Recite these facts, nothing else:

%s

Plain conversational speech. No lists, no markdown, two sentences maximum.`

// ConfirmationText generates a spoken confirmation reciting the given facts.
func (s *Service) ConfirmationText(ctx context.Context, c ConfirmationContext) (string, error) {
	prompt := fmt.Sprintf(confirmationPrompt, c.PracticeName, c.Purpose, strings.Join(c.Facts, "\n"))
	text, err := s.complete(ctx, "nlu.confirmation_text", prompt, 150)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Service) complete(ctx context.Context, span, prompt string, maxTokens int) (string, error) {
	ctx, sp := tracer.Start(ctx, span)
	defer sp.End()
	sp.SetAttributes(attribute.String("nlu.model", s.model))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		sp.RecordError(err)
		return "", fmt.Errorf("nlu: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("nlu: completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls the first {...} block out of a completion, since models
// occasionally wrap JSON in prose or code fences.
func extractJSON(content string) []byte {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return []byte("{}")
	}
	return []byte(content[start : end+1])
}
