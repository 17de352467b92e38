package qa

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aurora-qa/aurora/pkg/adapter"
	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/repository"
	"github.com/aurora-qa/aurora/pkg/roster"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

const (
	// DefaultMaxIterations bounds how many engine decisions one
	// question may consume.
	DefaultMaxIterations = 3

	searchToolName = "search_member_memory"

	searchAttempts = 3
	engineAttempts = 2
)

var (
	ErrEmptyQuestion   = goerr.New("question is empty")
	ErrReasoningEngine = goerr.New("reasoning engine failed")
	ErrMemberNotFound  = goerr.New("member not found")
	ErrMemberAmbiguous = goerr.New("member name is ambiguous")
)

// UseCase answers natural-language questions about members by driving
// the engine through a bounded tool-calling loop over memory search.
type UseCase struct {
	gemini   adapter.Gemini
	repo     repository.Repository
	index    *roster.Index
	classify ClassifyFunc

	output        io.Writer
	maxIterations int
	topK          int
	callTimeout   time.Duration
	retryBackoff  time.Duration
}

type Option func(*UseCase)

// WithMaxIterations overrides the engine decision budget.
func WithMaxIterations(n int) Option {
	return func(u *UseCase) {
		if n > 0 {
			u.maxIterations = n
		}
	}
}

// WithTopK sets the default snippet count per search call.
func WithTopK(k int) Option {
	return func(u *UseCase) {
		u.topK = repository.ClampTopK(k)
	}
}

// WithClassifier replaces the embedded classification policy.
func WithClassifier(f ClassifyFunc) Option {
	return func(u *UseCase) {
		if f != nil {
			u.classify = f
		}
	}
}

// WithOutput sets a writer for engine progress notes.
func WithOutput(w io.Writer) Option {
	return func(u *UseCase) {
		u.output = w
	}
}

// WithCallTimeout bounds each engine and search call.
func WithCallTimeout(d time.Duration) Option {
	return func(u *UseCase) {
		if d > 0 {
			u.callTimeout = d
		}
	}
}

// WithRetryBackoff sets the base backoff between search retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(u *UseCase) {
		if d > 0 {
			u.retryBackoff = d
		}
	}
}

// New creates the QA use case.
func New(gemini adapter.Gemini, repo repository.Repository, index *roster.Index, opts ...Option) *UseCase {
	u := &UseCase{
		gemini:        gemini,
		repo:          repo,
		index:         index,
		classify:      DefaultPolicy().Classify,
		maxIterations: DefaultMaxIterations,
		topK:          repository.DefaultTopK,
		callTimeout:   60 * time.Second,
		retryBackoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Answer runs the tool-calling loop for one question. The engine gets
// at most maxIterations decisions; hitting the budget still yields a
// flagged best-effort answer rather than an error.
func (u *UseCase) Answer(ctx context.Context, question string) (*model.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	contents := []*genai.Content{
		genai.NewContentFromText(question, genai.RoleUser),
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPromptRaw, ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		Tools: []*genai.Tool{u.toolSpec()},
	}

	var evidence model.EvidenceSet
	var resolved model.MemberID
	iterations := 0

	for i := 0; i < u.maxIterations; i++ {
		resp, err := u.generate(ctx, contents, config)
		if err != nil {
			return nil, err
		}
		iterations++

		candidate := resp.Candidates[0]
		contents = append(contents, candidate.Content)

		hasFuncCall := false
		var functionResponses []*genai.Part

		for _, part := range candidate.Content.Parts {
			if part.Text != "" && u.output != nil {
				fmt.Fprintf(u.output, "… %s\n", part.Text)
			}

			if part.FunctionCall != nil {
				hasFuncCall = true
				funcResp, err := u.executeSearch(ctx, *part.FunctionCall, question, &evidence, &resolved)
				if err != nil {
					return nil, err
				}
				functionResponses = append(functionResponses, &genai.Part{FunctionResponse: funcResp})
			}
		}

		// All function responses go back as a single user content.
		if len(functionResponses) > 0 {
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: functionResponses,
			})
		}

		if !hasFuncCall {
			text := joinTextParts(candidate.Content.Parts)
			if text == "" {
				return nil, goerr.Wrap(ErrReasoningEngine, "engine returned neither text nor tool call")
			}
			return &model.AnswerResult{
				Text:       text,
				Iterations: iterations,
				MemberID:   resolved,
			}, nil
		}

		logging.From(ctx).Debug("tool iteration completed",
			"iteration", iterations,
			"evidence", len(evidence))
	}

	return &model.AnswerResult{
		Text:       u.bestEffortAnswer(ctx, question, evidence),
		Iterations: iterations,
		MemberID:   resolved,
		Exhausted:  true,
	}, nil
}

// generate calls the engine with one immediate retry. Only transport
// failures and empty responses are retried; a canceled context aborts.
func (u *UseCase) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 0; attempt < engineAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "question answering canceled")
		}

		callCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
		resp, err := u.gemini.GenerateContent(callCtx, contents, config)
		cancel()

		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			lastErr = goerr.New("empty response from engine")
		} else {
			return resp, nil
		}

		logging.From(ctx).Warn("engine call failed", "attempt", attempt+1, "error", lastErr)
	}

	return nil, goerr.Wrap(ErrReasoningEngine, "engine call failed",
		goerr.V("attempts", engineAttempts),
		goerr.V("cause", lastErr.Error()))
}

func (u *UseCase) toolSpec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        searchToolName,
				Description: "Search memory snippets recorded about one member. Resolves the member by name, then retrieves the snippets most relevant to the query, annotated with timestamps and statuses.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name": {
							Type:        genai.TypeString,
							Description: "Member name as mentioned in the question",
						},
						"query": {
							Type:        genai.TypeString,
							Description: "What to look for, e.g. \"seat preference\" (defaults to the question)",
						},
						"top_k": {
							Type:        genai.TypeInteger,
							Description: fmt.Sprintf("Maximum snippets to retrieve (default: %d, max: %d)", repository.DefaultTopK, repository.MaxTopK),
						},
					},
					Required: []string{"name"},
				},
			},
		},
	}
}

// executeSearch handles one search_member_memory call. Name problems
// go back to the engine as tool payloads so it can decide how to
// proceed; retrieval failures abort the run with an error.
func (u *UseCase) executeSearch(ctx context.Context, fc genai.FunctionCall, question string, evidence *model.EvidenceSet, resolved *model.MemberID) (*genai.FunctionResponse, error) {
	payload := func(response map[string]any) *genai.FunctionResponse {
		return &genai.FunctionResponse{Name: fc.Name, Response: response}
	}

	if fc.Name != searchToolName {
		return payload(map[string]any{"error": fmt.Sprintf("unknown function: %s", fc.Name)}), nil
	}

	name, _ := fc.Args["name"].(string)
	if strings.TrimSpace(name) == "" {
		return payload(map[string]any{"error": "name parameter is required"}), nil
	}

	member, candidates := u.ResolveMember(name)
	switch {
	case member == nil && len(candidates) > 0:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.DisplayName
		}
		return payload(map[string]any{
			"error":      fmt.Sprintf("%q matches multiple members", name),
			"candidates": names,
			"hint":       "call again with the exact full name of the intended member",
		}), nil

	case member == nil:
		return payload(map[string]any{
			"error": fmt.Sprintf("no member matches %q; the name may be misspelled. Retry with a corrected full name, or answer that this member is not known.", name),
		}), nil
	}

	query, _ := fc.Args["query"].(string)
	if strings.TrimSpace(query) == "" {
		query = question
	}

	topK := u.topK
	switch v := fc.Args["top_k"].(type) {
	case float64:
		topK = repository.ClampTopK(int(v))
	case int:
		topK = repository.ClampTopK(v)
	}

	snippets, err := u.retrieve(ctx, member.ID, query, topK)
	if err != nil {
		return nil, err
	}

	*evidence = Merge(*evidence, snippets, u.classify)
	*resolved = member.ID

	var items []map[string]any
	for _, s := range *evidence {
		if s.MemberID == member.ID {
			items = append(items, snippetItem(s))
		}
	}

	logging.From(ctx).Info("memory search completed",
		"member", member.ID,
		"retrieved", len(snippets),
		"evidence", len(items))

	return payload(map[string]any{
		"member":    member.DisplayName,
		"member_id": string(member.ID),
		"items":     items,
		"note":      "statuses: active snippets are current; superseded ones were overridden by newer statements; intent bookings were never confirmed",
	}), nil
}

// retrieve embeds the query and searches the member's snippets,
// retrying transient failures with exponential backoff.
func (u *UseCase) retrieve(ctx context.Context, memberID model.MemberID, query string, topK int) ([]*model.MemorySnippet, error) {
	var lastErr error
	for attempt := 0; attempt < searchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "memory search canceled")
			case <-time.After(u.retryBackoff * time.Duration(1<<(attempt-1))):
			}
		}

		snippets, err := u.retrieveOnce(ctx, memberID, query, topK)
		if err == nil {
			return snippets, nil
		}
		lastErr = err
		logging.From(ctx).Warn("memory search failed, retrying",
			"member", memberID,
			"attempt", attempt+1,
			"error", err)
	}

	return nil, goerr.Wrap(repository.ErrRetrievalUnavailable, "memory search failed after retries",
		goerr.V("member", memberID),
		goerr.V("attempts", searchAttempts),
		goerr.V("cause", lastErr.Error()))
}

func (u *UseCase) retrieveOnce(ctx context.Context, memberID model.MemberID, query string, topK int) ([]*model.MemorySnippet, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	embedding, err := u.gemini.Embedding(callCtx, query)
	if err != nil {
		return nil, err
	}
	return u.repo.SearchSnippets(callCtx, memberID, embedding, topK)
}

// bestEffortAnswer composes the answer when the iteration budget ran
// out. With evidence in hand it asks the engine for one tool-free
// completion; without evidence, or when the engine fails again, it
// falls back to a deterministic summary. Always non-empty.
func (u *UseCase) bestEffortAnswer(ctx context.Context, question string, evidence model.EvidenceSet) string {
	const flag = "Note: the memory search budget ran out before the answer was complete, so this may be partial."

	if len(evidence) == 0 {
		return "I couldn't retrieve any member memories within the search budget, so I can't answer this reliably. Please try again or rephrase the question."
	}

	var sb strings.Builder
	sb.WriteString("The question was: ")
	sb.WriteString(question)
	sb.WriteString("\n\nThe search budget ran out. Answer the question using only the memory snippets below, and note that retrieval was incomplete.\n\n")
	for _, s := range evidence {
		fmt.Fprintf(&sb, "- [%s] %s (%s)\n", s.Status, s.Text, formatTimestamp(s.Timestamp))
	}

	callCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	thinkingBudget := int32(0)
	resp, err := u.gemini.GenerateContent(callCtx,
		[]*genai.Content{genai.NewContentFromText(sb.String(), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPromptRaw, ""),
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		})
	if err == nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		if text := joinTextParts(resp.Candidates[0].Content.Parts); text != "" {
			return flag + "\n\n" + text
		}
	}
	if err != nil {
		logging.From(ctx).Warn("best-effort completion failed", "error", err)
	}

	// Deterministic fallback over the active evidence.
	var out strings.Builder
	out.WriteString(flag)
	out.WriteString("\nWhat was gathered:\n")
	for i, s := range evidence.Active() {
		if i >= 8 {
			break
		}
		fmt.Fprintf(&out, "- %s (%s)\n", s.Text, formatTimestamp(s.Timestamp))
	}
	return out.String()
}

func snippetItem(s *model.MemorySnippet) map[string]any {
	return map[string]any{
		"snippet_id": string(s.ID),
		"text":       s.Text,
		"timestamp":  formatTimestamp(s.Timestamp),
		"status":     string(s.Status),
		"categories": s.Categories,
		"score":      s.Score,
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.UTC().Format(time.RFC3339)
}

func joinTextParts(parts []*genai.Part) string {
	var texts []string
	for _, part := range parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// ResolveMember resolves a name fragment against the roster. Exactly
// one shape comes back: the member when resolved, the candidate list
// when ambiguous, neither when the name is unknown.
func (u *UseCase) ResolveMember(name string) (*model.Member, []*model.Member) {
	res := u.index.Resolve(name)
	switch res.Kind {
	case model.ResolutionResolved:
		return u.index.Member(res.MemberID), nil
	case model.ResolutionAmbiguous:
		candidates := make([]*model.Member, 0, len(res.Candidates))
		for _, id := range res.Candidates {
			if m := u.index.Member(id); m != nil {
				candidates = append(candidates, m)
			}
		}
		return nil, candidates
	default:
		return nil, nil
	}
}

// SearchMemberMemory is the single-shot form of the internal tool,
// used by the MCP server. Returns the member and the annotated
// evidence from one search call.
func (u *UseCase) SearchMemberMemory(ctx context.Context, name, query string, topK int) (*model.Member, model.EvidenceSet, error) {
	member, candidates := u.ResolveMember(name)
	switch {
	case member == nil && len(candidates) > 0:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.DisplayName
		}
		return nil, nil, goerr.Wrap(ErrMemberAmbiguous, "multiple members match name",
			goerr.V("name", name),
			goerr.V("candidates", names))
	case member == nil:
		return nil, nil, goerr.Wrap(ErrMemberNotFound, "no member matches name", goerr.V("name", name))
	}

	if strings.TrimSpace(query) == "" {
		query = member.DisplayName
	}

	snippets, err := u.retrieve(ctx, member.ID, query, repository.ClampTopK(topK))
	if err != nil {
		return nil, nil, err
	}
	return member, Merge(nil, snippets, u.classify), nil
}
