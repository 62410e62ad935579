package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gapscan/gapscan/internal/controls"
	"github.com/gapscan/gapscan/internal/embedding"
	"github.com/gapscan/gapscan/internal/llm"
	"github.com/gapscan/gapscan/internal/retrieval"
	"github.com/gapscan/gapscan/internal/vector"
	"github.com/gapscan/gapscan/internal/verdict"
)

// scriptProvider returns canned answers per Complete call and a fixed unit
// embedding for every text.
type scriptProvider struct {
	answers       []string
	completeErrs  []error
	completeCalls int
	embedCalls    int
	lastPrompt    *llm.Prompt
}

func (s *scriptProvider) Complete(_ context.Context, prompt *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	i := s.completeCalls
	s.completeCalls++
	s.lastPrompt = prompt

	if i < len(s.completeErrs) && s.completeErrs[i] != nil {
		return nil, s.completeErrs[i]
	}
	answer := ""
	if i < len(s.answers) {
		answer = s.answers[i]
	}
	return &llm.Response{Content: answer, InputTokens: 10, OutputTokens: 5}, nil
}

func (s *scriptProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *scriptProvider) Name() string { return "script" }

func seededAnalyzer(t *testing.T, p llm.Provider, docs []vector.Document) *Analyzer {
	t.Helper()
	idx := vector.NewMemoryIndex()
	if err := idx.Reset(context.Background(), "c", 2); err != nil {
		t.Fatal(err)
	}
	if len(docs) > 0 {
		if err := idx.Upsert(context.Background(), "c", docs); err != nil {
			t.Fatal(err)
		}
	}
	r := retrieval.New(embedding.NewGateway(p), idx, "c")
	return New(p, r, idx, Config{Collection: "c", TopK: 3})
}

func policyDocs() []vector.Document {
	return []vector.Document{
		{ID: "1", Content: "Access is restricted to authorized users.", Vector: []float32{1, 0}},
		{ID: "2", Content: "Passwords are rotated quarterly.", Vector: []float32{0.9, 0.1}},
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	p := &scriptProvider{
		answers:      []string{"Fully met, access control is in place.", "", "The policy partially covers this."},
		completeErrs: []error{nil, errors.New("provider timeout"), nil},
	}
	a := seededAnalyzer(t, p, policyDocs())

	cs := []controls.Control{
		{ControlID: "AC.1.001", Description: "Limit system access to authorized users."},
		{ControlID: "AC.1.002", Description: "Limit system access to authorized transactions."},
		{ControlID: "AC.1.003", Description: "Verify and control connections to external systems."},
	}

	outcomes := a.Run(context.Background(), cs)
	if len(outcomes) != 3 {
		t.Fatalf("every control must yield one outcome, got %d", len(outcomes))
	}

	if outcomes[0].Failed() {
		t.Fatalf("first control should succeed: %v", outcomes[0].Err)
	}
	if outcomes[0].Resolve().Status != verdict.StatusFullyMet {
		t.Errorf("first control: got %s", outcomes[0].Resolve().Status)
	}

	if !outcomes[1].Failed() {
		t.Fatal("second control must carry the provider error")
	}
	v := outcomes[1].Resolve()
	if v.Status != verdict.StatusNotMet {
		t.Errorf("failed control must resolve to Not Met, got %s", v.Status)
	}
	if !strings.Contains(v.Explanation, "provider timeout") {
		t.Errorf("explanation must carry the failure reason: %q", v.Explanation)
	}

	if outcomes[2].Failed() {
		t.Fatalf("third control should still run after a failure: %v", outcomes[2].Err)
	}
	if outcomes[2].Resolve().Status != verdict.StatusPartiallyMet {
		t.Errorf("third control: got %s", outcomes[2].Resolve().Status)
	}

	for i, id := range []string{"AC.1.001", "AC.1.002", "AC.1.003"} {
		if outcomes[i].Resolve().ControlID != id {
			t.Errorf("position %d: got %q, want %q", i, outcomes[i].Resolve().ControlID, id)
		}
	}
}

func TestRun_EmptyDescriptionShortCircuits(t *testing.T) {
	p := &scriptProvider{}
	a := seededAnalyzer(t, p, policyDocs())

	outcomes := a.Run(context.Background(), []controls.Control{
		{ControlID: "AC.1.009", Description: "   "},
	})

	if len(outcomes) != 1 || outcomes[0].Failed() {
		t.Fatalf("expected one successful outcome, got %+v", outcomes)
	}
	v := outcomes[0].Resolve()
	if v.Status != verdict.StatusNotMet {
		t.Errorf("got %s, want Not Met", v.Status)
	}
	if v.Explanation != "No description provided for this control." {
		t.Errorf("unexpected explanation: %q", v.Explanation)
	}
	if p.completeCalls != 0 || p.embedCalls != 0 {
		t.Errorf("neither retrieval nor the LLM may be consulted, got %d complete / %d embed calls",
			p.completeCalls, p.embedCalls)
	}
}

func TestRun_NoEvidenceSkipsCompletion(t *testing.T) {
	p := &scriptProvider{}
	a := seededAnalyzer(t, p, nil) // collection exists but is empty

	outcomes := a.Run(context.Background(), []controls.Control{
		{ControlID: "AC.1.001", Description: "Limit system access."},
	})

	v := outcomes[0].Resolve()
	if v.Status != verdict.StatusNotMet {
		t.Errorf("got %s, want Not Met", v.Status)
	}
	if v.MatchedText != retrieval.NoEvidence {
		t.Errorf("got matched text %q, want sentinel", v.MatchedText)
	}
	if p.completeCalls != 0 {
		t.Errorf("no completion expected without evidence, got %d calls", p.completeCalls)
	}
}

func TestRun_PromptCarriesEvidenceAndRequirement(t *testing.T) {
	p := &scriptProvider{answers: []string{"Fully met."}}
	a := seededAnalyzer(t, p, policyDocs())

	a.Run(context.Background(), []controls.Control{
		{ControlID: "AC.1.001", Description: "Limit system access to authorized users."},
	})

	if p.lastPrompt == nil {
		t.Fatal("expected a completion call")
	}
	if !strings.Contains(p.lastPrompt.SystemPrompt, "compliance auditor") {
		t.Errorf("unexpected system prompt: %q", p.lastPrompt.SystemPrompt)
	}
	user := p.lastPrompt.Messages[0].Content
	if !strings.Contains(user, "Access is restricted to authorized users.") {
		t.Errorf("prompt missing retrieved evidence:\n%s", user)
	}
	if !strings.Contains(user, "Requirement: Limit system access to authorized users.") {
		t.Errorf("prompt missing requirement:\n%s", user)
	}
}

func TestSetup_ProviderDown(t *testing.T) {
	p := &scriptProvider{completeErrs: []error{errors.New("connection refused")}}
	a := seededAnalyzer(t, p, policyDocs())

	err := a.Setup(context.Background())
	if !errors.Is(err, llm.ErrProviderUnavailable) {
		t.Fatalf("got %v, want ErrProviderUnavailable", err)
	}
}

func TestSetup_EmptyCollection(t *testing.T) {
	p := &scriptProvider{answers: []string{"ok"}}
	a := seededAnalyzer(t, p, nil)

	err := a.Setup(context.Background())
	if !errors.Is(err, vector.ErrEmptyCollection) {
		t.Fatalf("got %v, want ErrEmptyCollection", err)
	}
}

func TestSetup_MissingCollection(t *testing.T) {
	p := &scriptProvider{answers: []string{"ok"}}
	idx := vector.NewMemoryIndex()
	r := retrieval.New(embedding.NewGateway(p), idx, "missing")
	a := New(p, r, idx, Config{Collection: "missing"})

	err := a.Setup(context.Background())
	if !errors.Is(err, vector.ErrCollectionNotFound) {
		t.Fatalf("got %v, want ErrCollectionNotFound", err)
	}
}

func TestSetup_Valid(t *testing.T) {
	p := &scriptProvider{answers: []string{"ok"}}
	a := seededAnalyzer(t, p, policyDocs())

	if err := a.Setup(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
