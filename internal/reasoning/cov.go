package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"manifold/internal/llm"
)

// Completer is the subset of *llm.Gateway Chain-of-Verification and the
// agents need.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error)
}

// VerificationResult is the full Chain-of-Verification trace for one query:
// the draft, the planned verification questions, their independent answers,
// and a revision that may or may not differ from the draft.
type VerificationResult struct {
	Draft     string
	Questions []string
	Answers   []string
	Final     string
	Revised   bool
}

const maxVerificationQuestions = 3

var leadingEnumeration = regexp.MustCompile(`^\s*(?:\d+[\.\)]|[-*])\s*`)

// ChainOfVerification runs the four-stage CoV procedure against a gateway.
type ChainOfVerification struct {
	gw Completer
}

func NewChainOfVerification(gw Completer) *ChainOfVerification {
	return &ChainOfVerification{gw: gw}
}

// Verify runs draft -> plan questions -> answer independently -> revise.
func (c *ChainOfVerification) Verify(ctx context.Context, query string) (VerificationResult, error) {
	draft, err := c.generateDraft(ctx, query)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("cov: draft: %w", err)
	}

	questions, err := c.generateQuestions(ctx, query, draft)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("cov: questions: %w", err)
	}

	answers := make([]string, 0, len(questions))
	for _, q := range questions {
		a, err := c.answerIndependently(ctx, q)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("cov: answer %q: %w", q, err)
		}
		answers = append(answers, a)
	}

	final, err := c.revise(ctx, query, draft, questions, answers)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("cov: revise: %w", err)
	}

	return VerificationResult{
		Draft:     draft,
		Questions: questions,
		Answers:   answers,
		Final:     final,
		Revised:   normalize(final) != normalize(draft),
	}, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (c *ChainOfVerification) generateDraft(ctx context.Context, query string) (string, error) {
	result, err := c.gw.Complete(ctx, llm.CompletionRequest{
		Prompt:      "Answer the following question as best you can:\n\n" + query,
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *ChainOfVerification) generateQuestions(ctx context.Context, query, draft string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Given the question and a draft answer, write 2-3 short verification questions that would check facts in the draft.\n\nQuestion: %s\nDraft answer: %s\n\nVerification questions:",
		query, draft,
	)
	result, err := c.gw.Complete(ctx, llm.CompletionRequest{Prompt: prompt, Temperature: 0.3, MaxTokens: 256})
	if err != nil {
		return nil, err
	}
	var questions []string
	for _, line := range strings.Split(result.Text, "\n") {
		line = strings.TrimSpace(line)
		if !leadingEnumeration.MatchString(line) {
			continue
		}
		line = leadingEnumeration.ReplaceAllString(line, "")
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == maxVerificationQuestions {
			break
		}
	}
	return questions, nil
}

// answerIndependently answers a verification question with no access to the
// draft, so the answer can't simply echo the draft's own claim back.
func (c *ChainOfVerification) answerIndependently(ctx context.Context, question string) (string, error) {
	result, err := c.gw.Complete(ctx, llm.CompletionRequest{
		Prompt:      question,
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *ChainOfVerification) revise(ctx context.Context, query, draft string, questions, answers []string) (string, error) {
	var qa strings.Builder
	for i := range questions {
		fmt.Fprintf(&qa, "Q: %s\nA: %s\n", questions[i], answers[i])
	}
	prompt := fmt.Sprintf(
		"Question: %s\nDraft answer: %s\n\nIndependent verification:\n%s\nUsing the verification above, give a final, corrected answer. If the draft was already correct, repeat it unchanged.",
		query, draft, qa.String(),
	)
	result, err := c.gw.Complete(ctx, llm.CompletionRequest{Prompt: prompt, Temperature: 0.5, MaxTokens: 512})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}
