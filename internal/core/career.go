package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/ai"
	"github.com/baxromumarov/job-aggregator/internal/observability"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
)

// CareerService builds prompts for the AI career tools and interprets the
// completions.
type CareerService struct {
	completer ai.Completer
	matcher   *Matcher
}

func NewCareerService(completer ai.Completer, matcher *Matcher) *CareerService {
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &CareerService{completer: completer, matcher: matcher}
}

func (s *CareerService) CoverLetter(ctx context.Context, p scraper.Posting, skills []string) (string, error) {
	match := s.matcher.Score(skills, p.Title, p.Description)
	prompt := fmt.Sprintf(`You are a career assistant writing a concise cover letter.

Write a cover letter of at most 250 words for the job below. Plain text only,
no placeholders for names or addresses. Emphasise the candidate skills that
match the role; do not claim skills the candidate does not list.

Job Title: %s
Company: %s
Location: %s

Candidate skills: %s
Skills in common with the role: %s

Job Description:
%s`, p.Title, p.Company, p.Location,
		joinOrNone(skills), joinOrNone(match.Matched),
		ai.TruncateText(p.Description, 1500))

	out, err := s.completer.Complete(ctx, prompt, ai.CompletionOptions{Temperature: 0.6, MaxOutputTokens: 700})
	observability.IncAICall("cover_letter", err)
	if err != nil {
		return "", fmt.Errorf("cover letter failed: %w", err)
	}
	return out, nil
}

func (s *CareerService) InterviewQuestions(ctx context.Context, p scraper.Posting, skills []string) ([]string, error) {
	match := s.matcher.Score(skills, p.Title, p.Description)
	prompt := fmt.Sprintf(`You are an interview coach.

Return JSON only: an array of 8 interview questions (strings) the candidate
is likely to be asked for this job. Include questions that probe the skill
gaps listed below.

Job Title: %s
Company: %s
Candidate skills: %s
Skill gaps: %s

Job Description:
%s`, p.Title, p.Company, joinOrNone(skills), joinOrNone(match.Missing),
		ai.TruncateText(p.Description, 1500))

	out, err := s.completer.Complete(ctx, prompt, ai.CompletionOptions{Temperature: 0.3, MaxOutputTokens: 800, JSON: true})
	observability.IncAICall("interview_questions", err)
	if err != nil {
		return nil, fmt.Errorf("interview questions failed: %w", err)
	}

	var questions []string
	if err := json.Unmarshal([]byte(ai.CleanJSON(out)), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse interview questions: %w (response: %s)", err, ai.TruncateText(out, 200))
	}
	cleaned := questions[:0]
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	return cleaned, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
