package llm

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is a Client that replays canned responses, for tests and offline use.
// Responses are returned in order; the last one repeats once the script runs out.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	Err       error
	prompts   []string
}

// NewScripted returns a client that answers with responses in turn.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// Generate records prompt and returns the next response, or Err when set.
func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.Err != nil {
		return "", unavailable("scripted", s.Err)
	}
	if len(s.responses) == 0 {
		return "", unavailable("scripted", fmt.Errorf("no responses scripted"))
	}
	out := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return out, nil
}

// Prompts returns every prompt received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
