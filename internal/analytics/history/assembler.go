// Package history bounds stored conversation turns before they are sent to the model.
package history

import (
	"unicode/utf8"

	"fds-analytics/internal/models"
)

// MinRetainedTurns is the floor below which truncation stops, even over budget.
const MinRetainedTurns = 2

// Assembler trims history to a token budget. It performs no I/O.
type Assembler struct {
	budget int
}

func NewAssembler(tokenBudget int) *Assembler {
	return &Assembler{budget: tokenBudget}
}

// EstimateTokens approximates the token count of s as characters / 4, rounded up.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// Tokens is the estimated size of a turn list.
func Tokens(turns []models.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.Content)
	}
	return total
}

// Assemble drops the oldest turns while the estimate exceeds the budget and
// more than MinRetainedTurns remain, then strips leading non-user turns so the
// result starts with a user turn. The input slice is not modified.
func (a *Assembler) Assemble(turns []models.Turn) []models.Turn {
	start := 0
	total := Tokens(turns)
	for total > a.budget && len(turns)-start > MinRetainedTurns {
		total -= EstimateTokens(turns[start].Content)
		start++
	}
	for start < len(turns) && turns[start].Role != models.RoleUser {
		start++
	}

	out := make([]models.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
