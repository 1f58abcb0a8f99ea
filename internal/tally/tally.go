// Package tally counts answer-option votes per question.
package tally

import (
	"context"
	"math"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
)

// OptionSlots is the number of answer options every question is assumed to have.
const OptionSlots = 4

// Store is the persistence the tally needs. IncrementOption must be a
// single atomic insert-or-increment.
type Store interface {
	IncrementOption(ctx context.Context, questionID, optionIndex int) (bool, error)
	ListQuestionTallies(ctx context.Context, questionID int) ([]models.OptionTally, error)
	ListAllTallies(ctx context.Context) ([]models.OptionTally, error)
}

type Tally struct {
	store Store
}

func New(store Store) *Tally {
	return &Tally{store: store}
}

// Vote adds one vote for (questionID, optionIndex). Any pair of 32-bit
// integers is accepted.
func (t *Tally) Vote(ctx context.Context, questionID, optionIndex int) (models.OptionVote, error) {
	if !fitsInt32(questionID) || !fitsInt32(optionIndex) {
		return models.OptionVote{}, apperr.Invalid("", "question_id or option_index out of range")
	}
	existed, err := t.store.IncrementOption(ctx, questionID, optionIndex)
	if err != nil {
		return models.OptionVote{}, apperr.Persistence("submit option", err)
	}
	return models.OptionVote{QuestionID: questionID, OptionIndex: optionIndex, WasExisting: existed}, nil
}

// Percentages returns the vote share of options 0..3 for questionID.
func (t *Tally) Percentages(ctx context.Context, questionID int) ([OptionSlots]float64, error) {
	if !fitsInt32(questionID) {
		// no vote can have been stored for it
		return [OptionSlots]float64{}, nil
	}
	rows, err := t.store.ListQuestionTallies(ctx, questionID)
	if err != nil {
		return [OptionSlots]float64{}, apperr.Persistence("read percentages", err)
	}
	return Percentages(rows), nil
}

// Raw dumps every tally row.
func (t *Tally) Raw(ctx context.Context) ([]models.OptionTally, error) {
	rows, err := t.store.ListAllTallies(ctx)
	if err != nil {
		return nil, apperr.Persistence("view stats", err)
	}
	return rows, nil
}

// Percentages computes count/total*100 for option indices 0..3, rounded to two
// decimals with ties away from zero. The total includes every row of the
// question, also indices outside 0..3, whose own shares are dropped.
func Percentages(rows []models.OptionTally) [OptionSlots]float64 {
	var out [OptionSlots]float64

	total := 0
	for _, r := range rows {
		total += r.Count
	}
	if total == 0 {
		return out
	}

	for _, r := range rows {
		if r.OptionIndex < 0 || r.OptionIndex >= OptionSlots {
			continue
		}
		out[r.OptionIndex] = round2(float64(r.Count) / float64(total) * 100)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
