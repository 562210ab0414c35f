package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is either unanswered or a selected zero-based choice. The zero
// value is unanswered.
type Answer struct {
	choice int
	set    bool
}

// Unanswered returns the empty answer.
func Unanswered() Answer { return Answer{} }

// Selected returns an answer holding the zero-based choice.
func Selected(choice int) Answer { return Answer{choice: choice, set: true} }

// Choice returns the selected choice and whether one is set.
func (a Answer) Choice() (int, bool) { return a.choice, a.set }

// IsAnswered reports whether a choice is set.
func (a Answer) IsAnswered() bool { return a.set }

// MarshalJSON encodes an unanswered answer as null.
func (a Answer) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.choice)
}

// UnmarshalJSON accepts null or an integer.
func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Unanswered()
		return nil
	}
	var choice int
	if err := json.Unmarshal(data, &choice); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	*a = Selected(choice)
	return nil
}

func (a Answer) String() string {
	if !a.set {
		return "unanswered"
	}
	return fmt.Sprintf("choice %d", a.choice)
}

// SelectChoiceRequest is the payload for marking a choice on the current
// question.
type SelectChoiceRequest struct {
	Choice *int `json:"choice" binding:"required,choice"`
}
