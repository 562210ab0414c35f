package model

// ChoiceCount is the number of answer slots every question carries.
const ChoiceCount = 4

// Question represents a single test question. Choices are stored in four
// fixed slots; an empty slot is absent and never offered. AnswerKey is the
// 1-based index of the correct slot.
type Question struct {
	ID        int                 `json:"question_id"`
	Prompt    string              `json:"prompt"`
	Choices   [ChoiceCount]string `json:"choices"`
	AnswerKey int                 `json:"answer_key"`
}

// HasChoice reports whether the zero-based choice is offered.
func (q Question) HasChoice(i int) bool {
	return i >= 0 && i < ChoiceCount && q.Choices[i] != ""
}

// Choice is an offered answer with its zero-based slot index.
type Choice struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// OfferedChoices returns the non-empty slots in order.
func (q Question) OfferedChoices() []Choice {
	out := make([]Choice, 0, ChoiceCount)
	for i, text := range q.Choices {
		if text != "" {
			out = append(out, Choice{Index: i, Text: text})
		}
	}
	return out
}

// ForStudent strips the answer key.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Choices: q.OfferedChoices(),
	}
}

// QuestionForStudent is a question without the answer key, sent to students.
type QuestionForStudent struct {
	ID      int      `json:"question_id"`
	Prompt  string   `json:"prompt"`
	Choices []Choice `json:"choices"`
}
