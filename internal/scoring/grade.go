package scoring

import "github.com/stemsi/exstem-quiz/internal/model"

// Grade maps a percentage to a letter grade.
func Grade(pct int) string {
	switch {
	case pct >= 90:
		return "A+"
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B"
	case pct >= 60:
		return "C"
	case pct >= 50:
		return "D"
	default:
		return "F"
	}
}

// Feedback is the short message shown next to a grade.
func Feedback(pct int) string {
	switch {
	case pct >= 80:
		return "Excellent work!"
	case pct >= 60:
		return "Good job!"
	case pct >= 40:
		return "Keep practicing!"
	default:
		return "Don't give up!"
	}
}

// Difficulty labels a test by its time limit in minutes. A missing limit
// is treated as the default ten minute budget.
func Difficulty(minutes *int) model.Difficulty {
	m := 10
	if minutes != nil {
		m = *minutes
	}
	switch {
	case m <= 30:
		return model.DifficultyQuick
	case m <= 60:
		return model.DifficultyStandard
	default:
		return model.DifficultyExtended
	}
}

// PacingFeedback comments on time efficiency.
func PacingFeedback(efficiency int) string {
	switch {
	case efficiency >= 50:
		return "Great time management!"
	case efficiency >= 25:
		return "Good pacing!"
	default:
		return "Consider working faster next time."
	}
}
