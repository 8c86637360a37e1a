package quiz

import "math"

// Score returns the sum of the points of the correctly answered questions & the sum of all points.
// unanswered questions are worth 0, there is no partial credit nor negative marking.
func Score(questions []Question, answers Answers) (score, totalPoints int) {
	for _, q := range questions {
		totalPoints += q.Points
		if opt, ok := answers[q.ID]; ok && opt == q.CorrectAnswer {
			score += q.Points
		}
	}
	return score, totalPoints
}

// Percentage returns score/totalPoints as a rounded percentage, 0 if totalPoints is not positive.
func Percentage(score, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalPoints) * 100))
}
