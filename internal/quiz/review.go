package quiz

// ReviewItem is the per-question outcome shown after submission.
type ReviewItem struct {
	Number       int      `json:"number"`
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	UserChoice   *int     `json:"user_choice"`
	IsCorrect    bool     `json:"is_correct"`
	Source       string   `json:"source"`
	Explanation  string   `json:"explanation,omitempty"`
}

type Result struct {
	Score   int          `json:"score"`
	Total   int          `json:"total"`
	Percent float64      `json:"percent"`
	Items   []ReviewItem `json:"items"`
}

// Percent returns score as a percentage of total, 0 for an empty exam.
func Percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// Review builds the aggregate score and per-question review of a submitted
// session.
func Review(s *Session) (Result, error) {
	if !s.Submitted {
		return Result{}, ErrNotSubmitted
	}

	items := make([]ReviewItem, 0, len(s.Items))
	for idx, item := range s.Items {
		review := ReviewItem{
			Number:       idx + 1,
			QuestionID:   item.Question.ID,
			QuestionText: item.Question.Question,
			Options:      item.Question.Options,
			CorrectIndex: item.Question.CorrectIndex,
			Source:       item.Question.Source,
			Explanation:  item.Question.Explanation,
		}
		if item.UserChoice != nil {
			choice := *item.UserChoice
			review.UserChoice = &choice
		}
		if item.IsCorrect != nil {
			review.IsCorrect = *item.IsCorrect
		}
		items = append(items, review)
	}

	return Result{
		Score:   s.Score,
		Total:   len(s.Items),
		Percent: Percent(s.Score, len(s.Items)),
		Items:   items,
	}, nil
}
