package normalize

// Reconcile resolves the correct answer of a draft to both its index and its
// text.
//
// A valid index always wins, even when a text answer disagrees with it.
// Without one, the text must equal an option exactly (case-sensitive) and the
// first matching position is used. A text answer matching no option is
// rejected rather than defaulted to the first option.
func Reconcile(d QuizDraft) (QuizItem, error) {
	item := QuizItem{
		Question:    d.Question,
		Options:     append([]string(nil), d.Options...),
		Explanation: d.Explanation,
	}

	if d.Index != nil && *d.Index >= 0 && *d.Index < len(d.Options) {
		item.AnswerIndex = *d.Index
		item.AnswerText = d.Options[*d.Index]
		return item, nil
	}

	if d.Text == nil {
		return QuizItem{}, ErrNoCorrectAnswer
	}
	for i, opt := range d.Options {
		if opt == *d.Text {
			item.AnswerIndex = i
			item.AnswerText = opt
			return item, nil
		}
	}
	return QuizItem{}, ErrUnmatchedAnswer
}
