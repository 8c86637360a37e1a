package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-quiz/core"
)

var (
	correctAnswerTag  = "correct_answer"
	correctAnswerText = "the correct answer must be one of the options"

	uniqueTag  = "unique"
	uniqueText = "{0} must not contain duplicates"
)

// InitValidators registers the quiz validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, correctAnswerTag, correctAnswerText)
	core.RegisterCustomTranslation(validate, translator, uniqueTag, uniqueText, true)
}

// questionStructValidation checks that NewQuestion.CorrectAnswer is one of NewQuestion.Options
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok || nq.CorrectAnswer == "" {
		return
	}
	q := Question{Options: nq.Options}
	if !q.HasOption(nq.CorrectAnswer) {
		sl.ReportError(nq.CorrectAnswer, "correct_answer", "CorrectAnswer", correctAnswerTag, "")
	}
}
