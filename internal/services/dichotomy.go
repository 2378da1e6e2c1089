package services

import "math"

// DefaultDichotomyMessages are shown when a question configures none.
var DefaultDichotomyMessages = [3]string{"🖤", "Meh. Balloons?", "... in between ..."}

// Dichotomy is a slider question whose answer lies in [0, 1] between two poles.
type Dichotomy struct {
	Name     string    `json:"name" yaml:"name"`
	Label    string    `json:"label" yaml:"label"`
	Question string    `json:"question" yaml:"question"`
	Messages [3]string `json:"messages" yaml:"messages"`
}

// NewDichotomy returns a question with the default label and messages.
func NewDichotomy(name string) Dichotomy {
	return Dichotomy{Name: name, Label: "Confidence", Question: "Dichotomies, including time...", Messages: DefaultDichotomyMessages}
}

// Validate rejects answers outside [0, 1].
func (d Dichotomy) Validate(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return NewInvalidError("dichotomy answer must be between 0 and 1")
	}
	return nil
}

// Classify picks the feedback for an answer: near the first pole (< 0.1),
// near the second (> 0.9), or in between. The bounds 0.1 and 0.9 get no
// feedback, and neither does 0, the slider's resting position, which counts
// as not yet answered.
func (d Dichotomy) Classify(v float64) (string, bool) {
	msgs := d.Messages
	if msgs == ([3]string{}) {
		msgs = DefaultDichotomyMessages
	}
	switch {
	case v == 0:
		return "", false
	case v < 0.1:
		return msgs[0], true
	case v > 0.9:
		return msgs[1], true
	case v > 0.1 && v < 0.9:
		return msgs[2], true
	}
	return "", false
}
