package forms

import "regexp"

// Requirement is one password rule and whether it is satisfied
type Requirement struct {
	Met  bool   `json:"met"`
	Text string `json:"text"`
}

// Strength scores a password by how many requirements it meets (0..5)
type Strength struct {
	Score        int           `json:"score"`
	Requirements []Requirement `json:"requirements"`
}

// Label returns the human-readable strength
func (s Strength) Label() string {
	return StrengthLabel(s.Score)
}

var passwordRequirements = []struct {
	re   *regexp.Regexp
	text string
}{
	{regexp.MustCompile(`.{6,}`), "At least 6 characters"},
	{digitChars, "At least 1 number"},
	{lowerChars, "At least 1 lowercase letter"},
	{upperChars, "At least 1 uppercase letter"},
	{specialChars, "At least 1 special character"},
}

var strengthLabels = [...]string{
	"Enter a password",
	"Weak password",
	"Medium password!",
	"Strong password!!",
	"Very strong password!!!",
}

// PasswordStrength checks pw against each requirement in display order
func PasswordStrength(pw string) Strength {
	s := Strength{Requirements: make([]Requirement, 0, len(passwordRequirements))}
	for _, req := range passwordRequirements {
		met := req.re.MatchString(pw)
		if met {
			s.Score++
		}
		s.Requirements = append(s.Requirements, Requirement{Met: met, Text: req.text})
	}
	return s
}

// StrengthLabel maps a score to its label. Scores above 4 share the top label.
func StrengthLabel(score int) string {
	switch {
	case score <= 0:
		return strengthLabels[0]
	case score >= len(strengthLabels):
		return strengthLabels[len(strengthLabels)-1]
	}
	return strengthLabels[score]
}
