package constraint

import (
	"strconv"
	"strings"
)

// Token is one weighted negative-prompt term.
type Token struct {
	Text     string  `json:"text"`
	Emphasis float64 `json:"emphasis"`
	Source   string  `json:"source,omitempty"`
}

// String renders the token in "(text:1.43)" emphasis syntax.
func (t Token) String() string {
	return "(" + t.Text + ":" + strconv.FormatFloat(t.Emphasis, 'f', 2, 64) + ")"
}

// AntiDriftThreshold is the identity weight above which anti-drift tokens
// are appended.
const AntiDriftThreshold = 0.7

var antiDrift = []string{
	"different face shape",
	"altered facial features",
	"changed eye shape",
	"different skin color",
}

// Emphasis returns the multiplier for a constraint weight.
func Emphasis(weight float64) float64 {
	switch {
	case weight >= 0.9:
		return 1.5
	case weight >= 0.7:
		return 1.2
	default:
		return 1.0
	}
}

// Tokens converts active constraints into weighted tokens, in list order,
// followed by the anti-drift tokens when identityWeight exceeds 0.7.
func Tokens(constraints []Negative, identityWeight float64) []Token {
	tokens := make([]Token, 0, len(constraints)+len(antiDrift))
	for _, n := range constraints {
		if !n.Active() {
			continue
		}
		text := n.Description
		if text == "" {
			text = strings.ReplaceAll(n.ID, "_", " ")
		}
		tokens = append(tokens, Token{Text: text, Emphasis: n.Weight * Emphasis(n.Weight), Source: n.ID})
	}

	if identityWeight > AntiDriftThreshold {
		mult := 1.3
		if identityWeight >= 0.9 {
			mult = 1.5
		}
		for _, text := range antiDrift {
			tokens = append(tokens, Token{Text: text, Emphasis: identityWeight * mult, Source: "identity"})
		}
	}
	return tokens
}

// NegativePrompt renders tokens as a comma-joined negative prompt.
func NegativePrompt(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
