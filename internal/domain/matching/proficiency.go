package matching

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Proficiency is a freelancer's self-declared level for one skill.
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "BEGINNER"
	ProficiencyIntermediate Proficiency = "INTERMEDIATE"
	ProficiencyAdvanced     Proficiency = "ADVANCED"
	ProficiencyExpert       Proficiency = "EXPERT"
)

var proficiencyWeights = map[Proficiency]decimal.Decimal{
	ProficiencyBeginner:     decimal.RequireFromString("0.4"),
	ProficiencyIntermediate: decimal.RequireFromString("0.6"),
	ProficiencyAdvanced:     decimal.RequireFromString("0.8"),
	ProficiencyExpert:       decimal.RequireFromString("1.0"),
}

// ParseProficiency accepts the level name in any case.
func ParseProficiency(s string) (Proficiency, bool) {
	p := Proficiency(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// Weight returns the level's weight in [0,1]. Unknown levels weigh zero.
func (p Proficiency) Weight() decimal.Decimal {
	w, ok := proficiencyWeights[p]
	if !ok {
		return decimal.Zero
	}
	return w
}

// Valid reports whether p is one of the four known levels.
func (p Proficiency) Valid() bool {
	_, ok := proficiencyWeights[p]
	return ok
}
