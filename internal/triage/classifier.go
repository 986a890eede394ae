// Package triage turns a kiosk questionnaire into a Manchester-style
// priority. Everything here is pure and safe for concurrent use.
package triage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

// Classify validates the answers and maps their score onto a priority.
func Classify(category model.ServiceCategory, answers model.Answers) (model.Priority, error) {
	if err := Validate(category, answers); err != nil {
		return "", err
	}
	return PriorityForScore(Score(category, answers)), nil
}

// Score sums the rule points for a category. Missing or wrongly typed
// answers contribute nothing; use Validate to reject them first.
func Score(category model.ServiceCategory, answers model.Answers) int {
	rs, ok := rules[category]
	if !ok {
		return 0
	}

	score := 0
	for _, r := range rs.bools {
		if b, ok := answers[r.question].(bool); ok && b {
			score += r.points
		}
	}
	if rs.scale != nil {
		if v, ok := asInt(answers[rs.scale.question]); ok {
			score += rs.scale.points(v)
		}
	}
	return score
}

func (s *scaleRule) points(v int) int {
	for _, b := range s.bands {
		if v >= b.min {
			return b.points
		}
	}
	return 0
}

// PriorityForScore is the shared score to priority table.
func PriorityForScore(score int) model.Priority {
	switch {
	case score >= 9:
		return model.PriorityRed
	case score >= 6:
		return model.PriorityOrange
	case score >= 4:
		return model.PriorityYellow
	case score >= 2:
		return model.PriorityGreen
	default:
		return model.PriorityBlue
	}
}

// Validate checks that every question of the category is answered with a
// value of the right type and range, and that no foreign ids are present.
func Validate(category model.ServiceCategory, answers model.Answers) error {
	rs, ok := rules[category]
	if !ok {
		return apperrors.NewValidation(fmt.Sprintf("unknown service category %q", category), "service_type")
	}

	var invalid, missing []string
	known := make(map[string]struct{}, len(rs.questions))
	for _, q := range rs.questions {
		known[q.ID] = struct{}{}
		raw, present := answers[q.ID]
		if !present || raw == nil {
			missing = append(missing, q.ID)
			continue
		}
		switch q.Kind {
		case KindYesNo:
			if _, ok := raw.(bool); !ok {
				invalid = append(invalid, q.ID)
			}
		case KindScale:
			v, ok := asInt(raw)
			if !ok || v < 0 || v > q.Max() {
				invalid = append(invalid, q.ID)
			}
		}
	}

	var unknown []string
	for id := range answers {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)

	if len(missing) > 0 {
		return apperrors.MissingFields(missing...)
	}
	if len(invalid) > 0 || len(unknown) > 0 {
		fields := append(invalid, unknown...)
		return apperrors.NewValidation("invalid answers", fields...)
	}
	return nil
}

// asInt accepts Go integers and integral JSON numbers.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
