package triage

import "github.com/jwalitptl/triage-api/internal/model"

type QuestionKind string

const (
	KindYesNo QuestionKind = "yes_no"
	KindScale QuestionKind = "scale"
)

// DefaultScaleMax is used by scale questions that do not set their own maximum.
const DefaultScaleMax = 10

type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Kind     QuestionKind `json:"kind"`
	ScaleMax int          `json:"scale_max,omitempty"`
}

// Max returns the upper bound of a scale question.
func (q Question) Max() int {
	if q.ScaleMax > 0 {
		return q.ScaleMax
	}
	return DefaultScaleMax
}

type boolRule struct {
	question string
	points   int
}

type band struct {
	min    int
	points int
}

// scaleRule bands are ordered from the highest threshold down.
type scaleRule struct {
	question string
	bands    []band
}

type ruleSet struct {
	questions []Question
	bools     []boolRule
	scale     *scaleRule
}

// CategoryInfo is what the kiosk renders for a service category.
type CategoryInfo struct {
	ID        model.ServiceCategory `json:"id"`
	Label     string                `json:"label"`
	Questions []Question            `json:"questions"`
}

func yesNo(id, text string) Question {
	return Question{ID: id, Text: text, Kind: KindYesNo}
}

func scale(id, text string) Question {
	return Question{ID: id, Text: text, Kind: KindScale, ScaleMax: DefaultScaleMax}
}

var painIntensity = scale("pain_intensity", "Em uma escala de 0 a 10, qual a intensidade da dor?")

// categoryOrder is the order the kiosk lists categories in.
var categoryOrder = []model.ServiceCategory{
	model.CategoryHeadache,
	model.CategoryFever,
	model.CategoryDental,
	model.CategoryRespiratory,
	model.CategoryInjury,
	model.CategoryCheckup,
	model.CategoryVaccination,
	model.CategoryOther,
}

var rules = map[model.ServiceCategory]ruleSet{
	model.CategoryHeadache: {
		questions: []Question{
			yesNo("sudden_onset", "A dor de cabeça começou de forma súbita e intensa?"),
			yesNo("worst_ever", "É a pior dor de cabeça que você já teve?"),
			yesNo("vision_changes", "Está tendo alterações na visão?"),
			painIntensity,
		},
		bools: []boolRule{{"sudden_onset", 3}, {"worst_ever", 3}, {"vision_changes", 2}},
		scale: &scaleRule{"pain_intensity", []band{{8, 3}, {6, 2}, {4, 1}}},
	},
	model.CategoryFever: {
		questions: []Question{
			yesNo("high_fever", "A temperatura está acima de 39°C?"),
			yesNo("breathing_difficulty", "Está com dificuldade para respirar?"),
			yesNo("confusion", "Está confuso(a) ou desorientado(a)?"),
			scale("days_with_fever", "Há quantos dias está com febre? (0-10)"),
		},
		bools: []boolRule{{"high_fever", 3}, {"breathing_difficulty", 3}, {"confusion", 3}},
		scale: &scaleRule{"days_with_fever", []band{{5, 2}, {3, 1}}},
	},
	model.CategoryDental: {
		questions: []Question{
			yesNo("severe_pain", "Está com dor intensa que não passa com analgésicos?"),
			yesNo("swelling", "Há inchaço no rosto ou pescoço?"),
			yesNo("bleeding", "Há sangramento que não para?"),
			painIntensity,
		},
		bools: []boolRule{{"severe_pain", 2}, {"swelling", 2}, {"bleeding", 3}},
		scale: &scaleRule{"pain_intensity", []band{{8, 2}, {6, 1}}},
	},
	model.CategoryRespiratory: {
		questions: []Question{
			yesNo("severe_difficulty", "Está com muita dificuldade para respirar?"),
			yesNo("chest_pain", "Está com dor no peito?"),
			yesNo("blue_lips", "Os lábios ou dedos estão azulados?"),
			scale("breathing_difficulty", "Em uma escala de 0 a 10, qual a dificuldade para respirar?"),
		},
		bools: []boolRule{{"severe_difficulty", 4}, {"chest_pain", 3}, {"blue_lips", 4}},
		scale: &scaleRule{"breathing_difficulty", []band{{8, 3}, {6, 2}, {4, 1}}},
	},
	model.CategoryInjury: {
		questions: []Question{
			yesNo("severe_bleeding", "Há sangramento intenso que não para?"),
			yesNo("bone_exposed", "Há osso exposto ou deformidade visível?"),
			yesNo("cant_move", "Não consegue mover a parte afetada?"),
			painIntensity,
		},
		bools: []boolRule{{"severe_bleeding", 4}, {"bone_exposed", 3}, {"cant_move", 2}},
		scale: &scaleRule{"pain_intensity", []band{{8, 2}, {6, 1}}},
	},
	model.CategoryCheckup: {
		questions: []Question{
			yesNo("urgent_symptoms", "Está com algum sintoma que considera urgente?"),
			yesNo("chronic_condition", "Tem alguma condição crônica que precisa acompanhamento?"),
			yesNo("medication_issue", "Está com problema relacionado a medicamentos?"),
		},
		bools: []boolRule{{"urgent_symptoms", 2}, {"chronic_condition", 1}, {"medication_issue", 1}},
	},
	model.CategoryVaccination: {
		questions: []Question{
			yesNo("allergic_reaction", "Já teve reação alérgica grave a alguma vacina?"),
			yesNo("fever_now", "Está com febre agora?"),
			yesNo("immunocompromised", "Tem alguma condição que afeta o sistema imunológico?"),
		},
		bools: []boolRule{{"allergic_reaction", 2}, {"fever_now", 1}, {"immunocompromised", 1}},
	},
	model.CategoryOther: {
		questions: []Question{
			yesNo("severe_symptoms", "Está com sintomas graves ou que pioraram rapidamente?"),
			yesNo("pain_present", "Está com dor?"),
			yesNo("urgent_care", "Considera que precisa de atendimento urgente?"),
			scale("symptom_intensity", "Em uma escala de 0 a 10, qual a gravidade dos sintomas?"),
		},
		bools: []boolRule{{"severe_symptoms", 3}, {"pain_present", 1}, {"urgent_care", 2}},
		scale: &scaleRule{"symptom_intensity", []band{{8, 3}, {6, 2}, {4, 1}}},
	},
}

// IsKnown reports whether c has a questionnaire.
func IsKnown(c model.ServiceCategory) bool {
	_, ok := rules[c]
	return ok
}

// Questions returns the ordered questionnaire for a category, or nil.
func Questions(c model.ServiceCategory) []Question {
	rs, ok := rules[c]
	if !ok {
		return nil
	}
	out := make([]Question, len(rs.questions))
	copy(out, rs.questions)
	return out
}

// Categories lists every category with its label and questions.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		out = append(out, CategoryInfo{ID: c, Label: c.Label(), Questions: Questions(c)})
	}
	return out
}
