package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Mode string

const (
	ModeConsulta    Mode = "consulta"
	ModeAssistencia Mode = "assistencia"
	ModeGlossario   Mode = "glossario"
)

type Urgency string

const (
	UrgencyBaixa Urgency = "baixa"
	UrgencyMedia Urgency = "media"
	UrgencyAlta  Urgency = "alta"
)

type Emotion string

const (
	EmotionNeutra      Emotion = "neutra"
	EmotionPreocupacao Emotion = "preocupacao"
	EmotionDesespero   Emotion = "desespero"
	EmotionRaiva       Emotion = "raiva"
	EmotionConfusao    Emotion = "confusao"
)

type FinancialSituation string

const (
	FinancialEstavel    FinancialSituation = "estavel"
	FinancialVulneravel FinancialSituation = "vulneravel"
	FinancialCritica    FinancialSituation = "critica"
)

var (
	Modes               = []string{string(ModeConsulta), string(ModeAssistencia), string(ModeGlossario)}
	Urgencies           = []string{string(UrgencyBaixa), string(UrgencyMedia), string(UrgencyAlta)}
	Emotions            = []string{string(EmotionNeutra), string(EmotionPreocupacao), string(EmotionDesespero), string(EmotionRaiva), string(EmotionConfusao)}
	FinancialSituations = []string{string(FinancialEstavel), string(FinancialVulneravel), string(FinancialCritica)}
)

// ClassificationResult is the validated intent record for one question.
// MainProblem and Vulnerabilities are set only for assistencia, GlossaryTerm only for glossario.
type ClassificationResult struct {
	Mode            Mode     `json:"mode"`
	Confidence      float64  `json:"confidence"`
	LegalAreas      []string `json:"legal_areas"`
	Urgency         Urgency  `json:"urgency"`
	Emotion         Emotion  `json:"emotion"`
	MainProblem     *string  `json:"main_problem"`
	Vulnerabilities []string `json:"vulnerabilities"`
	GlossaryTerm    *string  `json:"glossary_term"`
	Reasoning       string   `json:"reasoning"`
}

// FallbackClassification is returned whenever the backend cannot produce a valid record.
func FallbackClassification() ClassificationResult {
	return ClassificationResult{
		Mode:            ModeConsulta,
		Confidence:      0.5,
		LegalAreas:      []string{"geral"},
		Urgency:         UrgencyMedia,
		Emotion:         EmotionNeutra,
		Vulnerabilities: []string{},
		Reasoning:       "fallback",
	}
}

// IsFallback reports whether c is the deterministic fallback record.
func (c ClassificationResult) IsFallback() bool {
	return c.Reasoning == "fallback"
}

type ExtractedFacts struct {
	MainProblem        string             `json:"main_problem"`
	SecondaryProblems  []string           `json:"secondary_problems"`
	Timeline           string             `json:"timeline"`
	Parties            []string           `json:"parties"`
	DependentsCount    int                `json:"dependents_count"`
	FinancialSituation FinancialSituation `json:"financial_situation"`
	DocumentsMentioned []string           `json:"documents_mentioned"`
	ActionsTaken       []string           `json:"actions_taken"`
	SpecificQuestions  []string           `json:"specific_questions"`
}

func ParseMode(raw string) (Mode, error) {
	v, err := parseEnum(raw, Modes)
	return Mode(v), err
}

func ParseUrgency(raw string) (Urgency, error) {
	v, err := parseEnum(raw, Urgencies)
	return Urgency(v), err
}

func ParseEmotion(raw string) (Emotion, error) {
	v, err := parseEnum(raw, Emotions)
	return Emotion(v), err
}

func ParseFinancialSituation(raw string) (FinancialSituation, error) {
	v, err := parseEnum(raw, FinancialSituations)
	return FinancialSituation(v), err
}

// parseEnum accepts case and accent variants ("Assistência", "MÉDIA") of a closed value set.
func parseEnum(raw string, allowed []string) (string, error) {
	folded := FoldAccents(strings.ToLower(strings.TrimSpace(raw)))
	for _, v := range allowed {
		if folded == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("value %q not in %v", raw, allowed)
}

// FoldAccents strips combining marks: "preocupação" -> "preocupacao".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
