package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
)

const (
	classificationTemperature = 0.1
	classificationMaxTokens   = 512
	factsTemperature          = 0.1
	factsMaxTokens            = 1024
)

// IntentClassifier turns a question into a validated ClassificationResult.
// Backend output is treated as untrusted input and any defect yields the fallback.
type IntentClassifier struct {
	generator ports.Generator
	logger    *slog.Logger
}

func NewIntentClassifier(generator ports.Generator, logger *slog.Logger) *IntentClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentClassifier{generator: generator, logger: logger}
}

type rawClassification struct {
	Mode            *string  `json:"mode"`
	Confidence      *float64 `json:"confidence"`
	LegalAreas      []string `json:"legal_areas"`
	Urgency         *string  `json:"urgency"`
	Emotion         *string  `json:"emotion"`
	MainProblem     *string  `json:"main_problem"`
	Vulnerabilities []string `json:"vulnerabilities"`
	GlossaryTerm    *string  `json:"glossary_term"`
	Reasoning       *string  `json:"reasoning"`
}

// Classify never fails: backend errors and invalid payloads produce
// domain.FallbackClassification.
func (c *IntentClassifier) Classify(ctx context.Context, question string) domain.ClassificationResult {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.FallbackClassification()
	}

	out, err := c.generator.Generate(ctx, classificationInstructions, "Pergunta: "+question, domain.GenerateOptions{
		Temperature:     classificationTemperature,
		MaxOutputTokens: classificationMaxTokens,
		Schema:          classificationSchema(),
	})
	if err != nil {
		c.logger.Warn("classification_fallback", "reason", "backend", "error", err)
		return domain.FallbackClassification()
	}

	var raw rawClassification
	if err := decodeJSONObject(out, &raw); err != nil {
		c.logger.Warn("classification_fallback", "reason", "decode", "error", err)
		return domain.FallbackClassification()
	}
	result, err := raw.validate()
	if err != nil {
		c.logger.Warn("classification_fallback", "reason", "invalid", "error", err)
		return domain.FallbackClassification()
	}
	return result
}

func (r rawClassification) validate() (domain.ClassificationResult, error) {
	if r.Mode == nil || r.Confidence == nil || r.Urgency == nil || r.Emotion == nil {
		return domain.ClassificationResult{}, errors.New("missing required field")
	}
	mode, err := domain.ParseMode(*r.Mode)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("mode: %w", err)
	}
	urgency, err := domain.ParseUrgency(*r.Urgency)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("urgency: %w", err)
	}
	emotion, err := domain.ParseEmotion(*r.Emotion)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("emotion: %w", err)
	}
	confidence := *r.Confidence
	if confidence < 0 || confidence > 1 {
		return domain.ClassificationResult{}, fmt.Errorf("confidence %v out of range", confidence)
	}

	result := domain.ClassificationResult{
		Mode:            mode,
		Confidence:      confidence,
		LegalAreas:      cleanList(r.LegalAreas, true),
		Urgency:         urgency,
		Emotion:         emotion,
		Vulnerabilities: []string{},
	}
	if len(result.LegalAreas) == 0 {
		result.LegalAreas = []string{"geral"}
	}
	if r.Reasoning != nil {
		result.Reasoning = strings.TrimSpace(*r.Reasoning)
	}

	switch mode {
	case domain.ModeAssistencia:
		problem := trimmedOrNil(r.MainProblem)
		if problem == nil {
			return domain.ClassificationResult{}, errors.New("assistencia requires main_problem")
		}
		result.MainProblem = problem
		result.Vulnerabilities = cleanList(r.Vulnerabilities, false)
	case domain.ModeGlossario:
		result.GlossaryTerm = trimmedOrNil(r.GlossaryTerm)
	}
	return result, nil
}

type rawFacts struct {
	MainProblem        *string  `json:"main_problem"`
	SecondaryProblems  []string `json:"secondary_problems"`
	Timeline           *string  `json:"timeline"`
	Parties            []string `json:"parties"`
	DependentsCount    *int     `json:"dependents_count"`
	FinancialSituation *string  `json:"financial_situation"`
	DocumentsMentioned []string `json:"documents_mentioned"`
	ActionsTaken       []string `json:"actions_taken"`
	SpecificQuestions  []string `json:"specific_questions"`
}

// ExtractFacts returns nil without calling the backend unless the question
// was classified as assistencia. Backend failures also yield nil.
func (c *IntentClassifier) ExtractFacts(ctx context.Context, question string, classification domain.ClassificationResult) *domain.ExtractedFacts {
	if classification.Mode != domain.ModeAssistencia {
		return nil
	}

	user := "Situação: " + strings.TrimSpace(question)
	if classification.MainProblem != nil {
		user += "\nProblema principal identificado: " + *classification.MainProblem
	}
	out, err := c.generator.Generate(ctx, factsInstructions, user, domain.GenerateOptions{
		Temperature:     factsTemperature,
		MaxOutputTokens: factsMaxTokens,
		Schema:          factsSchema(),
	})
	if err != nil {
		c.logger.Warn("facts_unavailable", "reason", "backend", "error", err)
		return nil
	}

	var raw rawFacts
	if err := decodeJSONObject(out, &raw); err != nil {
		c.logger.Warn("facts_unavailable", "reason", "decode", "error", err)
		return nil
	}
	facts, err := raw.validate(classification)
	if err != nil {
		c.logger.Warn("facts_unavailable", "reason", "invalid", "error", err)
		return nil
	}
	return facts
}

func (r rawFacts) validate(classification domain.ClassificationResult) (*domain.ExtractedFacts, error) {
	if r.FinancialSituation == nil {
		return nil, errors.New("missing financial_situation")
	}
	financial, err := domain.ParseFinancialSituation(*r.FinancialSituation)
	if err != nil {
		return nil, fmt.Errorf("financial_situation: %w", err)
	}
	dependents := 0
	if r.DependentsCount != nil {
		if *r.DependentsCount < 0 {
			return nil, fmt.Errorf("dependents_count %d is negative", *r.DependentsCount)
		}
		dependents = *r.DependentsCount
	}

	facts := &domain.ExtractedFacts{
		SecondaryProblems:  cleanList(r.SecondaryProblems, false),
		Parties:            cleanList(r.Parties, false),
		DependentsCount:    dependents,
		FinancialSituation: financial,
		DocumentsMentioned: cleanList(r.DocumentsMentioned, false),
		ActionsTaken:       cleanList(r.ActionsTaken, false),
		SpecificQuestions:  cleanList(r.SpecificQuestions, false),
	}
	if p := trimmedOrNil(r.MainProblem); p != nil {
		facts.MainProblem = *p
	} else if classification.MainProblem != nil {
		facts.MainProblem = *classification.MainProblem
	}
	if r.Timeline != nil {
		facts.Timeline = strings.TrimSpace(*r.Timeline)
	}
	return facts, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

// cleanList trims items, drops empties and duplicates, and keeps order.
func cleanList(items []string, lower bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item == "" || slices.Contains(out, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}
