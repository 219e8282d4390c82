package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
)

const (
	defaultConsultaTopK    = 5
	defaultAssistenciaTopK = 7
	explainTermTopK        = 3

	consultaTemperature    = 0.3
	consultaMaxTokens      = 2048
	assistenciaTemperature = 0.5
	assistenciaMaxTokens   = 3000
)

// AnswerUseCase runs one question through
// received -> classified -> retrieved -> mode -> annotated -> done.
// It keeps no state across runs beyond its collaborators.
type AnswerUseCase struct {
	classifier *IntentClassifier
	glossary   *GlossaryResolver
	index      ports.VectorIndex
	generator  ports.Generator
	logger     *slog.Logger
}

func NewAnswerUseCase(
	classifier *IntentClassifier,
	glossary *GlossaryResolver,
	index ports.VectorIndex,
	generator ports.Generator,
	logger *slog.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		classifier: classifier,
		glossary:   glossary,
		index:      index,
		generator:  generator,
		logger:     logger,
	}
}

type answerRun struct {
	question       string
	classification domain.ClassificationResult
	results        []domain.SearchResult
	stage          domain.Stage
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerPayload, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is required"))
	}
	run := &answerRun{question: question, stage: domain.StageReceived}

	run.classification = uc.classifier.Classify(ctx, question)
	if detected := uc.glossary.DetectRequest(question, req.PriorTechnicalTerms); detected != nil {
		run.classification = asGlossaryRequest(run.classification, *detected)
	}
	uc.advance(run, domain.StageClassified)

	query, topK := retrievalPlan(run.classification, question, req.TopK)
	results, err := uc.index.Search(ctx, query, topK)
	if err != nil {
		if run.classification.Mode != domain.ModeGlossario || !domain.IsKind(err, domain.ErrNotInitialized) {
			return nil, uc.fail(run, err)
		}
		results = nil
	}
	run.results = results
	uc.advance(run, domain.StageRetrieved)

	if len(results) == 0 && run.classification.Mode != domain.ModeGlossario {
		uc.advance(run, domain.StageDone)
		return &domain.AnswerPayload{
			Question:       question,
			Answer:         noContextAnswer,
			Mode:           run.classification.Mode,
			NoContext:      true,
			Retrieval:      domain.RetrievalStats{LawNames: []string{}},
			Classification: domain.SummarizeClassification(run.classification),
		}, nil
	}

	payload := &domain.AnswerPayload{
		Question:       question,
		Mode:           run.classification.Mode,
		Retrieval:      domain.RetrievalStats{ChunkCount: len(results), LawNames: distinctLawNames(results)},
		Classification: domain.SummarizeClassification(run.classification),
	}

	switch run.classification.Mode {
	case domain.ModeAssistencia:
		uc.advance(run, domain.StageAssistencia)
		facts := uc.classifier.ExtractFacts(ctx, question, run.classification)
		answer, err := uc.generate(ctx, "generate assistencia answer", assistenciaInstructions,
			buildAssistenciaPrompt(question, run.classification, facts, results),
			assistenciaTemperature, assistenciaMaxTokens)
		if err != nil {
			return nil, uc.fail(run, err)
		}
		payload.Answer = answer
		payload.Facts = facts
	case domain.ModeGlossario:
		uc.advance(run, domain.StageGlossario)
		term := question
		if run.classification.GlossaryTerm != nil {
			term = *run.classification.GlossaryTerm
		}
		explanation, err := uc.glossary.Explain(ctx, term, results, "")
		if err != nil {
			return nil, uc.fail(run, err)
		}
		payload.Answer = explanation.ExplanationText
		payload.Explanation = explanation
	default:
		uc.advance(run, domain.StageConsulta)
		answer, err := uc.generate(ctx, "generate consulta answer", consultaInstructions,
			buildConsultaPrompt(question, results),
			consultaTemperature, consultaMaxTokens)
		if err != nil {
			return nil, uc.fail(run, err)
		}
		payload.Answer = answer
	}

	if run.classification.Mode != domain.ModeGlossario {
		payload.GlossarySuggestions = uc.glossary.ExtractTechnicalTerms(payload.Answer)
		uc.advance(run, domain.StageAnnotated)
	}
	uc.advance(run, domain.StageDone)
	uc.logger.Info("answer_completed",
		"mode", payload.Mode,
		"chunks", payload.Retrieval.ChunkCount,
		"classification_fallback", run.classification.IsFallback(),
	)
	return payload, nil
}

// ExplainTerm explains a term grounded on up to three retrieved chunks.
// An index that has not been built yet yields an ungrounded explanation.
func (uc *AnswerUseCase) ExplainTerm(ctx context.Context, term string) (*domain.Explanation, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "explain term", errors.New("term is required"))
	}

	results, err := uc.index.Search(ctx, term, explainTermTopK)
	if err != nil && !domain.IsKind(err, domain.ErrNotInitialized) {
		return nil, domain.WrapError(domain.ErrProcessingFailed, "explain term", &domain.StageError{Stage: domain.StageRetrieved, Err: err})
	}

	explanation, err := uc.glossary.Explain(ctx, term, results, "")
	if err != nil {
		return nil, domain.WrapError(domain.ErrProcessingFailed, "explain term", &domain.StageError{Stage: domain.StageGlossario, Err: err})
	}
	return explanation, nil
}

func (uc *AnswerUseCase) IndexStats() domain.IndexStats {
	return uc.index.Stats()
}

func (uc *AnswerUseCase) GlossaryStats() domain.GlossaryStats {
	return uc.glossary.Stats()
}

func (uc *AnswerUseCase) ClearGlossaryCache() {
	uc.glossary.ClearCache()
}

func (uc *AnswerUseCase) generate(ctx context.Context, operation, instructions, prompt string, temperature float64, maxTokens int) (string, error) {
	text, err := uc.generator.Generate(ctx, instructions, prompt, domain.GenerateOptions{
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrGenerationBackend, operation, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrGenerationBackend, operation, errors.New("empty answer"))
	}
	return text, nil
}

func (uc *AnswerUseCase) advance(run *answerRun, next domain.Stage) {
	uc.logger.Debug("answer_stage", "from", run.stage, "to", next, "mode", run.classification.Mode)
	run.stage = next
}

// fail moves the run to the failed state and wraps the cause with the stage
// where the run stopped.
func (uc *AnswerUseCase) fail(run *answerRun, err error) error {
	stage := run.stage
	run.stage = domain.StageFailed
	uc.logger.Error("answer_failed", "stage", stage, "mode", run.classification.Mode, "error", err)
	return domain.WrapError(domain.ErrProcessingFailed, "answer question", &domain.StageError{Stage: stage, Err: err})
}

// asGlossaryRequest switches a classification to glossario for a detected term.
func asGlossaryRequest(c domain.ClassificationResult, detected domain.GlossaryRequest) domain.ClassificationResult {
	term := detected.Term
	c.Mode = domain.ModeGlossario
	c.GlossaryTerm = &term
	c.Confidence = max(c.Confidence, detected.Confidence)
	c.MainProblem = nil
	c.Vulnerabilities = []string{}
	if c.Reasoning == "" || c.IsFallback() {
		c.Reasoning = "pedido de definição detetado (" + string(detected.Source) + ")"
	}
	return c
}

func retrievalPlan(c domain.ClassificationResult, question string, requestedTopK int) (string, int) {
	query := question
	if c.Mode == domain.ModeGlossario && c.GlossaryTerm != nil {
		query = *c.GlossaryTerm
	}
	switch {
	case requestedTopK > 0:
		return query, requestedTopK
	case c.Mode == domain.ModeAssistencia:
		return query, defaultAssistenciaTopK
	default:
		return query, defaultConsultaTopK
	}
}
