package domain

// Stage names the answer pipeline states.
type Stage string

const (
	StageReceived    Stage = "received"
	StageClassified  Stage = "classified"
	StageRetrieved   Stage = "retrieved"
	StageConsulta    Stage = "consulta"
	StageAssistencia Stage = "assistencia"
	StageGlossario   Stage = "glossario"
	StageAnnotated   Stage = "annotated"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

type AnswerRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	// PriorTechnicalTerms are the technical terms used in the previous turn's response.
	PriorTechnicalTerms []string `json:"prior_technical_terms,omitempty"`
}

type RetrievalStats struct {
	ChunkCount int      `json:"chunk_count"`
	LawNames   []string `json:"law_names"`
}

type ClassificationSummary struct {
	Mode         Mode     `json:"mode"`
	Confidence   float64  `json:"confidence"`
	LegalAreas   []string `json:"legal_areas"`
	Urgency      Urgency  `json:"urgency"`
	Emotion      Emotion  `json:"emotion"`
	MainProblem  *string  `json:"main_problem,omitempty"`
	GlossaryTerm *string  `json:"glossary_term,omitempty"`
	Reasoning    string   `json:"reasoning"`
}

// AnswerPayload is the final result of one answer run.
type AnswerPayload struct {
	Question            string                `json:"question"`
	Answer              string                `json:"answer"`
	Mode                Mode                  `json:"mode"`
	NoContext           bool                  `json:"no_context,omitempty"`
	Retrieval           RetrievalStats        `json:"retrieval"`
	Classification      ClassificationSummary `json:"classification"`
	Facts               *ExtractedFacts       `json:"facts,omitempty"`
	Explanation         *Explanation          `json:"explanation,omitempty"`
	GlossarySuggestions []string              `json:"glossary_suggestions,omitempty"`
}

func SummarizeClassification(c ClassificationResult) ClassificationSummary {
	return ClassificationSummary{
		Mode:         c.Mode,
		Confidence:   c.Confidence,
		LegalAreas:   c.LegalAreas,
		Urgency:      c.Urgency,
		Emotion:      c.Emotion,
		MainProblem:  c.MainProblem,
		GlossaryTerm: c.GlossaryTerm,
		Reasoning:    c.Reasoning,
	}
}
