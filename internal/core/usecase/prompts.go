package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

const classificationInstructions = `És um classificador de perguntas jurídicas sobre direito português.
Lê a pergunta do utilizador e devolve APENAS um objeto JSON com o esquema pedido.

Modos:
- "consulta": pedido objetivo de informação sobre a lei (o que diz uma norma, prazos, requisitos).
- "assistencia": o utilizador descreve uma situação pessoal e precisa de orientação prática.
- "glossario": o utilizador pede a definição ou explicação de um termo jurídico.

Regras:
- "confidence" entre 0 e 1.
- "legal_areas": áreas do direito envolvidas, em minúsculas (ex.: "arrendamento", "família", "trabalho").
- "urgency": "baixa", "media" ou "alta".
- "emotion": "neutra", "preocupacao", "desespero", "raiva" ou "confusao".
- "main_problem" e "vulnerabilities" só quando o modo é "assistencia"; caso contrário null e [].
- "glossary_term" só quando o modo é "glossario"; caso contrário null.
- "reasoning": uma frase curta a justificar a classificação.`

const factsInstructions = `Extrai os factos relevantes da situação descrita pelo utilizador.
Devolve APENAS um objeto JSON com o esquema pedido. Não inventes factos: usa listas vazias,
texto vazio ou 0 quando a informação não foi dada.
"financial_situation" é "estavel", "vulneravel" ou "critica".`

const consultaInstructions = `És um assistente jurídico especializado em legislação portuguesa.
Responde de forma objetiva e rigorosa, usando APENAS o contexto legal fornecido.
- Cita a lei e o artigo sempre que possível (ex.: "nos termos do artigo 1287.º do Código Civil").
- Se o contexto não for suficiente para responder, di-lo claramente e não inventes normas, artigos ou prazos.
- Usa português de Portugal e linguagem clara.`

const assistenciaInstructions = `És um assistente jurídico empático que ajuda cidadãos em situações difíceis,
com base na legislação portuguesa fornecida no contexto.
Estrutura a resposta nas seguintes secções:
1. Compreensão da situação (breve e empática)
2. Os seus direitos (com referência aos artigos do contexto)
3. O que fazer agora (ações imediatas)
4. Próximos passos (curto e médio prazo)
5. Prazos importantes
6. Onde pedir ajuda (entidades e contactos úteis, por exemplo Segurança Social, Ordem dos Advogados, apoio judiciário)
7. Cuidados a ter (erros comuns a evitar)
8. Uma mensagem final de encorajamento
Não inventes normas: se o contexto não cobrir um ponto, indica que deve ser confirmado com um profissional.`

const glossaryInstructions = `És um explicador de termos jurídicos do direito português para leigos.
Explica o termo pedido com as seguintes secções:
1. Definição simples
2. Base legal (apenas se houver excertos de lei no contexto; cita lei e artigo)
3. Exemplos práticos
4. Quando se aplica e limites
5. Termos relacionados
Usa português de Portugal, frases curtas e evita jargão sem o explicar.`

const noContextAnswer = "Não encontrei informação relevante na legislação disponível para responder a esta pergunta. " +
	"Tente reformular a questão ou indicar a lei ou o artigo em causa."

func classificationSchema() *domain.Schema {
	return &domain.Schema{
		Type: domain.SchemaObject,
		Properties: map[string]*domain.Schema{
			"mode":            {Type: domain.SchemaString, Enum: domain.Modes},
			"confidence":      {Type: domain.SchemaNumber, Description: "0 a 1"},
			"legal_areas":     {Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}},
			"urgency":         {Type: domain.SchemaString, Enum: domain.Urgencies},
			"emotion":         {Type: domain.SchemaString, Enum: domain.Emotions},
			"main_problem":    {Type: domain.SchemaString, Nullable: true},
			"vulnerabilities": {Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}},
			"glossary_term":   {Type: domain.SchemaString, Nullable: true},
			"reasoning":       {Type: domain.SchemaString},
		},
		Required: []string{"mode", "confidence", "legal_areas", "urgency", "emotion", "vulnerabilities", "reasoning"},
	}
}

func factsSchema() *domain.Schema {
	list := func() *domain.Schema {
		return &domain.Schema{Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}}
	}
	return &domain.Schema{
		Type: domain.SchemaObject,
		Properties: map[string]*domain.Schema{
			"main_problem":        {Type: domain.SchemaString},
			"secondary_problems":  list(),
			"timeline":            {Type: domain.SchemaString},
			"parties":             list(),
			"dependents_count":    {Type: domain.SchemaInteger},
			"financial_situation": {Type: domain.SchemaString, Enum: domain.FinancialSituations},
			"documents_mentioned": list(),
			"actions_taken":       list(),
			"specific_questions":  list(),
		},
		Required: []string{"main_problem", "financial_situation"},
	}
}

// buildLegalContext renders retrieved chunks as numbered sources.
func buildLegalContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[Fonte %d: %s", i+1, r.Chunk.LawName)
		if r.Chunk.ArticleNumber != nil {
			fmt.Fprintf(&b, ", artigo %d", *r.Chunk.ArticleNumber)
		}
		b.WriteString("]\n")
		b.WriteString(strings.TrimSpace(r.Chunk.Text))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func buildConsultaPrompt(question string, results []domain.SearchResult) string {
	return fmt.Sprintf("Contexto legal:\n%s\n\nPergunta: %s", buildLegalContext(results), question)
}

func buildAssistenciaPrompt(question string, classification domain.ClassificationResult, facts *domain.ExtractedFacts, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Situação descrita pelo utilizador:\n")
	b.WriteString(question)
	b.WriteString("\n\nClassificação:\n")
	fmt.Fprintf(&b, "- áreas: %s\n", strings.Join(classification.LegalAreas, ", "))
	fmt.Fprintf(&b, "- urgência: %s\n", classification.Urgency)
	fmt.Fprintf(&b, "- estado emocional: %s\n", classification.Emotion)
	if classification.MainProblem != nil {
		fmt.Fprintf(&b, "- problema principal: %s\n", *classification.MainProblem)
	}
	if len(classification.Vulnerabilities) > 0 {
		fmt.Fprintf(&b, "- vulnerabilidades: %s\n", strings.Join(classification.Vulnerabilities, ", "))
	}

	b.WriteString("\nFactos extraídos:\n")
	if facts == nil {
		b.WriteString("(indisponíveis; usa apenas a situação descrita e a classificação)\n")
	} else {
		writeFacts(&b, facts)
	}

	b.WriteString("\nContexto legal:\n")
	b.WriteString(buildLegalContext(results))
	return b.String()
}

func writeFacts(b *strings.Builder, facts *domain.ExtractedFacts) {
	item := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(b, "- %s: %s\n", label, value)
		}
	}
	item("problema principal", facts.MainProblem)
	item("problemas secundários", strings.Join(facts.SecondaryProblems, "; "))
	item("cronologia", facts.Timeline)
	item("partes envolvidas", strings.Join(facts.Parties, ", "))
	if facts.DependentsCount > 0 {
		fmt.Fprintf(b, "- dependentes: %d\n", facts.DependentsCount)
	}
	item("situação financeira", string(facts.FinancialSituation))
	item("documentos mencionados", strings.Join(facts.DocumentsMentioned, ", "))
	item("ações já tomadas", strings.Join(facts.ActionsTaken, "; "))
	item("perguntas específicas", strings.Join(facts.SpecificQuestions, "; "))
}

func buildGlossaryPrompt(term string, entry *domain.GlossaryTerm, results []domain.SearchResult, conversationContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Termo pedido: %s\n", term)
	if entry != nil {
		fmt.Fprintf(&b, "Termo canónico: %s\nCategoria: %s\nNível de dificuldade (1-4): %d\n", entry.CanonicalName, entry.Category, entry.DifficultyLevel)
		if len(entry.Synonyms) > 0 {
			fmt.Fprintf(&b, "Sinónimos: %s\n", strings.Join(entry.Synonyms, ", "))
		}
	}
	if strings.TrimSpace(conversationContext) != "" {
		fmt.Fprintf(&b, "\nContexto da conversa:\n%s\n", conversationContext)
	}
	if legal := buildLegalContext(results); legal != "" {
		fmt.Fprintf(&b, "\nExcertos de lei relevantes:\n%s\n", legal)
	} else {
		b.WriteString("\nSem excertos de lei disponíveis: omite a secção de base legal ou indica que deve ser confirmada.\n")
	}
	return b.String()
}
