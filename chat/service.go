package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/index"
	"github.com/fabfab/symptom-agent/llm"
	"github.com/fabfab/symptom-agent/logging"
)

const defaultTopK = 4

// Service answers freeform questions from the knowledge index.
type Service struct {
	index  index.Index
	graph  GraphStore
	llm    llm.Client
	logger *zap.Logger
	cfg    Config
}

// NewService wires the answerer. graph may be nil to skip related-group
// enrichment.
func NewService(idx index.Index, graph GraphStore, llmClient llm.Client, logger *zap.Logger, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}

	return &Service{
		index:  idx,
		graph:  graph,
		llm:    llmClient,
		logger: logging.OrNop(logger),
		cfg:    cfg,
	}
}

// Answer retrieves context for question, generates an answer and records the
// turn in memory. Nothing is cached; every call retrieves and generates
// again. memory is left untouched when an error is returned.
func (s *Service) Answer(ctx context.Context, question string, memory *Memory) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question cannot be empty")
	}
	if s.index == nil {
		return "", fmt.Errorf("knowledge index is not configured")
	}
	if s.llm == nil {
		return "", fmt.Errorf("llm client is not configured")
	}

	var history []Turn
	if memory != nil {
		history = memory.Turns()
	}

	query := question
	if s.cfg.CondenseQuestions && len(history) > 0 {
		condensed, err := s.condense(ctx, question, history)
		if err != nil {
			return "", err
		}
		query = condensed
	}

	docs, err := s.index.Search(ctx, query, s.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("%w: search knowledge index: %w", ErrRetrievalUnavailable, err)
	}
	if len(docs) == 0 {
		s.logger.Debug("no context retrieved for question", zap.String("query", query))
	}

	related := s.relatedGroups(ctx, docs)

	generated, err := s.llm.Generate(ctx, llm.Request{
		System:  systemPrompt(),
		History: exchanges(history),
		Prompt:  formatUserPrompt(question, buildContextPrompt(docs, related)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	answer := strings.TrimSpace(generated)
	if memory != nil {
		memory.Append(question, answer)
	}

	s.logger.Debug("answered freeform question",
		zap.Int("context_documents", len(docs)),
		zap.Int("history_turns", len(history)),
		zap.Bool("condensed", query != question))
	return answer, nil
}

// condense rewrites a follow-up into a standalone question for retrieval.
func (s *Service) condense(ctx context.Context, question string, history []Turn) (string, error) {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("Human: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}

	prompt := "Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.\n\n" +
		"Chat History:\n" + sb.String() +
		"Follow Up Input: " + question + "\nStandalone question:"

	out, err := s.llm.Generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%w: condense question: %w", ErrGenerationUnavailable, err)
	}
	if condensed := strings.TrimSpace(out); condensed != "" {
		return condensed, nil
	}
	return question, nil
}

func exchanges(turns []Turn) []llm.Exchange {
	out := make([]llm.Exchange, len(turns))
	for i, t := range turns {
		out[i] = llm.Exchange{Question: t.Question, Answer: t.Answer}
	}
	return out
}

func (s *Service) relatedGroups(ctx context.Context, docs []corpus.Document) map[string][]RelatedGroup {
	if s.graph == nil {
		return nil
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Provenance == corpus.ProvenanceFactorGroup && d.GroupName != "" {
			names = append(names, d.GroupName)
		}
	}
	if len(names) == 0 {
		return nil
	}

	related, err := s.graph.RelatedGroups(ctx, names)
	if err != nil {
		s.logger.Warn("graph enrichment failed", zap.Error(err))
		return nil
	}
	return related
}

func buildContextPrompt(docs []corpus.Document, related map[string][]RelatedGroup) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(d.Text)

		for _, r := range related[d.GroupName] {
			if d.Provenance != corpus.ProvenanceFactorGroup {
				break
			}
			sb.WriteString(fmt.Sprintf("\nRelated topic '%s' shares: %s.", r.Name, strings.Join(r.SharedFactors, ", ")))
		}
	}
	return sb.String()
}

func systemPrompt() string {
	return "You are an assistant that shares general information about a medical symptom. You are not a medical professional and you do not diagnose. Answer from the supplied context when it is relevant and say so when it is not."
}

func formatUserPrompt(question, context string) string {
	return "Based on the following context, provide a helpful answer to the question.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n\n" +
		"Helpful Answer:"
}
