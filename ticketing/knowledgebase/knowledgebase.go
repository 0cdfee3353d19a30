// Package knowledgebase embeds and stores prior Q/A pairs and resolved
// tickets, retrieves nearest-neighbor matches, and synthesizes suggested
// responses blending retrieved excerpts with AI-generated filler text.
package knowledgebase

import (
	"context"
	"strings"
	"time"

	"github.com/ticketflow/engine/embeddings"
	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/vectorstore"
)

var logger = observability.NewLogger(nil)

const maxDocumentChars = 8000

// SimilarMatch is one nearest-neighbor hit from find_similar.
type SimilarMatch struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// KnowledgeBase stores embedded documents and synthesizes response
// suggestions. The vector store is pluggable; vectorstore.MemoryVectorStore
// is the mandatory fallback used when no persistent backend is configured.
type KnowledgeBase struct {
	store     vectorstore.VectorStore
	embedder  embeddings.Embedder
	generator llm.Provider
	model     string
	minScore  float64
	dim       int
}

// Config configures a KnowledgeBase.
type Config struct {
	Store     vectorstore.VectorStore
	Embedder  embeddings.Embedder
	Generator llm.Provider
	Model     string
	MinScore  float64
	Dimension int
}

// New builds a KnowledgeBase. If cfg.Store is nil, an in-memory store is
// created from cfg.Embedder, matching the "mandatory fallback" requirement.
func New(cfg Config) (*KnowledgeBase, error) {
	minScore := cfg.MinScore
	if minScore == 0 {
		minScore = 0.5
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = 1536
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	store := cfg.Store
	if store == nil {
		// vectorstore.MemoryVectorStore requires a non-nil embedder even
		// though it never calls it for zero-vector documents; a noopEmbedder
		// satisfies that constructor requirement without pretending to
		// generate real semantic vectors when no provider is configured.
		storeEmbedder := cfg.Embedder
		if storeEmbedder == nil {
			storeEmbedder = noopEmbedder{dim: dim}
		}
		mem, err := vectorstore.NewMemoryVectorStore(vectorstore.MemoryVectorStoreConfig{
			Embedder:       storeEmbedder,
			DistanceMetric: vectorstore.DistanceCosine,
		})
		if err != nil {
			return nil, err
		}
		store = mem
	}

	return &KnowledgeBase{
		store:     store,
		embedder:  cfg.Embedder,
		generator: cfg.Generator,
		model:     model,
		minScore:  minScore,
		dim:       dim,
	}, nil
}

// AddDocument truncates content, embeds it (falling back to a zero vector on
// embedder failure so the document is never lost), and upserts it.
func (kb *KnowledgeBase) AddDocument(ctx context.Context, id, content string, meta models.KBDocumentMetadata) (string, error) {
	content = truncate(content, maxDocumentChars)

	doc := vectorstore.NewDocumentWithMetadata(content, metadataToMap(meta))
	if id != "" {
		doc = doc.WithID(id)
	}

	if kb.embedder != nil {
		vec, err := kb.embedder.EmbedQuery(ctx, content)
		if err != nil {
			logger.Warn("embedding failed, storing zero vector", observability.Err(err))
			vec = make([]float32, kb.dim)
		}
		doc.Embedding = vec
	} else {
		doc.Embedding = make([]float32, kb.dim)
	}

	ids, err := kb.store.AddDocuments(ctx, []vectorstore.Document{doc})
	if err != nil {
		return "", err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	return doc.ID, nil
}

// AddFAQ is a typed wrapper over AddDocument for FAQ entries.
func (kb *KnowledgeBase) AddFAQ(ctx context.Context, id, content, category string, tags []string) (string, error) {
	return kb.AddDocument(ctx, id, content, models.KBDocumentMetadata{
		Type:     models.KBFAQ,
		Category: category,
		Tags:     tags,
		AddedAt:  time.Now(),
	})
}

// AddResolvedTicket is a typed wrapper over AddDocument for closed tickets.
// Tickets rated below 3 are skipped so poor resolutions never poison the KB.
func (kb *KnowledgeBase) AddResolvedTicket(ctx context.Context, id, content, category string, rating int) (string, error) {
	if rating < 3 {
		return "", nil
	}
	return kb.AddDocument(ctx, id, content, models.KBDocumentMetadata{
		Type:     models.KBResolvedTicket,
		Category: category,
		Rating:   rating,
		AddedAt:  time.Now(),
	})
}

// FindSimilar embeds query and performs nearest-neighbor search, optionally
// filtered by category, returning matches at or above min_score in
// descending score order.
func (kb *KnowledgeBase) FindSimilar(ctx context.Context, query, category string, limit int, minScore float64) ([]SimilarMatch, error) {
	if minScore == 0 {
		minScore = kb.minScore
	}

	var results []vectorstore.SearchResult
	var err error

	if category != "" {
		if filtered, ok := kb.store.(interface {
			SearchWithFilter(ctx context.Context, query string, k int, filters []vectorstore.Filter) ([]vectorstore.SearchResult, error)
		}); ok {
			results, err = filtered.SearchWithFilter(ctx, query, limit, []vectorstore.Filter{
				{Field: "category", Operator: vectorstore.FilterEquals, Value: category},
			})
		} else {
			results, err = kb.store.SimilaritySearchWithScore(ctx, query, limit)
		}
	} else {
		results, err = kb.store.SimilaritySearchWithScore(ctx, query, limit)
	}
	if err != nil {
		observability.GetMetrics().RecordKBSearch(0, err)
		return nil, err
	}

	matches := make([]SimilarMatch, 0, len(results))
	for _, r := range results {
		score := float64(r.Score)
		if score < 0 {
			score = 0
		}
		if score < minScore {
			continue
		}
		matches = append(matches, SimilarMatch{
			ID:       r.Document.ID,
			Content:  r.Document.PageContent,
			Score:    score,
			Metadata: r.Document.Metadata,
		})
	}
	observability.GetMetrics().RecordKBSearch(len(matches), nil)
	return matches, nil
}

// GenerateSuggestedResponses produces up to limit suggested replies: RAG
// excerpts from similar prior documents first, then AI-generated filler if
// fewer than limit survive.
func (kb *KnowledgeBase) GenerateSuggestedResponses(ctx context.Context, content, category, language string, limit int) ([]models.SuggestedResponse, error) {
	similar, err := kb.FindSimilar(ctx, content, category, 5, 0.5)
	if err != nil {
		logger.Warn("find_similar failed while generating suggestions", observability.Err(err))
		similar = nil
	}

	suggestions := make([]models.SuggestedResponse, 0, limit)
	for _, m := range similar {
		if len(suggestions) >= limit {
			break
		}
		suggestions = append(suggestions, models.SuggestedResponse{
			Content:   extractResponsePortion(m.Content),
			Source:    models.SourceRAG,
			Relevance: m.Score,
			SourceID:  m.ID,
			Metadata:  m.Metadata,
		})
	}

	if len(suggestions) < limit && kb.generator != nil {
		aiText, err := kb.generateAIResponse(ctx, content, language, similar)
		if err != nil {
			logger.Warn("ai suggested response generation failed", observability.Err(err))
		} else if aiText != "" {
			suggestions = append(suggestions, models.SuggestedResponse{
				Content:   aiText,
				Source:    models.SourceAIGenerated,
				Relevance: 0.9,
			})
		}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

func (kb *KnowledgeBase) generateAIResponse(ctx context.Context, content, language string, similar []SimilarMatch) (string, error) {
	var system, user string
	if len(similar) > 0 {
		top := similar
		if len(top) > 3 {
			top = top[:3]
		}
		var context strings.Builder
		for _, m := range top {
			context.WriteString("- ")
			context.WriteString(extractResponsePortion(m.Content))
			context.WriteString("\n")
		}
		system = "You are a support agent. Draft a reply grounded in the examples below.\n" + context.String()
		user = content
	} else {
		system = "You are a helpful customer support agent replying in " + language + "."
		user = content
	}

	resp, err := kb.generator.GenerateCompletion(ctx, &llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  0.7,
		MaxTokens:    500,
		Model:        kb.model,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// extractResponsePortion splits on "Response:" or "Answer:" and returns the
// portion after the marker; if neither marker is present the full body is
// used.
func extractResponsePortion(text string) string {
	for _, marker := range []string{"Response:", "Answer:"} {
		if idx := strings.Index(text, marker); idx != -1 {
			return strings.TrimSpace(text[idx+len(marker):])
		}
	}
	return text
}

// Stats reports the document count currently stored.
func (kb *KnowledgeBase) Stats(ctx context.Context) map[string]any {
	if counter, ok := kb.store.(interface{ Count() int }); ok {
		return map[string]any{"document_count": counter.Count()}
	}
	return map[string]any{"document_count": -1}
}

// DeleteDocument removes a document by id.
func (kb *KnowledgeBase) DeleteDocument(ctx context.Context, id string) error {
	return kb.store.Delete(ctx, []string{id})
}

// noopEmbedder satisfies vectorstore's embedder requirement when no
// embedding provider is configured; the in-memory store never actually
// calls it for documents whose embeddings are supplied up front (which
// AddDocument always does), but the constructor insists on a non-nil one.
type noopEmbedder struct{ dim int }

func (e noopEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

func (e noopEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e noopEmbedder) Dimension() int { return e.dim }

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

func metadataToMap(m models.KBDocumentMetadata) map[string]any {
	out := map[string]any{
		"type":     string(m.Type),
		"added_at": m.AddedAt,
	}
	if m.Category != "" {
		out["category"] = m.Category
	}
	if m.Rating != 0 {
		out["rating"] = m.Rating
	}
	if len(m.Tags) > 0 {
		out["tags"] = m.Tags
	}
	return out
}
