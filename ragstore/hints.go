package ragstore

import "sqlnexus/core/model"

// ToHints wraps retrieved pairs into the model.Hints payload the similar-query
// stream of SemanticHintsProvider contributes, the Go rendering of
// get_rag_context's "SIMILAR PAST QUERIES" prompt section.
func ToHints(pairs []model.SimilarQueryPair) *model.Hints {
	if len(pairs) == 0 {
		return nil
	}
	return &model.Hints{
		SimilarPastPairs: pairs,
		Sources:          []string{"rag"},
	}
}
