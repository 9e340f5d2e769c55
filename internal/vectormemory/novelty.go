package vectormemory

import "context"

// NoveltyDistance returns how dissimilar text's embedding is from anything
// already stored in namespace: 1.0 (maximally novel) when the namespace is
// empty, 0.5 (neutral) when the search itself errors, and otherwise
// 1-best_match_score so a near-duplicate scores close to 0 and a
// never-seen-before message scores close to 1.
func (s *Store) NoveltyDistance(ctx context.Context, embedding []float32) float64 {
	empty, err := s.IsEmpty(ctx)
	if err != nil {
		return 0.5
	}
	if empty {
		return 1.0
	}
	results, err := s.Search(ctx, embedding, 1, nil)
	if err != nil {
		return 0.5
	}
	if len(results) == 0 {
		return 1.0
	}
	distance := 1.0 - results[0].Score
	if distance < 0 {
		distance = 0
	}
	if distance > 1 {
		distance = 1
	}
	return distance
}
