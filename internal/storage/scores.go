package storage

import (
	"context"

	"match-service/internal/matching/model"
)

// InsertScores — записать результаты одного прогона. Append-only:
// старые строки не обновляются, читатель берёт самые свежие.
func (s *Store) InsertScores(ctx context.Context, rawID int64, suggestions []model.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	rows := make([]MatchingScore, 0, len(suggestions))
	for _, sg := range suggestions {
		rows = append(rows, MatchingScore{
			RawProductID:   rawID,
			LocalProductID: sg.Candidate.ID,
			Lexical:        sg.Lexical,
			Visual:         sg.Visual,
			Confidence:     sg.Confidence,
			Method:         string(sg.Method),
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

// LatestScores — последние посчитанные строки по сырому товару,
// свежие сверху.
func (s *Store) LatestScores(ctx context.Context, rawID int64, limit int) ([]MatchingScore, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []MatchingScore
	err := s.db.WithContext(ctx).
		Where("raw_product_id = ?", rawID).
		Order("computed_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
