package engine

import (
	"context"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-service/internal/matching/model"
	"match-service/internal/matching/text"
)

// стаб vision: отвечает по таблице url-пар, иначе unavailable
type stubVision struct {
	scores map[[2]string]float64
}

func (s *stubVision) Similarity(_ context.Context, a, b string) model.VisualResult {
	if v, ok := s.scores[[2]string{a, b}]; ok {
		return model.VisualResult{Available: true, Score: v}
	}
	return model.VisualResult{}
}

func testEngine(vision VisualScorer) *Engine {
	norm := text.NewNormalizer(text.DefaultStopList(), text.NewVocab(nil))
	if vision == nil {
		vision = &stubVision{}
	}
	return New(norm, vision, zerolog.Nop())
}

func pool() []model.LocalProduct {
	return []model.LocalProduct{
		{ID: 1, Name: "USB-C charging cable 2m", EAN: "5901234123457", ImageURL: "img://1"},
		{ID: 2, Name: "USB-C cable 1m", ImageURL: "img://2"},
		{ID: 3, Name: "Stainless vacuum flask 500ml", ImageURL: "img://3"},
		{ID: 4, Name: "USB-C charging cable", ImageURL: "img://4"},
	}
}

func TestFindMatchesRankingDeterministic(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	raw := model.RawProduct{ID: 10, Name: "usb c charging cable"}
	opt := model.Options{Strategy: model.StrategyText, MinConfidence: 0.1, MaxResults: 10}

	first := e.FindMatches(context.Background(), raw, snap, opt, nil)
	require.NotEmpty(t, first)
	assert.True(t, sort.SliceIsSorted(first, func(i, j int) bool {
		if first[i].Confidence != first[j].Confidence {
			return first[i].Confidence > first[j].Confidence
		}
		return first[i].Candidate.ID < first[j].Candidate.ID
	}))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.FindMatches(context.Background(), raw, snap, opt, nil))
	}
	// лучший — дословное совпадение имени
	assert.Equal(t, int64(4), first[0].Candidate.ID)
	assert.Equal(t, 1.0, first[0].Confidence)
}

func TestFindMatchesThreshold(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	raw := model.RawProduct{ID: 10, Name: "usb c charging cable"}

	got := e.FindMatches(context.Background(), raw, snap,
		model.Options{Strategy: model.StrategyText, MinConfidence: 0.99, MaxResults: 10}, nil)
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Confidence, 0.99)
	}
}

func TestFindMatchesEliminationDoesNotEatSlots(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	raw := model.RawProduct{ID: 10, Name: "usb c charging cable"}
	opt := model.Options{Strategy: model.StrategyText, MinConfidence: 0.1, MaxResults: 2}

	full := e.FindMatches(context.Background(), raw, snap, opt, nil)
	require.Len(t, full, 2)
	top := full[0].Candidate.ID

	// выбиваем топ-кандидата: слот обязан достаться следующему, не пропасть
	got := e.FindMatches(context.Background(), raw, snap, opt, map[int64]struct{}{top: {}})
	require.Len(t, got, 2)
	for _, s := range got {
		assert.NotEqual(t, top, s.Candidate.ID)
	}
}

func TestFindMatchesIdentifierForcesFullConfidence(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	// текст совершенно не похож, но EAN общий
	raw := model.RawProduct{ID: 10, Name: "完全不一样的名字", EAN: "5901234123457"}

	got := e.FindMatches(context.Background(), raw, snap,
		model.Options{Strategy: model.StrategyText, MinConfidence: 0.9, MaxResults: 5}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Candidate.ID)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, model.MethodIdentifier, got[0].Method)
}

func TestFindMatchesHybridDowngradesWithoutImage(t *testing.T) {
	e := testEngine(&stubVision{}) // всё unavailable
	snap := e.NewSnapshot(pool())
	raw := model.RawProduct{ID: 10, Name: "usb c charging cable", ImageURL: "img://raw"}

	got := e.FindMatches(context.Background(), raw, snap,
		model.Options{Strategy: model.StrategyHybrid, MinConfidence: 0.3, MaxResults: 5}, nil)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.Equal(t, model.MethodText, s.Method, "unavailable visual must downgrade method to text")
		assert.Nil(t, s.Visual)
	}
}

func TestFindMatchesHybridUsesImage(t *testing.T) {
	sv := &stubVision{scores: map[[2]string]float64{
		{"img://raw", "img://4"}: 0.9,
	}}
	e := testEngine(sv)
	snap := e.NewSnapshot(pool())
	raw := model.RawProduct{ID: 10, Name: "usb c charging cable", ImageURL: "img://raw"}

	got := e.FindMatches(context.Background(), raw, snap,
		model.Options{Strategy: model.StrategyHybrid, MinConfidence: 0.3, MaxResults: 5}, nil)
	require.NotEmpty(t, got)

	var hit *model.Suggestion
	for i := range got {
		if got[i].Candidate.ID == 4 {
			hit = &got[i]
		}
	}
	require.NotNil(t, hit)
	assert.Equal(t, model.MethodHybrid, hit.Method)
	require.NotNil(t, hit.Visual)
	assert.InDelta(t, 0.6*hit.Lexical+0.4*0.9, hit.Confidence, 1e-12)
}

func TestFindMatchesScoresEveryCandidate(t *testing.T) {
	e := testEngine(nil)
	// пара делит символы, но ни одной n-граммы: chars дают 0.4, биграммы 0
	snap := e.NewSnapshot([]model.LocalProduct{{ID: 1, Name: "ba"}})
	raw := model.RawProduct{ID: 10, Name: "ab"}

	got := e.FindMatches(context.Background(), raw, snap,
		model.Options{Strategy: model.StrategyText, MinConfidence: 0.2, MaxResults: 10}, nil)
	require.Len(t, got, 1, "every candidate above the threshold must surface")
	assert.Equal(t, int64(1), got[0].Candidate.ID)
	assert.InDelta(t, 0.4, got[0].Confidence, 1e-12)
}

func TestMatchBatch(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	raws := []model.RawProduct{
		{ID: 10, Name: "usb c charging cable"},
		{ID: 11, Name: "stainless vacuum flask"},
		{ID: 12, Name: "совсем другое"},
	}
	opt := model.Options{Strategy: model.StrategyText, MinConfidence: 0.3, MaxResults: 3}
	noElim := func(context.Context, int64) (map[int64]struct{}, error) { return nil, nil }

	res, err := e.MatchBatch(context.Background(), raws, snap, opt, noElim, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.NotEmpty(t, res[10])
	assert.NotEmpty(t, res[11])
	assert.Empty(t, res[12], "no matches is an empty list, not an error")

	// последовательный и параллельный прогон обязаны совпасть
	seq, err := e.MatchBatch(context.Background(), raws, snap, opt, noElim, 1)
	require.NoError(t, err)
	assert.Equal(t, seq, res)
}

func TestMatchBatchCancellationReachesElimLookup(t *testing.T) {
	e := testEngine(nil)
	snap := e.NewSnapshot(pool())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	elim := func(c context.Context, _ int64) (map[int64]struct{}, error) {
		return nil, c.Err() // отменённый прогон обязан долететь и сюда
	}
	_, err := e.MatchBatch(ctx, []model.RawProduct{{ID: 10, Name: "usb"}}, snap,
		model.Options{Strategy: model.StrategyText, MinConfidence: 0.1, MaxResults: 3}, elim, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCombineTable(t *testing.T) {
	lex := model.LexicalResult{Score: 0.5}
	visOn := model.VisualResult{Available: true, Score: 0.8}
	visOff := model.VisualResult{}
	neutral := model.IdentifierResult{Verdict: model.IdentNoData}

	conf, method := Combine(model.StrategyHybrid, lex, visOn, neutral)
	assert.InDelta(t, 0.62, conf, 1e-12)
	assert.Equal(t, model.MethodHybrid, method)

	conf, method = Combine(model.StrategyHybrid, lex, visOff, neutral)
	assert.Equal(t, 0.5, conf)
	assert.Equal(t, model.MethodText, method)

	conf, method = Combine(model.StrategyImage, lex, visOn, neutral)
	assert.Equal(t, 0.8, conf)
	assert.Equal(t, model.MethodImage, method)

	conf, method = Combine(model.StrategyText, lex, visOn, model.IdentifierResult{Verdict: model.IdentMatch})
	assert.Equal(t, 1.0, conf)
	assert.Equal(t, model.MethodIdentifier, method)

	// mismatch кодов нейтрален
	conf, _ = Combine(model.StrategyText, lex, visOff, model.IdentifierResult{Verdict: model.IdentMismatch})
	assert.Equal(t, 0.5, conf)
}
