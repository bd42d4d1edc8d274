package groups

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-service/internal/apperr"
	"match-service/internal/matching/model"
	"match-service/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "groups.db"))
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))
	st := storage.New(db)
	return NewService(st, zerolog.Nop()), st
}

func seedLocal(t *testing.T, st *storage.Store, name string) int64 {
	t.Helper()
	p := &storage.LocalProduct{Name: name, ImageURL: "img://" + name}
	require.NoError(t, st.CreateLocalProduct(context.Background(), p))
	return p.ID
}

func seedRaw(t *testing.T, st *storage.Store, ref, price string) int64 {
	t.Helper()
	p := &storage.SupplierRawProduct{
		SupplierRef: ref,
		Name:        "товар " + ref,
		Price:       decimal.RequireFromString(price),
		Currency:    "CNY",
	}
	require.NoError(t, st.CreateRawProduct(context.Background(), p))
	return p.ID
}

func TestProposeCreatesAndReusesPendingGroup(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "不锈钢保温杯")
	raw1 := seedRaw(t, st, "S-1", "20")
	raw2 := seedRaw(t, st, "S-2", "15")

	g1, err := svc.Propose(ctx, raw1, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)
	assert.Equal(t, storage.GroupPending, g1.Status)
	assert.Equal(t, 1, g1.MemberCount)

	// второй кандидат той же карточки едет в ту же группу
	g2, err := svc.Propose(ctx, raw2, localID, model.MethodHybrid, 0.7)
	require.NoError(t, err)
	assert.Equal(t, g1.ID, g2.ID)
	assert.Equal(t, 2, g2.MemberCount)
}

func TestProposeRejectsAlreadyGroupedRaw(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localA := seedLocal(t, st, "карточка А")
	localB := seedLocal(t, st, "карточка Б")
	rawID := seedRaw(t, st, "S-1", "10")

	_, err := svc.Propose(ctx, rawID, localA, model.MethodHybrid, 0.9)
	require.NoError(t, err)

	// строка не может жить в двух активных группах
	_, err = svc.Propose(ctx, rawID, localB, model.MethodHybrid, 0.9)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestConfirmSnapshotsBestPrice(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "数据线")

	var g *storage.MatchingGroup
	for i, price := range []string{"20", "15", "18"} {
		rawID := seedRaw(t, st, []string{"S-20", "S-15", "S-18"}[i], price)
		var err error
		g, err = svc.Propose(ctx, rawID, localID, model.MethodHybrid, 0.8)
		require.NoError(t, err)
	}

	got, err := svc.Confirm(ctx, g.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, storage.GroupConfirmed, got.Status)
	assert.True(t, got.BestPrice.Equal(decimal.NewFromInt(15)), "want 15, got %s", got.BestPrice)
	assert.Equal(t, "S-15", got.BestPriceSupplierRef)
	assert.Equal(t, "operator", got.ConfirmedBy)
	require.NotNil(t, got.ConfirmedAt)

	// confirmed — терминальный: второй confirm не проходит
	_, err = svc.Confirm(ctx, g.ID, "operator")
	assert.True(t, apperr.IsConflict(err))
}

func TestConfirmBestPriceTieKeepsEarliest(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "手机壳")

	first := seedRaw(t, st, "EARLY", "9.90")
	second := seedRaw(t, st, "LATE", "9.90")
	_, err := svc.Propose(ctx, first, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)
	g, err := svc.Propose(ctx, second, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)

	got, err := svc.Confirm(ctx, g.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, "EARLY", got.BestPriceSupplierRef)
}

func TestConfirmEmptyGroupFails(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	g := &storage.MatchingGroup{DisplayName: "empty", Status: storage.GroupPending}
	require.NoError(t, st.CreateGroup(ctx, g))

	_, err := svc.Confirm(ctx, g.ID, "operator")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRejectLastMemberMarksGroupRejected(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "杯子")
	rawID := seedRaw(t, st, "S-1", "10")

	g, err := svc.Propose(ctx, rawID, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, g.ID, rawID))

	got, err := st.GetActiveGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.GroupRejected, got.Status)
	assert.Zero(t, got.MemberCount)

	// строка вернулась в пул
	raw, err := st.GetActiveRawProduct(ctx, rawID)
	require.NoError(t, err)
	assert.Nil(t, raw.GroupID)

	// отцепить уже отцеплённое нельзя
	assert.True(t, apperr.IsConflict(svc.Reject(ctx, g.ID, rawID)))
}

func TestProposeSurvivesConcurrentVersionBump(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "конкурентная карточка")
	raw1 := seedRaw(t, st, "S-1", "10")
	raw2 := seedRaw(t, st, "S-2", "12")

	g, err := svc.Propose(ctx, raw1, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)

	// чужая мутация проезжает между поиском группы и захватом страйпа
	mu := svc.lockFor(g.ID)
	mu.Lock()
	done := make(chan error, 1)
	go func() {
		_, perr := svc.Propose(ctx, raw2, localID, model.MethodHybrid, 0.7)
		done <- perr
	}()
	time.Sleep(100 * time.Millisecond) // второй Propose уже нашёл группу и ждёт замок
	require.NoError(t, st.UpdateGroupVersioned(ctx, g.ID, g.Version, map[string]any{
		"display_name": "renamed meanwhile",
	}))
	mu.Unlock()

	require.NoError(t, <-done, "propose must re-read the version under the lock")

	got, err := st.GetActiveGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MemberCount)
	raw, err := st.GetActiveRawProduct(ctx, raw2)
	require.NoError(t, err)
	require.NotNil(t, raw.GroupID)
	assert.Equal(t, g.ID, *raw.GroupID)
}

func TestCleanupOrphanedIdempotent(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "čajnik")
	rawID := seedRaw(t, st, "S-1", "10")

	g, err := svc.Propose(ctx, rawID, localID, model.MethodHybrid, 0.8)
	require.NoError(t, err)
	require.NoError(t, st.DeactivateRawProduct(ctx, rawID))

	n, err := svc.CleanupOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = st.GetActiveGroup(ctx, g.ID)
	assert.True(t, apperr.IsNotFound(err))

	// второй прогон подряд — ноль
	n, err = svc.CleanupOrphaned(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetBuildsPriceComparison(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	localID := seedLocal(t, st, "flask")

	var g *storage.MatchingGroup
	for i, price := range []string{"30", "25"} {
		rawID := seedRaw(t, st, []string{"P-30", "P-25"}[i], price)
		var err error
		g, err = svc.Propose(ctx, rawID, localID, model.MethodHybrid, 0.8)
		require.NoError(t, err)
	}

	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, v.Members, 2)
	assert.Len(t, v.Prices, 2)
	require.NotNil(t, v.BestPrice)
	assert.Equal(t, "P-25", v.BestPrice.SupplierRef)
	assert.True(t, v.BestPrice.Price.Equal(decimal.NewFromInt(25)))
}
