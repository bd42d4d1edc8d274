package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-service/internal/storage"
)

func testImporter(t *testing.T) (*Importer, *storage.Store) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))
	st := storage.New(db)
	return New(st, zerolog.Nop()), st
}

func TestImportMapsSkipsBadRowsKeepsRest(t *testing.T) {
	im, st := testImporter(t)
	ctx := context.Background()

	maps := []map[string]string{
		{"名称": "不锈钢保温杯 500ml", "货号": "A-1", "价格": "¥19.90", "币种": "cny"},
		{"名称": "数据线 USB-C 2米", "货号": "A-2", "价格": ""}, // нет цены
		{"名称": "手机壳 iPhone 15", "货号": "A-3", "价格": "12,50", "币种": "xx"},
	}

	rep, err := im.ImportMaps(ctx, "batch-1", maps, DefaultMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.ImportedCount)
	assert.Equal(t, 1, rep.SkippedCount)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 2, rep.Errors[0].Row)
	assert.Equal(t, "price", rep.Errors[0].Field)

	p, err := st.FindActiveBySupplierRef(ctx, "A-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.90")))
	assert.Equal(t, "CNY", p.Currency)

	// кривой код валюты падает в дефолт
	p3, err := st.FindActiveBySupplierRef(ctx, "A-3")
	require.NoError(t, err)
	require.NotNil(t, p3)
	assert.Equal(t, "CNY", p3.Currency)
	assert.True(t, p3.Price.Equal(decimal.RequireFromString("12.5")))
}

func TestImportMapsInvalidEANDroppedRowKept(t *testing.T) {
	im, st := testImporter(t)
	ctx := context.Background()

	maps := []map[string]string{
		{"名称": "товар с битым кодом", "货号": "B-1", "价格": "5", "条码": "5901234123450"}, // чексумма не бьётся
		{"名称": "товар с честным кодом", "货号": "B-2", "价格": "6", "条码": "5901234123457"},
	}

	rep, err := im.ImportMaps(ctx, "batch-ean", maps, DefaultMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.ImportedCount)
	assert.Zero(t, rep.SkippedCount)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 1, rep.Errors[0].Row)
	assert.Equal(t, "ean", rep.Errors[0].Field)

	p1, err := st.FindActiveBySupplierRef(ctx, "B-1")
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Empty(t, p1.EAN)

	p2, err := st.FindActiveBySupplierRef(ctx, "B-2")
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, "5901234123457", p2.EAN)
}

func TestReimportRecordsPriceDrift(t *testing.T) {
	im, st := testImporter(t)
	ctx := context.Background()
	m := DefaultMapping()

	_, err := im.ImportMaps(ctx, "day-1", []map[string]string{
		{"名称": "保温杯", "货号": "C-1", "价格": "20"},
	}, m)
	require.NoError(t, err)

	// та же цена — история не растёт
	_, err = im.ImportMaps(ctx, "day-2", []map[string]string{
		{"名称": "保温杯", "货号": "C-1", "价格": "20"},
	}, m)
	require.NoError(t, err)

	// цена уехала — апдейт строки + новый снимок
	_, err = im.ImportMaps(ctx, "day-3", []map[string]string{
		{"名称": "保温杯", "货号": "C-1", "价格": "18.5"},
	}, m)
	require.NoError(t, err)

	p, err := st.FindActiveBySupplierRef(ctx, "C-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("18.5")))

	hist, err := st.PriceHistoryFor(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Price.Equal(decimal.NewFromInt(20)))
	assert.True(t, hist[1].Price.Equal(decimal.RequireFromString("18.5")))
}

func TestImportMapsEnglishHeaders(t *testing.T) {
	im, st := testImporter(t)
	ctx := context.Background()

	maps := []map[string]string{
		{"Name": "USB-C cable 2m", "SKU": "EN-1", "Price": "3.20", "Barcode": "4006381333931"},
	}
	rep, err := im.ImportMaps(ctx, "batch-en", maps, DefaultMapping())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ImportedCount)

	p, err := st.FindActiveBySupplierRef(ctx, "EN-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "4006381333931", p.EAN)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"19.90", "19.90", true},
		{"1 234,50", "1234.50", true},
		{"¥19.90", "19.90", true},
		{"￥88", "88", true},
		{"197 ,00", "197.00", true},
		{"12,50 €", "12.50", true},
		{"", "0", false},
		{"нет", "0", false},
		{"-", "0", false},
		{"abc", "0", false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		if c.ok {
			assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "input %q: got %s", c.in, got)
		}
	}
}

func TestResolveKeyNormalizesHeaders(t *testing.T) {
	rec := map[string]string{"Наименование ": "x", "ЦЕНА (руб)": "y", "条码": "z"}
	assert.Equal(t, "Наименование ", resolveKey(rec, DefaultMapping().NameKey))
	assert.Equal(t, "ЦЕНА (руб)", resolveKey(rec, DefaultMapping().PriceKey))
	assert.Equal(t, "条码", resolveKey(rec, DefaultMapping().EANKey))
}
