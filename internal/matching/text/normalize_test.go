package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	vocab := NewVocab([]string{"不锈钢", "保温杯", "数据线", "手机壳"})
	return NewNormalizer(DefaultStopList(), vocab)
}

func TestTokensLatin(t *testing.T) {
	n := testNormalizer()
	assert.Equal(t, []string{"usb", "c", "cable", "2m"}, n.Tokens("USB-C Cable, 2m!!!"))
}

func TestTokensCJKSegmentation(t *testing.T) {
	n := testNormalizer()
	// словарные слова режутся целиком, остальное — по иероглифу
	assert.Equal(t, []string{"不锈钢", "保温杯", "真", "空"}, n.Tokens("不锈钢保温杯真空"))
}

func TestTokensMixedScript(t *testing.T) {
	n := testNormalizer()
	got := n.Tokens("Type-C 数据线 1.5m 包邮")
	assert.Equal(t, []string{"type", "c", "数据线", "1.5m"}, got)
}

func TestTokensFullwidthFolding(t *testing.T) {
	n := testNormalizer()
	assert.Equal(t, n.Tokens("ＵＳＢ　Ｃａｂｌｅ"), n.Tokens("USB Cable"))
}

func TestTokensStopList(t *testing.T) {
	n := testNormalizer()
	got := n.Tokens("热卖 保温杯 批发 500 ml")
	assert.Equal(t, []string{"保温杯", "500"}, got)
}

func TestTokensEmptyAndGarbage(t *testing.T) {
	n := testNormalizer()
	assert.Empty(t, n.Tokens(""))
	assert.Empty(t, n.Tokens("   \t  "))
	assert.Empty(t, n.Tokens("!!! ---- ###"))
}

func TestNormalizeDeterministic(t *testing.T) {
	n := testNormalizer()
	in := "不锈钢保温杯 Vacuum Flask 500ml 包邮"
	first := n.Normalize(in)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, n.Normalize(in))
	}
}

func TestSegmentWithoutVocab(t *testing.T) {
	n := NewNormalizer(nil, NewVocab(nil))
	assert.Equal(t, []string{"保", "温", "杯"}, n.Tokens("保温杯"))
}

func TestSegmentLongestMatchWins(t *testing.T) {
	v := NewVocab([]string{"保温", "保温杯"})
	assert.Equal(t, []string{"保温杯"}, v.Segment([]rune("保温杯")))
}
