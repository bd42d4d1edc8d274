package text

import (
	"regexp"
	"strings"
	"unicode"
)

// 0,5 → 0.5 (делаем ДО чистки пунктуации)
var decComma = regexp.MustCompile(`(\d),(\d)`)

// пунктуация → пробел, сохраняем . и %
var punct = regexp.MustCompile(`[^\p{L}\p{N}\s.%]+`)

// DefaultStopList — шумовые токены листингов: единицы, упаковка, маркетинг.
// Поставщики льют это в каждое второе наименование.
func DefaultStopList() []string {
	return []string{
		// единицы и счётные слова
		"个", "件", "只", "条", "套", "对", "张", "支", "瓶", "袋", "盒", "包",
		"pcs", "pc", "set", "sets", "pack", "lot",
		"ml", "l", "kg", "mg", "mm", "cm", "шт",
		// маркетинговый мусор
		"包邮", "批发", "热卖", "新款", "爆款", "现货", "跨境", "厂家", "直销", "专供",
		"new", "hot", "sale", "wholesale",
	}
}

// Normalizer — конвейер нормализации наименований.
// Детерминирован: один вход — одна и та же последовательность токенов.
type Normalizer struct {
	stop  map[string]struct{}
	vocab *Vocab
}

func NewNormalizer(stop []string, vocab *Vocab) *Normalizer {
	n := &Normalizer{stop: make(map[string]struct{}, len(stop))}
	// многосимвольные стоп-слова обязаны попасть в словарь сегментации,
	// иначе maximum matching порежет их на руны до проверки стоп-листа
	merged := &Vocab{words: make(map[string]struct{})}
	if vocab != nil {
		for w := range vocab.words {
			merged.words[w] = struct{}{}
		}
		merged.maxLen = vocab.maxLen
	}
	for _, w := range stop {
		w = strings.ToLower(w)
		n.stop[w] = struct{}{}
		if rn := len([]rune(w)); rn > 1 {
			merged.words[w] = struct{}{}
			if rn > merged.maxLen {
				merged.maxLen = rn
			}
		}
	}
	n.vocab = merged
	return n
}

// Tokens — главный конвейер: фолдинг ширины → lower → десятичные →
// пунктуация → разбиение на CJK/латинские прогоны → сегментация CJK →
// стоп-лист. На пустом/мусорном входе возвращает пустой срез, не ошибку.
func (n *Normalizer) Tokens(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := foldWidth(s)
	out = strings.ToLower(out)
	out = decComma.ReplaceAllString(out, "$1.$2")
	out = punct.ReplaceAllString(out, " ")

	toks := make([]string, 0, 8)
	emit := func(t string) {
		t = strings.Trim(t, ".%")
		if t == "" {
			return
		}
		if _, drop := n.stop[t]; drop {
			return
		}
		toks = append(toks, t)
	}

	var latin, han []rune
	flushLatin := func() {
		if len(latin) > 0 {
			emit(string(latin))
			latin = latin[:0]
		}
	}
	flushHan := func() {
		for _, w := range n.vocab.Segment(han) {
			emit(w)
		}
		han = han[:0]
	}
	for _, r := range out {
		switch {
		case unicode.IsSpace(r):
			flushLatin()
			flushHan()
		case unicode.Is(unicode.Han, r):
			flushLatin()
			han = append(han, r)
		default:
			flushHan()
			latin = append(latin, r)
		}
	}
	flushLatin()
	flushHan()
	return toks
}

// Normalize — токены одной строкой (ключ для индексов и n-грамм).
func (n *Normalizer) Normalize(s string) string {
	return strings.Join(n.Tokens(s), " ")
}

// Фуллвидные формы (ＡＢＣ１２３) → ASCII, идеографический пробел → пробел.
// Обычное дело в выгрузках с китайских площадок.
func foldWidth(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r == '\u3000': // ideographic space
			r = ' '
		case r >= 0xFF01 && r <= 0xFF5E:
			r -= 0xFEE0
		case r == '\u00A0' || r == '\u202F' || r == '\u2009': // NBSP, narrow NBSP, thin space
			r = ' '
		}
		b = append(b, r)
	}
	return string(b)
}
