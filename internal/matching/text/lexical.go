package text

// Лексический скорер: взвешенная сумма трёх перекрытий по нормализованной
// строке. Веса зафиксированы на релиз — менять только вместе с переоценкой
// порогов в проде.
const (
	wCharJaccard = 0.40
	wBigram      = 0.40
	wTrigram     = 0.20
)

// LexicalScore — итоговая схожесть двух сырых строк в [0..1].
// Свойства: Score(s,s) == 1.0 ровно; Score(a,b) == Score(b,a); пустая пара → 0.
func LexicalScore(n *Normalizer, a, b string) float64 {
	return LexicalScoreNorm(n.Normalize(a), n.Normalize(b))
}

// LexicalScoreNorm — то же по уже нормализованным строкам
// (оркестратор нормализует один раз на весь пул).
func LexicalScoreNorm(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	j := jaccardRunes(na, nb)
	b2 := ngramOverlap(na, nb, 2)
	b3 := ngramOverlap(na, nb, 3)
	return wCharJaccard*j + wBigram*b2 + wTrigram*b3
}

// Жаккар по множествам символов (пробелы не считаем).
func jaccardRunes(a, b string) float64 {
	sa := runeSet(a)
	sb := runeSet(b)
	return setOverlap(sa, sb)
}

func runeSet(s string) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		m[string(r)] = struct{}{}
	}
	return m
}

// Перекрытие множеств n-грамм; строка паддится пробелами, чтобы короткие
// имена не выпадали.
func ngramOverlap(a, b string, n int) float64 {
	return setOverlap(ngramSet(a, n), ngramSet(b, n))
}

func ngramSet(s string, n int) map[string]struct{} {
	m := make(map[string]struct{})
	r := []rune(" " + s + " ")
	if len(r) < n {
		m[string(r)] = struct{}{}
		return m
	}
	for i := 0; i+n <= len(r); i++ {
		m[string(r[i:i+n])] = struct{}{}
	}
	return m
}

func setOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
