package text

// Сегментация CJK: прямой maximum matching по загруженному словарю.
// Словаря может не быть вовсе — тогда каждый иероглиф становится токеном,
// n-граммный скоринг это переживает.

type Vocab struct {
	words  map[string]struct{}
	maxLen int // в рунах, ограничивает окно поиска
}

func NewVocab(words []string) *Vocab {
	v := &Vocab{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w == "" {
			continue
		}
		v.words[w] = struct{}{}
		if n := len([]rune(w)); n > v.maxLen {
			v.maxLen = n
		}
	}
	return v
}

// Segment режет последовательность CJK-рун на слова: с текущей позиции
// берём самое длинное слово словаря, иначе одну руну. Детерминированно.
func (v *Vocab) Segment(rs []rune) []string {
	if len(rs) == 0 {
		return nil
	}
	out := make([]string, 0, len(rs))
	for i := 0; i < len(rs); {
		matched := 1
		if v != nil && v.maxLen > 1 {
			limit := v.maxLen
			if rest := len(rs) - i; rest < limit {
				limit = rest
			}
			for l := limit; l >= 2; l-- {
				if _, ok := v.words[string(rs[i:i+l])]; ok {
					matched = l
					break
				}
			}
		}
		out = append(out, string(rs[i:i+matched]))
		i += matched
	}
	return out
}
