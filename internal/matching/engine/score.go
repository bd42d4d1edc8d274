package engine

import (
	"match-service/internal/matching/model"
)

// Веса гибрида. Фиксированы на релиз, как и лексические.
const (
	wLexical = 0.60
	wVisual  = 0.40
)

// Combine — чистая функция комбинации сигналов.
// Правила:
//   - совпадение валидных кодов перебивает всё: 1.0, method=identifier;
//   - hybrid без доступной картинки деградирует до text — и method честно
//     говорит "text", а не "hybrid";
//   - image без картинки деградирует так же;
//   - mismatch кодов нейтрален: отсутствие общего кода — не анти-сигнал.
func Combine(strategy model.Strategy, lex model.LexicalResult, vis model.VisualResult, id model.IdentifierResult) (float64, model.Method) {
	if id.Verdict == model.IdentMatch {
		return 1.0, model.MethodIdentifier
	}
	switch strategy {
	case model.StrategyText:
		return lex.Score, model.MethodText
	case model.StrategyImage:
		if vis.Available {
			return vis.Score, model.MethodImage
		}
		return lex.Score, model.MethodText
	default: // hybrid
		if vis.Available {
			return wLexical*lex.Score + wVisual*vis.Score, model.MethodHybrid
		}
		return lex.Score, model.MethodText
	}
}
