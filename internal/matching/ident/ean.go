// Package ident — сопоставление по структурным кодам (EAN/GTIN).
// Самый надёжный сигнал: совпадение валидных кодов решает пару целиком.
package ident

import (
	"strings"

	"match-service/internal/matching/model"
)

// ValidGTIN — проверка формата и контрольной суммы GTIN-8/12/13/14.
func ValidGTIN(code string) bool {
	code = strings.TrimSpace(code)
	switch len(code) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	sum := 0
	w := 3 // вес крайней цифры payload (справа) всегда 3
	for i := len(code) - 2; i >= 0; i-- {
		d := code[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * w
		w = 4 - w // 3 ↔ 1
	}
	last := code[len(code)-1]
	if last < '0' || last > '9' {
		return false
	}
	return (10-sum%10)%10 == int(last-'0')
}

// Match — вердикт по паре кодов. Отсутствие кода — нейтрально (NoData),
// невалидный код — Invalid, дальше обычное сравнение.
// False positive тут невозможен по построению: Match только при равенстве
// двух валидных кодов.
func Match(rawCode, candidateCode string) model.IdentifierResult {
	a := strings.TrimSpace(rawCode)
	b := strings.TrimSpace(candidateCode)
	if a == "" || b == "" {
		return model.IdentifierResult{Verdict: model.IdentNoData}
	}
	if !ValidGTIN(a) || !ValidGTIN(b) {
		return model.IdentifierResult{Verdict: model.IdentInvalid}
	}
	if a == b {
		return model.IdentifierResult{Verdict: model.IdentMatch}
	}
	return model.IdentifierResult{Verdict: model.IdentMismatch}
}
