// Package preview вырезает из растущего текста отчета превью, не разрывая предложение.
package preview

import (
	"strings"
	"unicode"
)

const (
	// Граница засчитывается, только если превью получается не короче 70% порога.
	minRatioNum = 7
	// Окно поиска заходит за порог не более чем на 30%.
	overshootNum = 3
	ratioDen     = 10
)

// DefaultSuffix - рекламный хвост, который дописывается к превью.
const DefaultSuffix = "\n\n...\n\nThis is only the beginning of your destiny reading. Unlock the full report to discover the rest of your path."

// Extract возвращает превью для text: префикс, обрезанный по ближайшей к порогу границе
// предложения или абзаца, плюс suffix. Длины считаются в рунах.
func Extract(text string, threshold int, suffix string) string {
	return Cut(text, threshold) + suffix
}

// Cut возвращает префикс text без суффикса.
//
// Кандидаты на границу ищутся в первых threshold+30% рун. Граница конца предложения
// включает знак препинания (и закрывающие кавычки), граница абзаца режет перед "\n\n".
// Точка в самом конце буфера границей не считается: текст еще растет, и это может
// оказаться десятичная точка или сокращение.
// Побеждает граница, ближайшая к порогу, при условии что она не раньше 70% порога.
// Если такой нет, возвращаются ровно первые threshold рун.
func Cut(text string, threshold int) string {
	if threshold <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	limit := threshold + threshold*overshootNum/ratioDen
	if limit > len(runes) {
		limit = len(runes)
	}
	minEnd := (threshold*minRatioNum + ratioDen - 1) / ratioDen

	best, bestDist := -1, 0
	for i := 0; i < limit; i++ {
		end, ok := boundaryAt(runes, i)
		if !ok || end > limit || end < minEnd || end == 0 {
			continue
		}
		dist := end - threshold
		if dist < 0 {
			dist = -dist
		}
		// при равенстве оставляем более раннюю границу
		if best < 0 || dist < bestDist {
			best, bestDist = end, dist
		}
	}

	if best < 0 {
		if threshold > len(runes) {
			return string(runes)
		}
		return string(runes[:threshold])
	}
	return strings.TrimRightFunc(string(runes[:best]), unicode.IsSpace)
}

// boundaryAt сообщает, начинается ли в позиции i граница, и возвращает индекс конца превью (исключительно).
func boundaryAt(runes []rune, i int) (int, bool) {
	r := runes[i]
	switch {
	case r == '\n':
		if i+1 < len(runes) && runes[i+1] == '\n' {
			return i, true
		}
	case isCJKTerminal(r):
		return skipClosers(runes, i+1), true
	case r == '.' || r == '!' || r == '?':
		j := skipClosers(runes, i+1)
		if j < len(runes) && unicode.IsSpace(runes[j]) {
			return j, true
		}
	}
	return 0, false
}

func skipClosers(runes []rune, j int) int {
	for j < len(runes) && isCloser(runes[j]) {
		j++
	}
	return j
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’', '」', '』':
		return true
	}
	return false
}

func isCJKTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}
