package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSONObject достает JSON-объект из ответа модели: из блока ```json```,
// иначе между первой { и последней }. Возвращает "", если валидного объекта нет.
func ExtractJSONObject(rawText string) string {
	rawText = strings.TrimSpace(rawText)
	if isJSONObject(rawText) {
		return rawText
	}

	if matches := codeBlockRegex.FindStringSubmatch(rawText); len(matches) > 1 {
		if candidate := strings.TrimSpace(matches[1]); isJSONObject(candidate) {
			return candidate
		}
	}

	first := strings.Index(rawText, "{")
	last := strings.LastIndex(rawText, "}")
	if first != -1 && last > first {
		if candidate := rawText[first : last+1]; isJSONObject(candidate) {
			return candidate
		}
	}
	return ""
}

func isJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}
