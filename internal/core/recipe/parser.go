package recipe

import (
	"strings"

	"pantry-recipes/internal/core/ai"
	"pantry-recipes/internal/pkg/common"
)

// GeneratedRecipe 模型產生的食譜，三個欄位皆必填
type GeneratedRecipe struct {
	Title       string `json:"title"`
	Ingredients string `json:"ingredients"`
	Steps       string `json:"steps"`
}

// ExtractJSON 從模型輸出中取出 JSON 物件字串
func ExtractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return "", ai.NewInvalidResponseError("AI response is not valid JSON", map[string]interface{}{
			"content": content,
		}, nil)
	}

	return trimmed[start : end+1], nil
}

// ParseRecipeContent 解析並驗證模型輸出
func ParseRecipeContent(content string) (*GeneratedRecipe, error) {
	jsonContent, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := common.ParseJSON(jsonContent, &raw); err != nil {
		return nil, ai.NewInvalidResponseError("AI response is not valid JSON", map[string]interface{}{
			"content": content,
		}, err)
	}

	fields, _ := raw.(map[string]interface{})
	recipe := &GeneratedRecipe{
		Title:       trimmedString(fields, "title"),
		Ingredients: trimmedString(fields, "ingredients"),
		Steps:       trimmedString(fields, "steps"),
	}

	if recipe.Title == "" || recipe.Ingredients == "" || recipe.Steps == "" {
		return nil, ai.NewInvalidResponseError("AI response missing recipe fields", map[string]interface{}{
			"raw": raw,
		}, nil)
	}

	return recipe, nil
}

// trimmedString 非字串欄位視為空
func trimmedString(fields map[string]interface{}, key string) string {
	s, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
