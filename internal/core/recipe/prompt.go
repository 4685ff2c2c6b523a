package recipe

import (
	"regexp"
	"strings"
)

// DefaultBasics include_basics 時附加的基本食材
var DefaultBasics = []string{"salt", "black pepper", "neutral oil", "water"}

var ingredientsSplitPattern = regexp.MustCompile(`[,;\n]+`)

// SplitIngredients 以逗號、分號或換行切分食材，去除空白與空項，保留原順序
func SplitIngredients(raw string) []string {
	parts := ingredientsSplitPattern.Split(raw, -1)
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// BuildPromptIngredients 組合提示用的食材字串；基本食材不與使用者輸入去重
func BuildPromptIngredients(raw string, includeBasics bool) string {
	items := SplitIngredients(raw)
	if includeBasics {
		items = append(items, DefaultBasics...)
	}
	return strings.Join(items, ", ")
}

// Prompts system/user 提示
type Prompts struct {
	System string
	User   string
}

// BuildPrompts 產生要求模型只回傳 JSON 的提示
func BuildPrompts(ingredients string) Prompts {
	system := strings.Join([]string{
		"You are a helpful cooking assistant.",
		"Return ONLY valid JSON with keys: title, ingredients, steps.",
		"Do not include markdown or code fences.",
	}, " ")

	user := strings.Join([]string{
		"Create a concise, practical recipe based on the following ingredients list.",
		"Return the ingredients as a comma-separated string, and steps as a multi-line string.",
		"Ingredients: " + ingredients,
	}, " ")

	return Prompts{System: system, User: user}
}
