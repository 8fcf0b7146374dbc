// =============================================================================
// 📦 测试数据工厂 - 后端响应测试数据
// =============================================================================
// 提供预定义的后端回复文本，用于解析与修正测试
// =============================================================================
package fixtures

// =============================================================================
// 🎯 回复文本工厂
// =============================================================================

// ValidPersonJSON 返回满足 Person 签名的纯 JSON 回复
func ValidPersonJSON() string {
	return `{"name": "John", "age": 30}`
}

// FencedPersonJSON 返回包在 Markdown 代码块里的 Person 回复
func FencedPersonJSON() string {
	return "Here is the result:\n```json\n{\"name\": \"John\", \"age\": 30}\n```\nLet me know if you need anything else."
}

// MissingAgeJSON 返回缺少 age 字段的 Person 回复
func MissingAgeJSON() string {
	return `{"name": "John"}`
}

// SimilarFieldJSON 返回用同义字段名代替 answer 的回复
func SimilarFieldJSON() string {
	return `{"response": "42"}`
}

// NotJSON 返回完全不含 JSON 的回复
func NotJSON() string {
	return "not json"
}

// BrokenJSON 返回括号不平衡、无法解析的回复
func BrokenJSON() string {
	return `{"name": "John", "age": `
}

// AgeJSONPatch 返回为 Person 补上 age 的 RFC 6902 补丁回复
func AgeJSONPatch() string {
	return `[{"op": "add", "path": "/age", "value": 30}]`
}

// AgeJQPatch 返回为 Person 补上 age 的 jq 表达式回复
func AgeJQPatch() string {
	return `.age = 30`
}
