// =============================================================================
// 📦 测试数据工厂 - 签名测试数据
// =============================================================================
// 提供各测试包共用的预定义签名
// =============================================================================
package fixtures

import "github.com/BaSui01/sigflow/signature"

// =============================================================================
// 🎯 签名工厂
// =============================================================================

// PersonSignature 返回 {name: string, age: number} 输出签名
func PersonSignature() *signature.Signature {
	return signature.New("Extract the person mentioned in the text.").
		Input("text", signature.String(), "source text").
		Output("name", signature.String(), "the person's name").
		Output("age", signature.Number(), "the person's age in years").
		MustBuild()
}

// QASignature 返回单字段 {answer: string} 输出签名
func QASignature() *signature.Signature {
	return signature.New("Answer the question.").
		Input("question", signature.String(), "the question to answer").
		Output("answer", signature.String(), "the answer").
		MustBuild()
}

// ReviewSignature 返回带可选字段与枚举的复合签名
func ReviewSignature() *signature.Signature {
	return signature.New("Review the submitted code.").
		Input("diff", signature.String(), "unified diff to review").
		Output("verdict", signature.Enum("approve", "reject", "revise"), "review verdict").
		Output("comments", signature.Array(signature.String()), "review comments").
		Output("score", signature.Optional(signature.Number()), "quality score").
		MustBuild()
}
