// =============================================================================
// 🤖 MockBackend - LLM Agent 后端模拟实现
// =============================================================================
// 用于测试的后端模拟，按脚本回放响应并记录每次请求
//
// 使用方法:
//
//	b := mocks.NewMockBackend().WithReplies(`{"answer": "42"}`)
//	resp, err := b.Run(ctx, backend.Request{Prompt: "..."})
// =============================================================================
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/sigflow/backend"
)

// =============================================================================
// 🎯 MockBackend 结构
// =============================================================================

// MockBackend 是 Backend 的模拟实现
type MockBackend struct {
	mu sync.RWMutex

	// 响应脚本：逐条消费，最后一条重复使用
	replies []string
	cursor  int

	// 错误注入
	err       error
	failAfter int // 第 N+1 次调用开始失败（0 表示不启用）

	// 调用记录
	calls []backend.Request

	// 自定义行为
	runFunc func(ctx context.Context, req backend.Request) (*backend.Response, error)

	name string
}

// =============================================================================
// 🔧 构造函数和 Builder 方法
// =============================================================================

// NewMockBackend 创建新的 MockBackend
func NewMockBackend() *MockBackend {
	return &MockBackend{name: "mock"}
}

// WithName 设置后端名称
func (m *MockBackend) WithName(name string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithReplies 设置响应脚本，逐条消费，最后一条重复
func (m *MockBackend) WithReplies(replies ...string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = replies
	m.cursor = 0
	return m
}

// WithError 设置每次调用都返回的错误
func (m *MockBackend) WithError(err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter 设置在第 N 次成功调用之后开始失败
func (m *MockBackend) WithFailAfter(n int, err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// WithRunFunc 设置自定义 Run 行为（优先于脚本）
func (m *MockBackend) WithRunFunc(fn func(ctx context.Context, req backend.Request) (*backend.Response, error)) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runFunc = fn
	return m
}

// =============================================================================
// ⚙️ Backend 接口实现
// =============================================================================

// Name 实现 backend.Backend
func (m *MockBackend) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// Run 实现 backend.Backend。SessionID 处理与真实后端一致：空请求
// 创建新会话 id，非空请求原样延续。
func (m *MockBackend) Run(ctx context.Context, req backend.Request) (*backend.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	if fn := m.runFunc; fn != nil {
		m.mu.Unlock()
		return fn(ctx, req)
	}
	defer m.mu.Unlock()

	if m.err != nil && (m.failAfter == 0 || len(m.calls) > m.failAfter) {
		return nil, m.err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("ses_mock_%d", len(m.calls))
	}

	reply := ""
	if len(m.replies) > 0 {
		reply = m.replies[m.cursor]
		if m.cursor < len(m.replies)-1 {
			m.cursor++
		}
	}

	return &backend.Response{Text: reply, SessionID: sessionID}, nil
}

// =============================================================================
// 🔍 调用检查
// =============================================================================

// Calls 返回记录的全部请求
func (m *MockBackend) Calls() []backend.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]backend.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockBackend) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastCall 返回最后一次请求，未调用过时返回零值
func (m *MockBackend) LastCall() backend.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return backend.Request{}
	}
	return m.calls[len(m.calls)-1]
}

// Reset 清空调用记录和脚本游标
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.cursor = 0
}
