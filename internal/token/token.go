package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultBytes 默认令牌随机字节数（十六进制编码后 64 个字符）
const DefaultBytes = 32

// Generator 生成不透明令牌
//
// 每次调用相互独立，令牌本身不携带任何结构信息，仅作为查找凭据使用。
type Generator interface {
	Generate() (string, error)
}

// RandomHex 基于 crypto/rand 的十六进制令牌生成器
type RandomHex struct {
	Bytes int
}

// NewRandomHex 创建默认长度的令牌生成器
func NewRandomHex() RandomHex {
	return RandomHex{Bytes: DefaultBytes}
}

// Generate 生成一个新的随机令牌
func (g RandomHex) Generate() (string, error) {
	n := g.Bytes
	if n <= 0 {
		n = DefaultBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GeneratorFunc 将普通函数适配为 Generator，便于测试注入
type GeneratorFunc func() (string, error)

// Generate 调用底层函数
func (f GeneratorFunc) Generate() (string, error) {
	return f()
}
