package service

import "strings"

// KeySeparator 会话 key 中两个身份 id 的分隔符
const KeySeparator = "_"

// ConversationKey 单聊会话 key, 与发起方无关: key(a,b) == key(b,a)
func ConversationKey(a, b string) string {
	if a < b {
		return a + KeySeparator + b
	}
	return b + KeySeparator + a
}

// Counterpart 从会话 key 中解析对方 id; self 不在 key 中时返回 false
func Counterpart(key, self string) (string, bool) {
	if rest, ok := strings.CutPrefix(key, self+KeySeparator); ok && ConversationKey(self, rest) == key {
		return rest, true
	}
	if rest, ok := strings.CutSuffix(key, KeySeparator+self); ok && ConversationKey(rest, self) == key {
		return rest, true
	}
	return "", false
}
