package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationKey_Symmetric(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"alice", "bob", "alice_bob"},
		{"bob", "alice", "alice_bob"},
		{"Zed", "amy", "Zed_amy"},
		{"u10", "u9", "u10_u9"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConversationKey(tc.a, tc.b))
		assert.Equal(t, ConversationKey(tc.a, tc.b), ConversationKey(tc.b, tc.a))
	}
}

func TestCounterpart(t *testing.T) {
	key := ConversationKey("alice", "bob")

	cp, ok := Counterpart(key, "alice")
	assert.True(t, ok)
	assert.Equal(t, "bob", cp)

	cp, ok = Counterpart(key, "bob")
	assert.True(t, ok)
	assert.Equal(t, "alice", cp)

	_, ok = Counterpart(key, "carol")
	assert.False(t, ok)
}
