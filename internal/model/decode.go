package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// ErrMalformedRecord 快照中的记录结构不合法
var ErrMalformedRecord = errors.New("malformed record")

// DecodeIdentity 解码并校验 users/{id} 记录
func DecodeIdentity(id string, raw []byte) (Identity, error) {
	var entry DirectoryEntry
	if err := decode(raw, &entry); err != nil {
		return Identity{}, fmt.Errorf("user %q: %w", id, err)
	}
	ident := IdentityFromEntry(id, entry)
	if err := check(&ident); err != nil {
		return Identity{}, fmt.Errorf("user %q: %w", id, err)
	}
	return ident, nil
}

// DecodeMessage 解码并校验消息或最近消息预览
func DecodeMessage(key string, raw []byte) (Message, error) {
	var msg Message
	if err := decode(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("message %q: %w", key, err)
	}
	if err := check(&msg); err != nil {
		return Message{}, fmt.Errorf("message %q: %w", key, err)
	}
	return msg, nil
}

// DecodePresence presence/{id} 只能是布尔值
func DecodePresence(id string, raw []byte) (bool, error) {
	var online bool
	if err := json.Unmarshal(raw, &online); err != nil {
		return false, fmt.Errorf("presence %q: %w: %v", id, ErrMalformedRecord, err)
	}
	return online, nil
}

func decode(raw []byte, dst any) error {
	if len(raw) == 0 || raw[0] != '{' {
		return fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			first := vErrs[0]
			return fmt.Errorf("%w: field [%s] failed rule [%s]", ErrMalformedRecord, first.Field(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}
