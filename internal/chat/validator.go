// Package chat holds content rules shared by the transport and coordinator:
// message and nickname validation, and nickname masking for logs.
package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096 // 4KB max frame size
	MaxTextChars    = 2000 // max character count

	// MaxNicknameChars is the only constraint on nicknames: a length cap.
	MaxNicknameChars = 32

	// DefaultNickname is used when a client submits an empty nickname.
	DefaultNickname = "anonymous"
)

// ValidateMessage checks that a chat message meets content requirements.
func ValidateMessage(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("message text is empty")
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("message exceeds %d byte limit", MaxMessageBytes)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("message exceeds %d character limit", MaxTextChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}

// NormalizeNickname trims surrounding whitespace, substitutes the default for
// an empty nickname, and rejects nicknames over the length cap. No other
// validation is applied.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return DefaultNickname, nil
	}
	if !utf8.ValidString(nickname) {
		return "", fmt.Errorf("nickname contains invalid UTF-8")
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameChars {
		return "", fmt.Errorf("nickname exceeds %d character limit", MaxNicknameChars)
	}
	return nickname, nil
}

// MaskNickname abbreviates a nickname for log output so that operational logs
// never carry full display names. Nicknames of two characters or fewer are
// fully masked.
func MaskNickname(nickname string) string {
	runes := []rune(nickname)
	if len(runes) <= 2 {
		return "***"
	}
	return string(runes[:2]) + "***"
}
