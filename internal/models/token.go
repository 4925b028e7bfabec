package models

import "strings"

// Token is an opaque string under validation. Duplicates are allowed and evaluated independently.
type Token string

// Worklist is the ordered token list loaded for one cycle plus the store-assigned
// identifier it must be written back to.
type Worklist struct {
	ID     string  `json:"id"`
	Tokens []Token `json:"tokens"`
}

// Empty reports whether the worklist holds no tokens.
func (w Worklist) Empty() bool {
	return len(w.Tokens) == 0
}

// ParseTokens splits line-oriented content into tokens, trimming each line and dropping blanks.
func ParseTokens(content string) []Token {
	var tokens []Token
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, Token(line))
	}
	return tokens
}

// JoinTokens renders tokens as newline-joined content.
func JoinTokens(tokens []Token) string {
	lines := make([]string, len(tokens))
	for i, token := range tokens {
		lines[i] = string(token)
	}
	return strings.Join(lines, "\n")
}
