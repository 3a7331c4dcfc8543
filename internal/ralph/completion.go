// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import "strings"

// PromiseTag wraps token in the completion marker the agent is told to emit.
func PromiseTag(token string) string {
	return "<promise>" + token + "</promise>"
}

// CompletionMatcher scans agent output for the completion marker. In strict
// mode only the wrapped <promise>TOKEN</promise> form counts. Lenient mode
// also accepts the bare token anywhere in the text, which can end a loop
// early when the agent merely mentions the token.
type CompletionMatcher struct {
	Token   string
	Lenient bool
}

// Matches reports whether output signals completion.
func (m CompletionMatcher) Matches(output string) bool {
	token := m.Token
	if token == "" {
		token = DefaultCompletionPromise
	}
	if strings.Contains(output, PromiseTag(token)) {
		return true
	}
	return m.Lenient && strings.Contains(output, token)
}
