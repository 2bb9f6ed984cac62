package auth

import "context"

// MockVerifier accepts only Token (any token when Token is empty) and returns
// Caller, or Err when set.
type MockVerifier struct {
	Token  string
	Caller *Caller
	Err    error
}

func (m *MockVerifier) Verify(_ context.Context, idToken string) (*Caller, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Token != "" && idToken != m.Token {
		return nil, ErrInvalidToken
	}
	return m.Caller, nil
}

// TestCaller is the caller tests authenticate as.
func TestCaller() *Caller {
	return &Caller{UID: "uid-test-1", Email: "ada@example.com"}
}

var _ Verifier = (*MockVerifier)(nil)
