package identity

import (
	"context"
	"fmt"
	"sync"
)

// MockService is an in-memory provider for tests. Email uniqueness is enforced
// like the real provider. Set the *Err fields to force failures.
type MockService struct {
	mu       sync.Mutex
	accounts map[string]mockAccount // by email
	nextID   int
	Deleted  []string

	SignUpErr error
	SignInErr error
	ResetErr  error
	TokenErr  error
	DeleteErr error
}

type mockAccount struct {
	uid      string
	password string
}

func NewMockService() *MockService {
	return &MockService{accounts: make(map[string]mockAccount)}
}

func (m *MockService) SignUp(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SignUpErr != nil {
		return nil, m.SignUpErr
	}
	if _, ok := m.accounts[email]; ok {
		return nil, &UpstreamError{Code: "EMAIL_EXISTS", Status: 400}
	}
	m.nextID++
	uid := fmt.Sprintf("uid-%d", m.nextID)
	m.accounts[email] = mockAccount{uid: uid, password: password}
	return mockSession(uid, email), nil
}

func (m *MockService) SignIn(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SignInErr != nil {
		return nil, m.SignInErr
	}
	acct, ok := m.accounts[email]
	if !ok {
		return nil, &UpstreamError{Code: "EMAIL_NOT_FOUND", Status: 400}
	}
	if acct.password != password {
		return nil, &UpstreamError{Code: "INVALID_PASSWORD", Status: 400}
	}
	return mockSession(acct.uid, email), nil
}

func (m *MockService) PasswordResetLink(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetErr != nil {
		return "", m.ResetErr
	}
	if _, ok := m.accounts[email]; !ok {
		return "", &UpstreamError{Code: "EMAIL_NOT_FOUND", Status: 400}
	}
	return "https://example.firebaseapp.com/__/auth/action?mode=resetPassword&oobCode=mock", nil
}

func (m *MockService) CustomToken(_ context.Context, uid string, _ map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TokenErr != nil {
		return "", m.TokenErr
	}
	return "custom-token-" + uid, nil
}

func (m *MockService) DeleteUser(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for email, acct := range m.accounts {
		if acct.uid == uid {
			delete(m.accounts, email)
		}
	}
	m.Deleted = append(m.Deleted, uid)
	return nil
}

// Accounts returns how many accounts exist.
func (m *MockService) Accounts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func mockSession(uid, email string) *Session {
	return &Session{UserID: uid, Email: email, IDToken: "id-token-" + uid, RefreshToken: "refresh-" + uid}
}

var _ Service = (*MockService)(nil)
