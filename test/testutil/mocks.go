package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/lssh/internal/crypto"
	"github.com/TheMichaelB/lssh/internal/prompt"
	"github.com/TheMichaelB/lssh/internal/session"
)

// MockLauncher mocks the session launcher.
type MockLauncher struct {
	mock.Mock
}

func NewMockLauncher() *MockLauncher {
	return &MockLauncher{}
}

func (m *MockLauncher) Launch(ctx context.Context, creds session.Credentials) (int, error) {
	args := m.Called(ctx, creds)
	return args.Int(0), args.Error(1)
}

// MockCryptoProvider mocks crypto operations.
type MockCryptoProvider struct {
	mock.Mock
}

func NewMockCryptoProvider() *MockCryptoProvider {
	return &MockCryptoProvider{}
}

func (m *MockCryptoProvider) DeriveKey(passphrase string, params crypto.KDFParams) ([]byte, error) {
	args := m.Called(passphrase, params)
	if key := args.Get(0); key != nil {
		return key.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCryptoProvider) EncryptData(plaintext, key, additional []byte) ([]byte, error) {
	args := m.Called(plaintext, key, additional)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCryptoProvider) DecryptData(token, key, additional []byte) ([]byte, error) {
	args := m.Called(token, key, additional)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// Answer is one scripted reply to a prompt.
type Answer struct {
	Value string
	Err   error
}

// ScriptedPrompter replays answers in order and records every question.
// Running out of answers yields prompt.ErrAborted, like EOF on a terminal.
type ScriptedPrompter struct {
	mu      sync.Mutex
	answers []Answer
	Asked   []string
	Offered [][]string
}

// NewScriptedPrompter queues plain string answers.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	p := &ScriptedPrompter{}
	for _, a := range answers {
		p.answers = append(p.answers, Answer{Value: a})
	}
	return p
}

// Push queues another answer.
func (p *ScriptedPrompter) Push(a Answer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, a)
}

// Remaining returns the number of unused answers.
func (p *ScriptedPrompter) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.answers)
}

func (p *ScriptedPrompter) next(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Asked = append(p.Asked, message)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", prompt.ErrAborted, err)
	}
	if len(p.answers) == 0 {
		return "", prompt.ErrAborted
	}

	a := p.answers[0]
	p.answers = p.answers[1:]
	return a.Value, a.Err
}

func (p *ScriptedPrompter) Text(ctx context.Context, message string) (string, error) {
	return p.next(ctx, message)
}

func (p *ScriptedPrompter) Secret(ctx context.Context, message string) (string, error) {
	return p.next(ctx, message)
}

// Select returns the scripted answer, which must be one of choices.
func (p *ScriptedPrompter) Select(ctx context.Context, message string, choices []string) (string, error) {
	p.mu.Lock()
	p.Offered = append(p.Offered, append([]string(nil), choices...))
	p.mu.Unlock()

	answer, err := p.next(ctx, message)
	if err != nil {
		return "", err
	}

	for _, c := range choices {
		if c == answer {
			return answer, nil
		}
	}
	return "", fmt.Errorf("scripted answer %q not among choices %v", answer, choices)
}
