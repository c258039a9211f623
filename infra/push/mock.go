package push

import (
	"context"
	"sync"

	"github.com/savelife/rescue/core/model"
	corepush "github.com/savelife/rescue/core/push"
)

// MockGateway is a simple gateway used in tests.
type MockGateway struct {
	mu          sync.Mutex
	Sent        map[string]model.NotificationPayload
	FailTokens  map[string]bool
	Unavailable bool
}

// NewMockGateway creates a new MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Sent:       make(map[string]model.NotificationPayload),
		FailTokens: make(map[string]bool),
	}
}

// Send records each payload, failing the recipients configured to fail.
func (m *MockGateway) Send(ctx context.Context, payloads []model.NotificationPayload) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unavailable {
		return nil, corepush.ErrGatewayUnavailable
	}
	delivered := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		if m.FailTokens[p.Recipient] {
			continue
		}
		m.Sent[p.Recipient] = p
		delivered[p.Recipient] = true
	}
	return delivered, nil
}
