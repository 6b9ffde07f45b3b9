package mobilemoney

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"eventportal/internal/domain"
)

// Sandbox is an in-process gateway for development. Every transaction resolves on its first
// status query: numbers ending in 0 fail, all others succeed.
type Sandbox struct {
	mu     sync.Mutex
	phones map[string]string
}

// NewSandbox returns an empty sandbox gateway.
func NewSandbox() *Sandbox {
	return &Sandbox{phones: make(map[string]string)}
}

func (s *Sandbox) Initiate(ctx context.Context, req domain.PaymentRequest) (string, error) {
	txID := "sbx-" + uuid.NewString()
	s.mu.Lock()
	s.phones[txID] = req.PhoneNumber
	s.mu.Unlock()
	return txID, nil
}

func (s *Sandbox) Status(ctx context.Context, transactionID string, provider domain.PaymentProvider) (domain.PaymentStatusResult, error) {
	s.mu.Lock()
	phone, ok := s.phones[transactionID]
	s.mu.Unlock()
	if !ok {
		return domain.PaymentStatusResult{}, &domain.ProviderError{StatusCode: http.StatusNotFound, Message: "unknown transaction"}
	}
	if strings.HasSuffix(phone, "0") {
		return domain.PaymentStatusResult{Status: domain.PaymentFailed, Message: "sandbox: payment declined"}, nil
	}
	return domain.PaymentStatusResult{Status: domain.PaymentSuccessful, Message: "sandbox: payment approved"}, nil
}
