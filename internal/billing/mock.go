package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MockGateway is a mock billing gateway for testing.
// Simulates preapproval flows without calling the MercadoPago API.
type MockGateway struct {
	// CreatePreapprovalFunc allows customizing creation behavior
	CreatePreapprovalFunc func(ctx context.Context, params CreatePreapprovalParams) (*Preapproval, error)

	// GetPreapprovalFunc allows customizing fetch behavior
	GetPreapprovalFunc func(ctx context.Context, id string) (*Preapproval, error)

	// Preapprovals stores created preapprovals for retrieval
	Preapprovals map[string]*Preapproval

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check that MockGateway implements Gateway.
var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Preapprovals: make(map[string]*Preapproval),
		CallLog:      []string{},
	}
}

// CreatePreapproval creates a mock preapproval in pending status.
func (m *MockGateway) CreatePreapproval(ctx context.Context, params CreatePreapprovalParams) (*Preapproval, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePreapproval(%s)", params.ExternalReference))

	if m.CreatePreapprovalFunc != nil {
		return m.CreatePreapprovalFunc(ctx, params)
	}

	id := "mp_" + uuid.New().String()
	pre := &Preapproval{
		ID:                id,
		Status:            PreapprovalStatusPending,
		ExternalReference: params.ExternalReference,
		InitPoint:         "https://www.mercadopago.com/subscriptions/checkout?preapproval_id=" + id,
		PayerEmail:        params.PayerEmail,
		Reason:            params.Reason,
		AutoRecurring:     params.AutoRecurring,
	}
	pre.Raw, _ = json.Marshal(pre)

	m.Preapprovals[id] = pre
	return pre, nil
}

// GetPreapproval returns a previously created mock preapproval.
func (m *MockGateway) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPreapproval(%s)", id))

	if m.GetPreapprovalFunc != nil {
		return m.GetPreapprovalFunc(ctx, id)
	}

	pre, ok := m.Preapprovals[id]
	if !ok {
		return nil, ErrPreapprovalNotFound
	}
	return pre, nil
}

// SetStatus updates a stored preapproval's status, simulating a
// provider-side transition ahead of the next fetch.
func (m *MockGateway) SetStatus(id, status string) {
	if pre, ok := m.Preapprovals[id]; ok {
		pre.Status = status
		pre.Raw, _ = json.Marshal(pre)
	}
}
