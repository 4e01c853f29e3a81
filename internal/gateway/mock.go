package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockProvider is a mock payment provider for testing. It simulates
// successful payment flows without calling a real processor.
type MockProvider struct {
	// OpenIntentFunc allows customizing intent creation behavior
	OpenIntentFunc func(ctx context.Context, params OpenIntentParams) (*Intent, error)

	// GetIntentFunc allows customizing intent retrieval behavior
	GetIntentFunc func(ctx context.Context, id string) (*Intent, error)

	// ParseCallbackFunc allows customizing callback verification behavior
	ParseCallbackFunc func(payload []byte, signature string) (*CallbackEvent, error)

	// Intents stores opened intents for retrieval
	Intents map[string]*Intent

	// CallLog tracks method calls for test assertions
	CallLog []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Intents: make(map[string]*Intent),
		CallLog: []string{},
	}
}

func (m *MockProvider) OpenIntent(ctx context.Context, params OpenIntentParams) (*Intent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("OpenIntent(%d, %s)", params.AmountCents, params.Currency))

	if m.OpenIntentFunc != nil {
		return m.OpenIntentFunc(ctx, params)
	}

	id := "pi_" + uuid.New().String()
	meta := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		meta[k] = v
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       IntentStatusPending,
		Metadata:     meta,
	}
	m.Intents[id] = intent
	return intent, nil
}

func (m *MockProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetIntent(%s)", id))

	if m.GetIntentFunc != nil {
		return m.GetIntentFunc(ctx, id)
	}
	intent, ok := m.Intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (m *MockProvider) ParseCallback(payload []byte, signature string) (*CallbackEvent, error) {
	m.CallLog = append(m.CallLog, "ParseCallback")

	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(payload, signature)
	}
	return nil, ErrInvalidSignature
}

func (m *MockProvider) PublishableKey() string {
	return "pk_test_mock"
}

// SucceedIntent flips a stored intent to succeeded and returns the
// callback event a provider would deliver for it.
func (m *MockProvider) SucceedIntent(id string) *CallbackEvent {
	intent, ok := m.Intents[id]
	if !ok {
		return nil
	}
	intent.Status = IntentStatusSucceeded
	return &CallbackEvent{
		Type:        EventPaymentSucceeded,
		EventID:     "evt_" + uuid.New().String(),
		IntentID:    intent.ID,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Metadata:    intent.Metadata,
	}
}
