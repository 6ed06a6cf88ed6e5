package fulfillment

import (
	"context"
	"fmt"
	"sync"

	"esimsync/internal/apperr"
	"esimsync/internal/models"
	"esimsync/internal/services/mobimatter"
)

type stubProvider struct {
	mu    sync.Mutex
	calls []string

	codes        []string
	created      int
	createErr    error
	completeErrs []error

	lookupPending   int
	lookupActivated bool
	artifactPending int
	neverReady      map[string]bool
	emailErr        error

	lookups   map[string]int
	artifacts map[string]int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		neverReady: map[string]bool{},
		lookups:    map[string]int{},
		artifacts:  map[string]int{},
	}
}

func (s *stubProvider) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *stubProvider) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubProvider) count(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (s *stubProvider) CreateOrder(ctx context.Context, productID, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create:" + productID)
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created++
	if len(s.codes) >= s.created {
		return s.codes[s.created-1], nil
	}
	return fmt.Sprintf("MM%d", 100+s.created), nil
}

func (s *stubProvider) CompleteOrder(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("complete:" + code)
	if len(s.completeErrs) > 0 {
		err := s.completeErrs[0]
		s.completeErrs = s.completeErrs[1:]
		return err
	}
	return nil
}

func (s *stubProvider) LookupOrderByCode(ctx context.Context, code string) (*mobimatter.OrderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("lookup:" + code)
	s.lookups[code]++
	if s.lookups[code] <= s.lookupPending {
		return nil, apperr.Pending("stub.Lookup")
	}
	ref := &mobimatter.OrderRef{OrderCode: code, InternalID: "int-" + code}
	if s.lookupActivated {
		ref.Activation = &models.Activation{QRCodeURL: "https://qr/int-" + code}
	}
	return ref, nil
}

func (s *stubProvider) GetActivationArtifact(ctx context.Context, internalID string) (*models.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("artifact:" + internalID)
	s.artifacts[internalID]++
	if s.neverReady[internalID] || s.artifacts[internalID] <= s.artifactPending {
		return nil, apperr.Pending("stub.Artifact")
	}
	return &models.Activation{QRCodeURL: "https://qr/" + internalID, LPACode: "LPA:1$smdp$" + internalID}, nil
}

func (s *stubProvider) SendActivationEmail(ctx context.Context, internalID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("email:" + internalID)
	return s.emailErr
}

type stubTarget struct {
	mu       sync.Mutex
	attached []string
	failures int
}

func (t *stubTarget) AttachArtifact(ctx context.Context, orderID string, a *models.Activation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return apperr.E(apperr.KindDelivery, "stub.Attach", fmt.Errorf("storefront unavailable"))
	}
	t.attached = append(t.attached, orderID+"|"+a.QRCodeURL)
	return nil
}

type memPending struct {
	mu     sync.Mutex
	seq    int
	orders []models.PendingOrder
}

func (m *memPending) Append(ctx context.Context, order *models.PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == "" {
		m.seq++
		order.ID = fmt.Sprintf("p-%03d", m.seq)
	}
	m.orders = append(m.orders, *order)
	return nil
}

func (m *memPending) List(ctx context.Context) ([]models.PendingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PendingOrder(nil), m.orders...), nil
}

func (m *memPending) Replace(ctx context.Context, listed, remaining []models.PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := map[string]models.PendingOrder{}
	for _, o := range remaining {
		keep[o.ID] = o
	}
	inListed := map[string]bool{}
	for _, o := range listed {
		inListed[o.ID] = true
	}

	var next []models.PendingOrder
	for _, o := range m.orders {
		if updated, ok := keep[o.ID]; ok {
			next = append(next, updated)
			continue
		}
		if !inListed[o.ID] {
			next = append(next, o)
		}
	}
	m.orders = next
	return nil
}

func (m *memPending) CountOpen(ctx context.Context, destinationOrderID, sku string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.orders {
		if o.DestinationOrderID == destinationOrderID && o.SKU == sku {
			n++
		}
	}
	return n, nil
}

type memDeliveries struct {
	mu       sync.Mutex
	byCode   map[string]models.Delivery
	writes   int
	failures int
}

func (m *memDeliveries) Record(ctx context.Context, d *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("database is locked")
	}
	if m.byCode == nil {
		m.byCode = map[string]models.Delivery{}
	}
	m.byCode[d.ProviderOrderCode] = *d
	m.writes++
	return nil
}

func (m *memDeliveries) Count(ctx context.Context, destinationOrderID, sku string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.byCode {
		if d.DestinationOrderID == destinationOrderID && d.SKU == sku {
			n++
		}
	}
	return n, nil
}
