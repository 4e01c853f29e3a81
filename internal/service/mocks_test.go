package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/stitch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// In-memory store implementations for testing
// ============================================================================

// memSessionStore implements domain.SessionStore in memory.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.GuestSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.GuestSession)}
}

func (m *memSessionStore) CreateGuestSession(ctx context.Context, token string, expiresAt time.Time) (*domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &domain.GuestSession{Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	m.sessions[token] = sess
	out := *sess
	return &out, nil
}

func (m *memSessionStore) GetGuestSession(ctx context.Context, token string) (*domain.GuestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := *sess
	return &out, nil
}

func (m *memSessionStore) MarkConverted(ctx context.Context, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[token]; ok && sess.ConvertedAt == nil {
		now := time.Now()
		sess.ConvertedAt = &now
		sess.ConvertedUserID = userID
	}
	return nil
}

func (m *memSessionStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, sess := range m.sessions {
		if sess.ExpiresAt.Before(before) && sess.ConvertedAt == nil {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// memUserStore implements domain.UserStore in memory.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User // by ID
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*domain.User)}
}

func (m *memUserStore) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	out := *u
	return &out, nil
}

func (m *memUserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		out := *u
		return &out, nil
	}
	return nil, domain.ErrUserNotFound
}

// memCatalog implements domain.Catalog in memory.
type memCatalog struct {
	mu       sync.Mutex
	variants map[domain.Variant]domain.VariantFact
}

func newMemCatalog() *memCatalog {
	return &memCatalog{variants: make(map[domain.Variant]domain.VariantFact)}
}

func (m *memCatalog) put(v domain.Variant, priceCents int64, orderable bool, categoryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[v] = domain.VariantFact{PriceCents: priceCents, Orderable: orderable, CategoryID: categoryID}
}

func (m *memCatalog) GetVariant(ctx context.Context, v domain.Variant) (*domain.VariantFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact, ok := m.variants[v]
	if !ok {
		return nil, domain.NotFound("catalog.get", "product variant", v.ProductID)
	}
	out := fact
	return &out, nil
}

// memCartStore implements domain.CartStore in memory. MergeLines consults
// the catalog for orderability the way the SQL implementation joins
// product_variants.
type memCartStore struct {
	mu      sync.Mutex
	lines   map[cartKey]*domain.CartLine
	updated map[domain.Identity]time.Time
	catalog *memCatalog
}

type cartKey struct {
	kind  domain.IdentityKind
	id    string
	v     domain.Variant
	saved bool
}

func newMemCartStore(catalog *memCatalog) *memCartStore {
	return &memCartStore{
		lines:   make(map[cartKey]*domain.CartLine),
		updated: make(map[domain.Identity]time.Time),
		catalog: catalog,
	}
}

func (m *memCartStore) GetLines(ctx context.Context, owner domain.Identity) (lines, saved []domain.CartLine, updatedAt time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, l := range m.lines {
		if k.kind != owner.Kind || k.id != owner.ID {
			continue
		}
		if k.saved {
			saved = append(saved, *l)
		} else {
			lines = append(lines, *l)
		}
	}
	return lines, saved, m.updated[domain.Identity{Kind: owner.Kind, ID: owner.ID}], nil
}

func (m *memCartStore) AddLine(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32, priceCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cartKey{kind: owner.Kind, id: owner.ID, v: v, saved: false}
	if l, ok := m.lines[k]; ok {
		l.Quantity += quantity
	} else {
		m.lines[k] = &domain.CartLine{
			Variant:         v,
			Quantity:        quantity,
			PriceAtAddCents: priceCents,
			AddedAt:         time.Now(),
		}
	}
	m.touch(owner)
	return nil
}

func (m *memCartStore) SetQuantity(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cartKey{kind: owner.Kind, id: owner.ID, v: v, saved: false}
	l, ok := m.lines[k]
	if !ok {
		return false, nil
	}
	l.Quantity = quantity
	m.touch(owner)
	return true, nil
}

func (m *memCartStore) RemoveLine(ctx context.Context, owner domain.Identity, v domain.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, cartKey{kind: owner.Kind, id: owner.ID, v: v, saved: false})
	m.touch(owner)
	return nil
}

func (m *memCartStore) Clear(ctx context.Context, owner domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(owner, false)
	m.clearLocked(owner, true)
	m.touch(owner)
	return nil
}

func (m *memCartStore) clearLocked(owner domain.Identity, saved bool) {
	for k := range m.lines {
		if k.kind == owner.Kind && k.id == owner.ID && k.saved == saved {
			delete(m.lines, k)
		}
	}
}

func (m *memCartStore) MoveLine(ctx context.Context, owner domain.Identity, v domain.Variant, toSaved bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := cartKey{kind: owner.Kind, id: owner.ID, v: v, saved: !toSaved}
	l, ok := m.lines[src]
	if !ok {
		return false, nil
	}
	delete(m.lines, src)
	dst := cartKey{kind: owner.Kind, id: owner.ID, v: v, saved: toSaved}
	if existing, ok := m.lines[dst]; ok {
		existing.Quantity += l.Quantity
	} else {
		m.lines[dst] = l
	}
	m.touch(owner)
	return true, nil
}

func (m *memCartStore) MergeLines(ctx context.Context, from, to domain.Identity) (moved, dropped int32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, l := range m.lines {
		if k.kind != from.Kind || k.id != from.ID {
			continue
		}
		delete(m.lines, k)
		fact, ok := m.catalog.variants[k.v]
		if !ok || !fact.Orderable {
			dropped++
			continue
		}
		dst := cartKey{kind: to.Kind, id: to.ID, v: k.v, saved: k.saved}
		if existing, ok := m.lines[dst]; ok {
			existing.Quantity += l.Quantity
		} else {
			m.lines[dst] = l
		}
		moved++
	}
	m.touch(to)
	return moved, dropped, nil
}

func (m *memCartStore) touch(owner domain.Identity) {
	m.updated[domain.Identity{Kind: owner.Kind, ID: owner.ID}] = time.Now()
}

// memPromoStore implements domain.PromoStore in memory.
type memPromoStore struct {
	mu     sync.Mutex
	promos map[string]*domain.PromoCode
}

func newMemPromoStore() *memPromoStore {
	return &memPromoStore{promos: make(map[string]*domain.PromoCode)}
}

func (m *memPromoStore) put(p domain.PromoCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[p.Code] = &p
}

func (m *memPromoStore) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[normalizeCode(code)]
	if !ok {
		return nil, domain.ErrPromoNotFound
	}
	out := *p
	return &out, nil
}

func (m *memPromoStore) IncrementUsage(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.promos[normalizeCode(code)]; ok {
		p.UsedCount++
	}
	return nil
}

func normalizeCode(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == ' ' {
			continue
		}
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// memOrderStore implements domain.OrderStore in memory with the same
// payment-intent uniqueness the SQL store enforces.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	carts  domain.CartStore
	promos domain.PromoStore
}

func newMemOrderStore(carts domain.CartStore, promos domain.PromoStore) *memOrderStore {
	return &memOrderStore{orders: make(map[string]*domain.Order), carts: carts, promos: promos}
}

func (m *memOrderStore) CreateOrder(ctx context.Context, o *domain.Order, clearCartOf *domain.Identity) (*domain.Order, error) {
	m.mu.Lock()
	if o.PaymentIntentID != "" {
		for _, existing := range m.orders {
			if existing.PaymentIntentID == o.PaymentIntentID {
				m.mu.Unlock()
				return nil, domain.ErrPaymentAlreadyProcessed
			}
		}
	}
	created := *o
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	m.orders[created.ID] = &created
	m.mu.Unlock()

	if clearCartOf != nil && m.carts != nil {
		if err := m.carts.Clear(ctx, *clearCartOf); err != nil {
			return nil, err
		}
	}
	if o.PromoCode != "" && m.promos != nil {
		if err := m.promos.IncrementUsage(ctx, o.PromoCode); err != nil {
			return nil, err
		}
	}
	out := created
	return &out, nil
}

func (m *memOrderStore) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		out := *o
		return &out, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memOrderStore) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			out := *o
			return &out, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memOrderStore) GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentIntentID == intentID {
			out := *o
			return &out, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memOrderStore) ListOrdersByOwner(ctx context.Context, owner domain.Identity) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.OwnerKind == owner.Kind && o.OwnerID == owner.ID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderStore) ReassignOwner(ctx context.Context, from, to domain.Identity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.orders {
		if o.OwnerKind == from.Kind && o.OwnerID == from.ID {
			o.OwnerKind = to.Kind
			o.OwnerID = to.ID
			n++
		}
	}
	return n, nil
}

// memConversionStore implements domain.ConversionStore in memory.
type memConversionStore struct {
	mu     sync.Mutex
	states map[string]*domain.ConversionState
}

func newMemConversionStore() *memConversionStore {
	return &memConversionStore{states: make(map[string]*domain.ConversionState)}
}

func (m *memConversionStore) Begin(ctx context.Context, guestToken, userID string) (*domain.ConversionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[guestToken]; ok {
		out := *st
		return &out, nil
	}
	st := &domain.ConversionState{
		GuestToken: guestToken,
		UserID:     userID,
		Status:     domain.ConversionPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	m.states[guestToken] = st
	out := *st
	return &out, nil
}

func (m *memConversionStore) Get(ctx context.Context, guestToken string) (*domain.ConversionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[guestToken]
	if !ok {
		return nil, domain.NotFound("conversion.get", "conversion", guestToken)
	}
	out := *st
	return &out, nil
}

func (m *memConversionStore) SetOrdersLinked(ctx context.Context, guestToken string, n int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[guestToken]; ok && st.Status == domain.ConversionPending {
		st.Status = domain.ConversionOrdersLinked
		st.OrdersLinked = n
		st.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memConversionStore) Complete(ctx context.Context, guestToken string, cartMerged bool, dropped int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[guestToken]; ok && st.Status != domain.ConversionCompleted {
		st.Status = domain.ConversionCompleted
		st.CartMerged = cartMerged
		st.DroppedLines = dropped
		st.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memConversionStore) ListIncompleteForUser(ctx context.Context, userID string) ([]domain.ConversionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConversionState
	for _, st := range m.states {
		if st.UserID == userID && st.Status != domain.ConversionCompleted {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memConversionStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int32) ([]domain.ConversionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConversionState
	for _, st := range m.states {
		if st.Status != domain.ConversionCompleted && st.UpdatedAt.Before(updatedBefore) && int32(len(out)) < limit {
			out = append(out, *st)
		}
	}
	return out, nil
}
