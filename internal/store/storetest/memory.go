// AngelaMos | 2026
// memory.go

// Package storetest provides an in-process store.Store for tests.
package storetest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// Memory is an in-process store.Store. Transactions are serialised behind a
// single mutex and rolled back from a snapshot when the callback fails.
// It enforces the same uniqueness and reference rules as the SQL schema.
type Memory struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	users        map[string]membership.User
	documents    map[string]catalogue.Document
	loans        map[string]lending.Loan
	reservations map[string]lending.Reservation
}

func NewMemory() *Memory {
	return &Memory{
		state: memState{
			users:        make(map[string]membership.User),
			documents:    make(map[string]catalogue.Document),
			loans:        make(map[string]lending.Loan),
			reservations: make(map[string]lending.Reservation),
		},
	}
}

func (m *Memory) Repos() store.Repos {
	return m.repos(false)
}

func (m *Memory) WithinTx(ctx context.Context, fn func(store.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()

	defer func() {
		if p := recover(); p != nil {
			m.state = snapshot
			panic(p)
		}
	}()

	if err := fn(m.repos(true)); err != nil {
		m.state = snapshot
		return err
	}

	return nil
}

func (m *Memory) repos(inTx bool) store.Repos {
	return store.Repos{
		Users:        &memUsers{m: m, inTx: inTx},
		Documents:    &memDocuments{m: m, inTx: inTx},
		Loans:        &memLoans{m: m, inTx: inTx},
		Reservations: &memReservations{m: m, inTx: inTx},
	}
}

// lock acquires the store mutex unless the caller already runs inside
// WithinTx, which holds it for the whole unit of work.
func (m *Memory) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (s memState) clone() memState {
	return memState{
		users:        maps.Clone(s.users),
		documents:    maps.Clone(s.documents),
		loans:        maps.Clone(s.loans),
		reservations: maps.Clone(s.reservations),
	}
}

func (s memState) referenced(field func(userID, documentID string) bool) bool {
	for _, l := range s.loans {
		if field(l.UserID, l.DocumentID) {
			return true
		}
	}
	for _, r := range s.reservations {
		if field(r.UserID, r.DocumentID) {
			return true
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type memUsers struct {
	m    *Memory
	inTx bool
}

func (r *memUsers) Create(_ context.Context, user *membership.User) error {
	defer r.m.lock(r.inTx)()

	for _, u := range r.m.state.users {
		if u.Username == user.Username ||
			(user.Email != nil && u.Email != nil && *u.Email == *user.Email) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.m.state.users[user.ID] = *user

	return nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*membership.User, error) {
	defer r.m.lock(r.inTx)()

	u, ok := r.m.state.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return &u, nil
}

func (r *memUsers) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*membership.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memUsers) GetByUsername(
	_ context.Context,
	username string,
) (*membership.User, error) {
	defer r.m.lock(r.inTx)()

	for _, u := range r.m.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
}

func (r *memUsers) ExistsByUsernameOrEmail(
	_ context.Context,
	username, email string,
) (bool, error) {
	defer r.m.lock(r.inTx)()

	for _, u := range r.m.state.users {
		if u.Username == username {
			return true, nil
		}
		if email != "" && u.Email != nil && *u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUsers) UpdateSubscription(
	_ context.Context,
	user *membership.User,
) error {
	defer r.m.lock(r.inTx)()

	u, ok := r.m.state.users[user.ID]
	if !ok {
		return fmt.Errorf("update subscription: %w", core.ErrNotFound)
	}

	u.SubscriptionStatus = user.SubscriptionStatus
	u.SubscriptionType = user.SubscriptionType
	u.SubscriptionStartDate = user.SubscriptionStartDate
	u.SubscriptionEndDate = user.SubscriptionEndDate
	u.UpdatedAt = time.Now()
	r.m.state.users[u.ID] = u
	user.UpdatedAt = u.UpdatedAt

	return nil
}

func (r *memUsers) UpdatePassword(
	_ context.Context,
	id, passwordHash string,
) error {
	defer r.m.lock(r.inTx)()

	u, ok := r.m.state.users[id]
	if !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	r.m.state.users[id] = u

	return nil
}

func (r *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	defer r.m.lock(r.inTx)()

	u, ok := r.m.state.users[id]
	if !ok {
		return fmt.Errorf("increment token version: %w", core.ErrNotFound)
	}

	u.TokenVersion++
	u.UpdatedAt = time.Now()
	r.m.state.users[id] = u

	return nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	defer r.m.lock(r.inTx)()

	if _, ok := r.m.state.users[id]; !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	if r.m.state.referenced(func(userID, _ string) bool { return userID == id }) {
		return fmt.Errorf("delete user: still referenced: %w", core.ErrConflict)
	}

	delete(r.m.state.users, id)

	return nil
}

func (r *memUsers) List(
	_ context.Context,
	params membership.ListUsersParams,
) ([]membership.User, int, error) {
	defer r.m.lock(r.inTx)()

	params.Normalize()

	var matched []membership.User
	for _, u := range r.m.state.users {
		if params.Role != "" && u.Role != params.Role {
			continue
		}
		if params.Search != "" {
			email := ""
			if u.Email != nil {
				email = *u.Email
			}
			if !containsFold(u.Username, params.Search) &&
				!containsFold(email, params.Search) {
				continue
			}
		}
		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Username < matched[j].Username
	})

	return page(matched, params.Offset(), params.PageSize), len(matched), nil
}

func (r *memUsers) Count(
	_ context.Context,
	filter membership.CountFilter,
) (int, error) {
	defer r.m.lock(r.inTx)()

	total := 0
	for _, u := range r.m.state.users {
		if len(filter.Roles) > 0 && !contains(filter.Roles, u.Role) {
			continue
		}
		if filter.SubscriptionStatus != "" &&
			u.SubscriptionStatus != filter.SubscriptionStatus {
			continue
		}
		total++
	}

	return total, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type memDocuments struct {
	m    *Memory
	inTx bool
}

func (r *memDocuments) Create(_ context.Context, doc *catalogue.Document) error {
	defer r.m.lock(r.inTx)()

	if _, ok := r.m.state.documents[doc.ID]; ok {
		return fmt.Errorf("create document: %w", core.ErrDuplicateKey)
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	r.m.state.documents[doc.ID] = *doc

	return nil
}

func (r *memDocuments) GetByID(
	_ context.Context,
	id string,
) (*catalogue.Document, error) {
	defer r.m.lock(r.inTx)()

	d, ok := r.m.state.documents[id]
	if !ok {
		return nil, fmt.Errorf("get document: %w", core.ErrNotFound)
	}
	return &d, nil
}

func (r *memDocuments) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*catalogue.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *memDocuments) Update(_ context.Context, doc *catalogue.Document) error {
	defer r.m.lock(r.inTx)()

	existing, ok := r.m.state.documents[doc.ID]
	if !ok {
		return fmt.Errorf("update document: %w", core.ErrNotFound)
	}

	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now()
	r.m.state.documents[doc.ID] = *doc

	return nil
}

func (r *memDocuments) Delete(_ context.Context, id string) error {
	defer r.m.lock(r.inTx)()

	if _, ok := r.m.state.documents[id]; !ok {
		return fmt.Errorf("delete document: %w", core.ErrNotFound)
	}

	if r.m.state.referenced(func(_, documentID string) bool { return documentID == id }) {
		return fmt.Errorf("delete document: still referenced: %w", core.ErrConflict)
	}

	delete(r.m.state.documents, id)

	return nil
}

func (r *memDocuments) List(
	_ context.Context,
	params catalogue.ListDocumentsParams,
) ([]catalogue.Document, int, error) {
	defer r.m.lock(r.inTx)()

	params.Normalize()
	q := strings.TrimSpace(params.Query)

	var matched []catalogue.Document
	for _, d := range r.m.state.documents {
		if q != "" {
			author := ""
			if d.Author != nil {
				author = *d.Author
			}
			if !containsFold(d.Title, q) && !containsFold(author, q) {
				continue
			}
		}
		matched = append(matched, d)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Title != matched[j].Title {
			return matched[i].Title < matched[j].Title
		}
		return matched[i].ID < matched[j].ID
	})

	return page(matched, params.Offset(), params.PageSize), len(matched), nil
}

func (r *memDocuments) Count(
	_ context.Context,
	filter catalogue.CountFilter,
) (int, error) {
	defer r.m.lock(r.inTx)()

	total := 0
	for _, d := range r.m.state.documents {
		if filter.IsPhysical != nil && d.IsPhysical != *filter.IsPhysical {
			continue
		}
		if filter.IsDigital != nil && d.IsDigital != *filter.IsDigital {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		total++
	}

	return total, nil
}

type memLoans struct {
	m    *Memory
	inTx bool
}

func (r *memLoans) Create(_ context.Context, loan *lending.Loan) error {
	defer r.m.lock(r.inTx)()

	if err := r.m.state.checkRefs(loan.UserID, loan.DocumentID); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	if loan.Status == lending.LoanActive {
		for _, l := range r.m.state.loans {
			if l.IsActive() && l.UserID == loan.UserID &&
				l.DocumentID == loan.DocumentID {
				return fmt.Errorf("create loan: %w", core.ErrDuplicateKey)
			}
		}
	}

	r.m.state.loans[loan.ID] = *loan

	return nil
}

func (r *memLoans) GetByID(_ context.Context, id string) (*lending.Loan, error) {
	defer r.m.lock(r.inTx)()

	l, ok := r.m.state.loans[id]
	if !ok {
		return nil, fmt.Errorf("get loan: %w", core.ErrNotFound)
	}
	return &l, nil
}

func (r *memLoans) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*lending.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *memLoans) FindActive(
	_ context.Context,
	userID, documentID string,
) (*lending.Loan, error) {
	defer r.m.lock(r.inTx)()

	for _, l := range r.m.state.loans {
		if l.IsActive() && l.UserID == userID && l.DocumentID == documentID {
			return &l, nil
		}
	}
	return nil, fmt.Errorf("find active loan: %w", core.ErrNotFound)
}

func (r *memLoans) UpdateStatus(_ context.Context, id, status string) error {
	defer r.m.lock(r.inTx)()

	l, ok := r.m.state.loans[id]
	if !ok {
		return fmt.Errorf("update loans status: %w", core.ErrNotFound)
	}

	l.Status = status
	r.m.state.loans[id] = l

	return nil
}

func (r *memLoans) DeleteByUser(_ context.Context, userID string) (int, error) {
	defer r.m.lock(r.inTx)()

	return deleteWhere(r.m.state.loans, func(l lending.Loan) bool {
		return l.UserID == userID
	}), nil
}

func (r *memLoans) DeleteByDocument(
	_ context.Context,
	documentID string,
) (int, error) {
	defer r.m.lock(r.inTx)()

	return deleteWhere(r.m.state.loans, func(l lending.Loan) bool {
		return l.DocumentID == documentID
	}), nil
}

func (r *memLoans) ListActiveForUser(
	_ context.Context,
	userID string,
) ([]lending.Loan, error) {
	defer r.m.lock(r.inTx)()

	var out []lending.Loan
	for _, l := range r.m.state.loans {
		if l.IsActive() && l.UserID == userID {
			out = append(out, l)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})

	return out, nil
}

func (r *memLoans) CountActive(_ context.Context) (int, error) {
	defer r.m.lock(r.inTx)()

	total := 0
	for _, l := range r.m.state.loans {
		if l.IsActive() {
			total++
		}
	}
	return total, nil
}

func (r *memLoans) TopActive(
	_ context.Context,
	limit int,
) ([]lending.DocumentLoanCount, error) {
	defer r.m.lock(r.inTx)()

	counts := make(map[string]int)
	for _, l := range r.m.state.loans {
		if l.IsActive() {
			counts[l.DocumentID]++
		}
	}

	ranked := make([]lending.DocumentLoanCount, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, lending.DocumentLoanCount{DocumentID: id, Count: n})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].DocumentID < ranked[j].DocumentID
	})

	return page(ranked, 0, limit), nil
}

type memReservations struct {
	m    *Memory
	inTx bool
}

func (r *memReservations) Create(
	_ context.Context,
	res *lending.Reservation,
) error {
	defer r.m.lock(r.inTx)()

	if err := r.m.state.checkRefs(res.UserID, res.DocumentID); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}

	if res.Status == lending.ReservationActive {
		for _, existing := range r.m.state.reservations {
			if existing.IsActive() && existing.UserID == res.UserID &&
				existing.DocumentID == res.DocumentID {
				return fmt.Errorf("create reservation: %w", core.ErrDuplicateKey)
			}
		}
	}

	r.m.state.reservations[res.ID] = *res

	return nil
}

func (r *memReservations) GetByID(
	_ context.Context,
	id string,
) (*lending.Reservation, error) {
	defer r.m.lock(r.inTx)()

	res, ok := r.m.state.reservations[id]
	if !ok {
		return nil, fmt.Errorf("get reservation: %w", core.ErrNotFound)
	}
	return &res, nil
}

func (r *memReservations) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*lending.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *memReservations) FindActive(
	_ context.Context,
	userID, documentID string,
) (*lending.Reservation, error) {
	defer r.m.lock(r.inTx)()

	for _, res := range r.m.state.reservations {
		if res.IsActive() && res.UserID == userID && res.DocumentID == documentID {
			return &res, nil
		}
	}
	return nil, fmt.Errorf("find active reservation: %w", core.ErrNotFound)
}

func (r *memReservations) UpdateStatus(
	_ context.Context,
	id, status string,
) error {
	defer r.m.lock(r.inTx)()

	res, ok := r.m.state.reservations[id]
	if !ok {
		return fmt.Errorf("update reservations status: %w", core.ErrNotFound)
	}

	res.Status = status
	r.m.state.reservations[id] = res

	return nil
}

func (r *memReservations) CancelActiveForDocument(
	_ context.Context,
	documentID string,
) (int, error) {
	defer r.m.lock(r.inTx)()

	cancelled := 0
	for id, res := range r.m.state.reservations {
		if res.IsActive() && res.DocumentID == documentID {
			res.Status = lending.ReservationCancelled
			r.m.state.reservations[id] = res
			cancelled++
		}
	}

	return cancelled, nil
}

func (r *memReservations) DeleteByUser(
	_ context.Context,
	userID string,
) (int, error) {
	defer r.m.lock(r.inTx)()

	return deleteWhere(r.m.state.reservations, func(res lending.Reservation) bool {
		return res.UserID == userID
	}), nil
}

func (r *memReservations) DeleteByDocument(
	_ context.Context,
	documentID string,
) (int, error) {
	defer r.m.lock(r.inTx)()

	return deleteWhere(r.m.state.reservations, func(res lending.Reservation) bool {
		return res.DocumentID == documentID
	}), nil
}

func (r *memReservations) ListActiveForUser(
	_ context.Context,
	userID string,
) ([]lending.Reservation, error) {
	defer r.m.lock(r.inTx)()

	var out []lending.Reservation
	for _, res := range r.m.state.reservations {
		if res.IsActive() && res.UserID == userID {
			out = append(out, res)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReservationDate.After(out[j].ReservationDate)
	})

	return out, nil
}

func (r *memReservations) CountActive(_ context.Context) (int, error) {
	defer r.m.lock(r.inTx)()

	total := 0
	for _, res := range r.m.state.reservations {
		if res.IsActive() {
			total++
		}
	}
	return total, nil
}

func (s memState) checkRefs(userID, documentID string) error {
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("unknown user %s: %w", userID, core.ErrConflict)
	}
	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("unknown document %s: %w", documentID, core.ErrConflict)
	}
	return nil
}

func deleteWhere[T any](items map[string]T, match func(T) bool) int {
	deleted := 0
	for id, item := range items {
		if match(item) {
			delete(items, id)
			deleted++
		}
	}
	return deleted
}

var _ store.Store = (*Memory)(nil)
