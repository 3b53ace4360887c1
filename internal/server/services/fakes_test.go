package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/dbx"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/dmitrijs2005/blindauth/internal/server/notify"
	refreshtokensrepo "github.com/dmitrijs2005/blindauth/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/blindauth/internal/server/repositories/users"
	verificationrepo "github.com/dmitrijs2005/blindauth/internal/server/repositories/verificationtokens"
)

// fakeStore is an in-memory session store. runTx serialises transactions and
// restores a snapshot when the unit of work fails.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int

	users   map[string]models.User
	refresh map[string]models.RefreshToken
	verif   map[string]models.EmailVerificationToken

	refreshCreateErr error
	setReplacedErr   error
	verifCreateErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]models.User{},
		refresh: map[string]models.RefreshToken{},
		verif:   map[string]models.EmailVerificationToken{},
	}
}

type storeSnapshot struct {
	users   map[string]models.User
	refresh map[string]models.RefreshToken
	verif   map[string]models.EmailVerificationToken
}

func (st *fakeStore) snapshot() storeSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := storeSnapshot{
		users:   make(map[string]models.User, len(st.users)),
		refresh: make(map[string]models.RefreshToken, len(st.refresh)),
		verif:   make(map[string]models.EmailVerificationToken, len(st.verif)),
	}
	for k, v := range st.users {
		s.users[k] = v
	}
	for k, v := range st.refresh {
		s.refresh[k] = cloneRefresh(v)
	}
	for k, v := range st.verif {
		s.verif[k] = cloneVerif(v)
	}
	return s
}

func (st *fakeStore) restore(s storeSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.users, st.refresh, st.verif = s.users, s.refresh, s.verif
}

func (st *fakeStore) runTx(ctx context.Context, fn dbx.TxFunc) error {
	st.txMu.Lock()
	defer st.txMu.Unlock()

	snap := st.snapshot()
	if err := fn(ctx, nil); err != nil {
		st.restore(snap)
		return err
	}
	return nil
}

func (st *fakeStore) nextID(prefix string) string {
	st.seq++
	return fmt.Sprintf("%s-%d", prefix, st.seq)
}

func (st *fakeStore) refreshByDigest(digest string) (models.RefreshToken, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, t := range st.refresh {
		if t.Digest == digest {
			return cloneRefresh(t), true
		}
	}
	return models.RefreshToken{}, false
}

func (st *fakeStore) refreshByID(id string) models.RefreshToken {
	st.mu.Lock()
	defer st.mu.Unlock()
	return cloneRefresh(st.refresh[id])
}

func (st *fakeStore) refreshForUser(userID string) []models.RefreshToken {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []models.RefreshToken
	for _, t := range st.refresh {
		if t.UserID == userID {
			out = append(out, cloneRefresh(t))
		}
	}
	return out
}

func (st *fakeStore) user(id string) models.User {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.users[id]
}

func (st *fakeStore) verificationTokens(userID string) []models.EmailVerificationToken {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []models.EmailVerificationToken
	for _, t := range st.verif {
		if t.UserID == userID {
			out = append(out, cloneVerif(t))
		}
	}
	return out
}

func cloneRefresh(t models.RefreshToken) models.RefreshToken {
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		t.RevokedAt = &v
	}
	if t.RevokedByIP != nil {
		v := *t.RevokedByIP
		t.RevokedByIP = &v
	}
	if t.ReplacedByTokenID != nil {
		v := *t.ReplacedByTokenID
		t.ReplacedByTokenID = &v
	}
	return t
}

func cloneVerif(t models.EmailVerificationToken) models.EmailVerificationToken {
	if t.VerifiedAt != nil {
		v := *t.VerifiedAt
		t.VerifiedAt = &v
	}
	return t
}

// --- repositories ---

type fakeUsers struct{ st *fakeStore }

func (r *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, x := range r.st.users {
		if !x.Deleted && strings.EqualFold(x.Email, u.Email) {
			return nil, common.ErrDuplicateEmail
		}
	}
	u.ID = r.st.nextID("u")
	u.CreatedAt = time.Now()
	r.st.users[u.ID] = *u
	cp := *u
	return &cp, nil
}

func (r *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, x := range r.st.users {
		if !x.Deleted && strings.EqualFold(x.Email, email) {
			cp := x
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	x, ok := r.st.users[id]
	if !ok || x.Deleted {
		return nil, common.ErrNotFound
	}
	return &x, nil
}

func (r *fakeUsers) LockByID(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUsers) MarkEmailVerified(ctx context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	x, ok := r.st.users[id]
	if !ok || x.Deleted {
		return common.ErrNotFound
	}
	x.EmailVerified = true
	r.st.users[id] = x
	return nil
}

func (r *fakeUsers) SoftDelete(ctx context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	x, ok := r.st.users[id]
	if !ok || x.Deleted {
		return common.ErrNotFound
	}
	x.Deleted = true
	r.st.users[id] = x
	return nil
}

type fakeRefreshTokens struct{ st *fakeStore }

func (r *fakeRefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.refreshCreateErr != nil {
		return r.st.refreshCreateErr
	}
	t.ID = r.st.nextID("rt")
	r.st.refresh[t.ID] = cloneRefresh(*t)
	return nil
}

func (r *fakeRefreshTokens) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	t, ok := r.st.refreshByDigest(digest)
	if !ok {
		return nil, common.ErrNotFound
	}
	return &t, nil
}

func (r *fakeRefreshTokens) MarkUsed(ctx context.Context, id string, at time.Time, ip string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	t, ok := r.st.refresh[id]
	if !ok || t.Used || t.RevokedAt != nil {
		return false, nil
	}
	t.Used = true
	t.RevokedAt = &at
	t.RevokedByIP = &ip
	r.st.refresh[id] = t
	return true, nil
}

func (r *fakeRefreshTokens) SetReplacedBy(ctx context.Context, id, successorID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.setReplacedErr != nil {
		return r.st.setReplacedErr
	}
	t, ok := r.st.refresh[id]
	if !ok {
		return common.ErrNotFound
	}
	t.ReplacedByTokenID = &successorID
	r.st.refresh[id] = t
	return nil
}

func (r *fakeRefreshTokens) Revoke(ctx context.Context, id string, at time.Time, ip string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	t, ok := r.st.refresh[id]
	if ok && t.RevokedAt == nil {
		t.RevokedAt = &at
		t.RevokedByIP = &ip
		r.st.refresh[id] = t
	}
	return nil
}

func (r *fakeRefreshTokens) RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, t := range r.st.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			at, ip := at, ip
			t.RevokedAt = &at
			t.RevokedByIP = &ip
			r.st.refresh[id] = t
			n++
		}
	}
	return n, nil
}

type fakeVerificationTokens struct{ st *fakeStore }

func (r *fakeVerificationTokens) Create(ctx context.Context, t *models.EmailVerificationToken) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.verifCreateErr != nil {
		return r.st.verifCreateErr
	}
	t.ID = r.st.nextID("ev")
	r.st.verif[t.ID] = cloneVerif(*t)
	return nil
}

func (r *fakeVerificationTokens) FindValid(ctx context.Context, userID, digest string, now time.Time) (*models.EmailVerificationToken, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, t := range r.st.verif {
		if t.UserID == userID && t.Digest == digest && t.IsValid(now) {
			cp := cloneVerif(t)
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeVerificationTokens) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	t, ok := r.st.verif[id]
	if !ok || t.VerifiedAt != nil {
		return false, nil
	}
	t.VerifiedAt = &at
	r.st.verif[id] = t
	return true, nil
}

func (r *fakeVerificationTokens) LatestCreatedAt(ctx context.Context, userID string) (time.Time, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var latest time.Time
	found := false
	for _, t := range r.st.verif {
		if t.UserID == userID && (!found || t.CreatedAt.After(latest)) {
			latest, found = t.CreatedAt, true
		}
	}
	if !found {
		return time.Time{}, common.ErrNotFound
	}
	return latest, nil
}

func (r *fakeVerificationTokens) DeleteUnused(ctx context.Context, userID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, t := range r.st.verif {
		if t.UserID == userID && t.VerifiedAt == nil {
			delete(r.st.verif, id)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ st *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository { return &fakeUsers{m.st} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return &fakeRefreshTokens{m.st}
}
func (m *fakeRepoManager) VerificationTokens(dbx.DBTX) verificationrepo.Repository {
	return &fakeVerificationTokens{m.st}
}

// --- collaborators ---

type captureDispatcher struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (d *captureDispatcher) Send(ctx context.Context, m notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, m)
	return nil
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

// lastSecret returns the verification secret embedded in the latest link.
func (d *captureDispatcher) lastSecret() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.msgs) == 0 {
		return ""
	}
	u, err := url.Parse(d.msgs[len(d.msgs)-1].Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeRecorder struct {
	mu     sync.Mutex
	events map[string]int
	reuse  int
}

func (r *fakeRecorder) Observe(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[op+"/"+outcome]++
}

func (r *fakeRecorder) TokenReuse() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reuse++
}

type fakeLimiter struct {
	checkErr error
	failures map[string]int
	resets   int
}

func (l *fakeLimiter) Check(context.Context, string) error { return l.checkErr }
func (l *fakeLimiter) RecordFailure(_ context.Context, id string) error {
	if l.failures == nil {
		l.failures = map[string]int{}
	}
	l.failures[id]++
	return nil
}
func (l *fakeLimiter) Reset(context.Context, string) error {
	l.resets++
	return nil
}
