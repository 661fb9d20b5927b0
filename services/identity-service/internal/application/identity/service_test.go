package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/services/identity-service/internal/domain"
	"github.com/baechuer/crm-platform/services/identity-service/internal/store/postgres"
)

// fakeTenantStore keeps the tree in memory.
type fakeTenantStore struct {
	tenants map[string]*domain.Tenant
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{tenants: map[string]*domain.Tenant{}}
}

func (f *fakeTenantStore) add(name string, parentID *string) string {
	id := uuid.NewString()
	f.tenants[id] = &domain.Tenant{ID: id, Name: name, ParentID: parentID, CreatedAt: time.Now()}
	return id
}

func (f *fakeTenantStore) Create(_ context.Context, t *domain.Tenant) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantStore) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, postgres.ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) ChildrenIDs(_ context.Context, id string) ([]string, error) {
	var out []string
	for _, t := range f.tenants {
		if t.ParentID != nil && *t.ParentID == id {
			out = append(out, t.ID)
		}
	}
	return out, nil
}

func (f *fakeTenantStore) DescendantIDs(ctx context.Context, id string) ([]string, error) {
	all, err := subtreeIDs(ctx, f, id)
	if err != nil {
		return nil, err
	}
	return all[1:], nil
}

func (f *fakeTenantStore) SetParent(_ context.Context, id string, parentID *string) error {
	t, ok := f.tenants[id]
	if !ok {
		return postgres.ErrTenantNotFound
	}
	t.ParentID = parentID
	return nil
}

func (f *fakeTenantStore) List(_ context.Context) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range f.tenants {
		out = append(out, *t)
	}
	return out, nil
}

type fakeUserStore struct {
	users map[string]*domain.User
}

func (f *fakeUserStore) add(u *domain.User) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.users[u.ID] = u
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, postgres.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, postgres.ErrUserNotFound
	}
	return u, nil
}

// plainComparer avoids bcrypt cost in tests; hash is the password itself.
type plainComparer struct{}

func (plainComparer) Compare(hash, password string) bool { return hash == password }

type capturedEvent struct {
	topic   string
	key     string
	payload map[string]any
}

type fakePublisher struct {
	events []capturedEvent
	err    error
}

func (f *fakePublisher) Publish(topic, key string, value map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, capturedEvent{topic: topic, key: key, payload: value})
	return nil
}

type fixture struct {
	svc     *Service
	tenants *fakeTenantStore
	users   *fakeUserStore
	pub     *fakePublisher

	rootID string
	eastID string
	deepID string
	westID string
}

// newFixture builds: root -> {east -> deep, west}
func newFixture(t *testing.T) *fixture {
	t.Helper()
	tenants := newFakeTenantStore()
	rootID := tenants.add("Acme Group", nil)
	eastID := tenants.add("Acme East", &rootID)
	deepID := tenants.add("Acme East Retail", &eastID)
	westID := tenants.add("Acme West", &rootID)

	users := &fakeUserStore{users: map[string]*domain.User{}}
	pub := &fakePublisher{}
	svc := NewService(tenants, users, plainComparer{}, auth.NewIssuer("test-secret", time.Hour), pub, zerolog.Nop())

	return &fixture{svc: svc, tenants: tenants, users: users, pub: pub,
		rootID: rootID, eastID: eastID, deepID: deepID, westID: westID}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	f := newFixture(t)
	f.users.add(&domain.User{Email: "ada@acme.local", PasswordHash: "correct", Role: auth.RoleUser, TenantID: &f.eastID, IsActive: true})

	_, _, err := f.svc.Login(context.Background(), "nobody@acme.local", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(context.Background(), "ada@acme.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.users.add(&domain.User{Email: "gone@acme.local", PasswordHash: "pw", Role: auth.RoleUser, TenantID: &f.eastID, IsActive: false})

	_, _, err := f.svc.Login(context.Background(), "gone@acme.local", "pw")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginScopesByRole(t *testing.T) {
	f := newFixture(t)
	verifier := auth.NewVerifier("test-secret")

	f.users.add(&domain.User{Email: "root@platform.local", PasswordHash: "pw", Role: auth.RoleSystemAdmin, IsActive: true})
	f.users.add(&domain.User{Email: "admin@acme-east.local", PasswordHash: "pw", Role: auth.RoleTenantAdmin, TenantID: &f.eastID, IsActive: true})
	f.users.add(&domain.User{Email: "user@acme-east.local", PasswordHash: "pw", Role: auth.RoleUser, TenantID: &f.eastID, IsActive: true})

	t.Run("system admin gets universal scope", func(t *testing.T) {
		token, user, err := f.svc.Login(context.Background(), "root@platform.local", "pw")
		require.NoError(t, err)
		assert.Nil(t, user.TenantID)

		p, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.True(t, p.Scope().Universal)
	})

	t.Run("tenant admin sees own subtree", func(t *testing.T) {
		token, _, err := f.svc.Login(context.Background(), "admin@acme-east.local", "pw")
		require.NoError(t, err)

		p, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{f.eastID, f.deepID}, p.VisibleTenantIDs)
		assert.False(t, p.CanSee([]string{f.westID}), "sibling subtree stays invisible")
	})

	t.Run("user sees only own tenant", func(t *testing.T) {
		token, user, err := f.svc.Login(context.Background(), "user@acme-east.local", "pw")
		require.NoError(t, err)
		require.NotNil(t, user.TenantName)
		assert.Equal(t, "Acme East", *user.TenantName)

		p, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, []string{f.eastID}, p.VisibleTenantIDs)
	})
}

func TestCreateTenantPublishesEvent(t *testing.T) {
	f := newFixture(t)
	sysadmin := auth.Principal{UserID: uuid.NewString(), Role: auth.RoleSystemAdmin}

	tenant, err := f.svc.CreateTenant(context.Background(), sysadmin, "Acme North", &f.rootID)
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)

	require.Len(t, f.pub.events, 1)
	evt := f.pub.events[0]
	assert.Equal(t, TopicTenantCreated, evt.topic)
	assert.Equal(t, tenant.ID, evt.key)
	assert.Equal(t, tenant.ID, evt.payload["tenant_id"])
	assert.Equal(t, "Acme North", evt.payload["name"])
}

func TestCreateTenantAuthorization(t *testing.T) {
	f := newFixture(t)

	user := auth.Principal{Role: auth.RoleUser, TenantID: f.eastID, VisibleTenantIDs: []string{f.eastID}}
	_, err := f.svc.CreateTenant(context.Background(), user, "Nope", &f.eastID)
	assert.ErrorIs(t, err, ErrForbidden)

	eastAdmin := auth.Principal{Role: auth.RoleTenantAdmin, TenantID: f.eastID, VisibleTenantIDs: []string{f.eastID, f.deepID}}
	_, err = f.svc.CreateTenant(context.Background(), eastAdmin, "Outside", &f.westID)
	assert.ErrorIs(t, err, ErrForbidden, "tenant admin cannot create under a sibling")

	_, err = f.svc.CreateTenant(context.Background(), eastAdmin, "Inside", &f.deepID)
	assert.NoError(t, err)

	sysadmin := auth.Principal{Role: auth.RoleSystemAdmin}
	missing := uuid.NewString()
	_, err = f.svc.CreateTenant(context.Background(), sysadmin, "Orphan", &missing)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestCreateTenantSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = assert.AnError

	tenant, err := f.svc.CreateTenant(context.Background(), auth.Principal{Role: auth.RoleSystemAdmin}, "Acme South", nil)
	require.NoError(t, err, "persistence wins; the announcement is best effort")
	assert.NotEmpty(t, tenant.ID)
}

func TestReparentTenant(t *testing.T) {
	f := newFixture(t)
	sysadmin := auth.Principal{Role: auth.RoleSystemAdmin}
	ctx := context.Background()

	t.Run("valid move", func(t *testing.T) {
		require.NoError(t, f.svc.ReparentTenant(ctx, sysadmin, f.westID, &f.eastID))
		moved, err := f.tenants.GetByID(ctx, f.westID)
		require.NoError(t, err)
		assert.Equal(t, f.eastID, *moved.ParentID)
	})

	t.Run("self parent", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.ReparentTenant(ctx, sysadmin, f.rootID, &f.rootID), ErrHierarchyCycle)
	})

	t.Run("descendant parent", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.ReparentTenant(ctx, sysadmin, f.rootID, &f.deepID), ErrHierarchyCycle)
	})

	t.Run("only system admin", func(t *testing.T) {
		admin := auth.Principal{Role: auth.RoleTenantAdmin, TenantID: f.rootID}
		assert.ErrorIs(t, f.svc.ReparentTenant(ctx, admin, f.westID, nil), ErrForbidden)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		missing := uuid.NewString()
		assert.ErrorIs(t, f.svc.ReparentTenant(ctx, sysadmin, missing, nil), ErrTenantNotFound)
	})
}

func TestSubtreeTerminatesOnCorruptTree(t *testing.T) {
	f := newFixture(t)
	// force a stored cycle: root's parent becomes its grandchild
	f.tenants.tenants[f.rootID].ParentID = &f.deepID

	ids, err := subtreeIDs(context.Background(), f.tenants, f.rootID)
	require.NoError(t, err)
	assert.Contains(t, ids, f.rootID)
	assert.Contains(t, ids, f.deepID)
}

func TestListTenantsFiltersByScope(t *testing.T) {
	f := newFixture(t)

	all, err := f.svc.ListTenants(context.Background(), auth.Principal{Role: auth.RoleSystemAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	scoped, err := f.svc.ListTenants(context.Background(), auth.Principal{
		Role: auth.RoleTenantAdmin, TenantID: f.eastID, VisibleTenantIDs: []string{f.eastID, f.deepID},
	})
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
}
