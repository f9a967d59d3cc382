package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *User {
	return &User{
		ID:          "1",
		Username:    "admin",
		Name:        "Administrator",
		Role:        "ADMIN",
		Roles:       []string{"ADMIN"},
		Permissions: []string{"CUSTOMER_READ", "LOAN_APPROVE"},
		Active:      true,
	}
}

func TestNewStore_IsIdle(t *testing.T) {
	snap := NewStore().Snapshot()

	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.Empty(t, snap.Error)
}

func TestStore_Transitions(t *testing.T) {
	s := NewStore()

	s.Start()
	snap := s.Snapshot()
	assert.Equal(t, StatusLoading, snap.Status)
	assert.True(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)

	require.NoError(t, s.Succeed(testUser(), "t1"))
	snap = s.Snapshot()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "t1", snap.Token)
	assert.Equal(t, "admin", snap.User.Username)
	assert.Empty(t, snap.Error)

	s.Reset()
	snap = s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
}

func TestStore_FailClearsIdentity(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Succeed(testUser(), "t1"))

	s.Start()
	s.Fail("Invalid username or password")

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.Equal(t, "Invalid username or password", snap.Error)
}

func TestStore_StartClearsErrorButKeepsIdentity(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Succeed(testUser(), "t1"))

	s.Start()
	snap := s.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Equal(t, "t1", snap.Token)
	assert.NotNil(t, snap.User)

	s.Fail("boom")
	s.Start()
	assert.Empty(t, s.Snapshot().Error)
}

func TestStore_ClearError(t *testing.T) {
	s := NewStore()
	s.Start()
	s.Fail("boom")

	s.ClearError()

	snap := s.Snapshot()
	assert.Empty(t, snap.Error)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.IsLoading)
}

func TestStore_SucceedRejectsIncompleteIdentity(t *testing.T) {
	s := NewStore()
	s.Start()

	assert.Error(t, s.Succeed(nil, "t1"))
	assert.Error(t, s.Succeed(testUser(), ""))

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated, "invariant: never authenticated without user and token")
	assert.True(t, snap.IsLoading, "rejected Succeed must leave the store unchanged")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	u := testUser()
	require.NoError(t, s.Succeed(u, "t1"))

	u.Roles[0] = "MUTATED"
	snap := s.Snapshot()
	snap.User.Permissions[0] = "MUTATED"

	assert.True(t, s.User().HasRole("ADMIN"))
	assert.True(t, s.User().HasPermission("CUSTOMER_READ"))
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()

	var statuses []Status
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		statuses = append(statuses, snap.Status)
	})

	s.Start()
	require.NoError(t, s.Succeed(testUser(), "t1"))
	unsubscribe()
	s.Reset()

	assert.Equal(t, []Status{StatusLoading, StatusAuthenticated}, statuses)
}

func TestStore_ConcurrentTransitionsKeepInvariant(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start()
			_ = s.Succeed(testUser(), "t")
		}()
		go func() {
			defer wg.Done()
			s.Start()
			s.Fail("nope")
			snap := s.Snapshot()
			if snap.IsAuthenticated {
				assert.NotNil(t, snap.User)
				assert.NotEmpty(t, snap.Token)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Equal(t, snap.IsAuthenticated, snap.User != nil && snap.Token != "")
}

func TestUser_NilSafeChecks(t *testing.T) {
	var u *User
	assert.False(t, u.HasRole("ADMIN"))
	assert.False(t, u.HasPermission("CUSTOMER_READ"))
	assert.Nil(t, u.Clone())
}
