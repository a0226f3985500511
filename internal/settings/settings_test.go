package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/logging"
	"github.com/MikeMC777/cafeteria/internal/testutil"
	"github.com/MikeMC777/cafeteria/internal/user"
)

var defaults = Settings{MaxActiveOrders: 50, AcceptingOrders: true}

func newProvider(t *testing.T, refresh time.Duration) (*Provider, *SQLRepo) {
	t.Helper()
	d := testutil.OpenDB(t)
	testutil.InsertProfile(t, d, "admin-1", "admin")
	testutil.InsertProfile(t, d, "staff-1", "staff")
	repo := NewSQLRepo(d)
	users := user.NewService(user.NewSQLRepo(d), 0, logging.Discard())
	p := NewProvider(repo, users, defaults, refresh, logging.Discard())
	return p, repo
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestSettings_IsOpen(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	cases := []struct {
		name        string
		open, close string
		at          time.Time
		want        bool
	}{
		{"no hours", "", "", day(3, 0), true},
		{"inside", "07:00", "15:30", day(12, 0), true},
		{"at open", "07:00", "15:30", day(7, 0), true},
		{"at close", "07:00", "15:30", day(15, 30), false},
		{"before open", "07:00", "15:30", day(6, 59), false},
		{"overnight late", "22:00", "02:00", day(23, 0), true},
		{"overnight early", "22:00", "02:00", day(1, 0), true},
		{"overnight closed", "22:00", "02:00", day(12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Settings{MaxActiveOrders: 1, OpenTime: tc.open, CloseTime: tc.close}
			assert.Equal(t, tc.want, s.IsOpen(tc.at, time.UTC))
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, Settings{MaxActiveOrders: 5}.Validate())
	assert.ErrorIs(t, Settings{MaxActiveOrders: 0}.Validate(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, Settings{MaxActiveOrders: 5, OpenTime: "07:00"}.Validate(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, Settings{MaxActiveOrders: 5, OpenTime: "7am", CloseTime: "15:00"}.Validate(), apperr.ErrInvalidInput)
}

func TestProvider_DefaultsUntilSaved(t *testing.T) {
	p, _ := newProvider(t, time.Minute)
	got := p.Current(context.Background())
	assert.Equal(t, 50, got.MaxActiveOrders)
	assert.True(t, got.AcceptingOrders)
}

func TestProvider_UpdateIsAdminOnly(t *testing.T) {
	p, _ := newProvider(t, time.Minute)
	ctx := context.Background()

	_, err := p.Update(ctx, "staff-1", UpdateRequest{MaxActiveOrders: intPtr(10)})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := p.Update(ctx, "admin-1", UpdateRequest{
		MaxActiveOrders:     intPtr(10),
		OpenTime:            strPtr("07:00"),
		CloseTime:           strPtr("15:00"),
		CancelFromPreparing: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, got.MaxActiveOrders)
	assert.Equal(t, "admin-1", got.UpdatedBy)

	cur := p.Current(ctx)
	assert.Equal(t, 10, cur.MaxActiveOrders)
	assert.True(t, cur.CancelFromPreparing)

	_, err = p.Update(ctx, "admin-1", UpdateRequest{OpenTime: strPtr("")})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestProvider_RefreshInterval(t *testing.T) {
	p, repo := newProvider(t, time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	assert.True(t, p.Current(ctx).AcceptingOrders)

	// written behind the provider's back
	require.NoError(t, repo.Save(ctx, &Settings{MaxActiveOrders: 3, AcceptingOrders: false, UpdatedAt: now}))
	assert.True(t, p.Current(ctx).AcceptingOrders)

	now = now.Add(2 * time.Minute)
	got := p.Current(ctx)
	assert.False(t, got.AcceptingOrders)
	assert.Equal(t, 3, got.MaxActiveOrders)
}
