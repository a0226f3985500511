package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
	"github.com/MikeMC777/cafeteria/internal/logging"
	"github.com/MikeMC777/cafeteria/internal/testutil"
	"github.com/MikeMC777/cafeteria/internal/user"
)

type fakePusher struct {
	mu     sync.Mutex
	sent   []PushMessage
	failOn map[string]error
}

func (p *fakePusher) Push(_ context.Context, msg PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOn[msg.Token]; ok {
		return err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[Outcome]int
}

func (m *fakeMetrics) Record(_ context.Context, o Outcome, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[Outcome]int{}
	}
	m.counts[o] += n
}

func setup(t *testing.T) (*db.DB, *SQLRepo) {
	t.Helper()
	d := testutil.OpenDB(t)
	testutil.InsertProfile(t, d, "u1", "customer")
	testutil.InsertProfile(t, d, "u2", "customer")
	return d, NewSQLRepo(d)
}

func TestRepo_MarkReadIsIdempotent(t *testing.T) {
	_, repo := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		n := New("u1", "", TypeSystem, "Hello", "msg", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(ctx, &n))
		ids = append(ids, n.ID)
	}
	other := New("u2", "", TypeSystem, "Hi", "msg", base)
	require.NoError(t, repo.Insert(ctx, &other))

	cnt, err := repo.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, cnt)

	n, err := repo.MarkRead(ctx, "u1", ids[:1], base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.MarkRead(ctx, "u1", ids[:1], base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// foreign ids are not touched
	n, err = repo.MarkRead(ctx, "u1", []string{other.ID}, base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = repo.MarkRead(ctx, "u1", nil, base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err := repo.List(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := repo.List(ctx, "u1", false, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.NotNil(t, all[0].ReadAt)
}

func TestRepo_RegisterTokenMovesOwnership(t *testing.T) {
	_, repo := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.RegisterToken(ctx, &DeviceToken{Token: "tok", UserID: "u1", Platform: "ios", CreatedAt: now}))
	require.NoError(t, repo.RegisterToken(ctx, &DeviceToken{Token: "tok", UserID: "u2", Platform: "ios", CreatedAt: now}))

	u1, err := repo.Tokens(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u1)
	u2, err := repo.Tokens(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, u2, 1)

	err = repo.RegisterToken(ctx, &DeviceToken{Token: "x", UserID: "ghost", CreatedAt: now})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDispatcher_DeliversAndPrunesInvalidTokens(t *testing.T) {
	_, repo := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, tok := range []string{"good", "stale", "flaky"} {
		require.NoError(t, repo.RegisterToken(ctx, &DeviceToken{Token: tok, UserID: "u1", CreatedAt: now}))
	}

	pusher := &fakePusher{failOn: map[string]error{
		"stale": ErrInvalidToken,
		"flaky": errors.New("connection reset"),
	}}
	metrics := &fakeMetrics{}
	d := NewDispatcher(repo, pusher, metrics, logging.Discard(), Options{Workers: 2})
	d.Start(ctx)

	n, err := d.Enqueue(ctx, "u1", "", TypeSystem, "Closing soon", "Kitchen closes in 15 minutes")
	require.NoError(t, err)
	d.Close()

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, "good", pusher.sent[0].Token)
	assert.Equal(t, n.ID, pusher.sent[0].NotificationID)
	assert.Equal(t, 1, metrics.counts[OutcomeDelivered])
	assert.Equal(t, 1, metrics.counts[OutcomeFailed])
	assert.Equal(t, 1, metrics.counts[OutcomePruned])

	left, err := repo.Tokens(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, 2)
	for _, tok := range left {
		assert.NotEqual(t, "stale", tok.Token)
	}

	cnt, err := repo.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	_, repo := setup(t)
	metrics := &fakeMetrics{}
	d := NewDispatcher(repo, &fakePusher{}, metrics, logging.Discard(), Options{Workers: 1, QueueSize: 1})

	now := time.Now().UTC()
	d.Push(New("u1", "", TypeSystem, "a", "a", now), New("u1", "", TypeSystem, "b", "b", now))
	assert.Equal(t, 1, metrics.counts[OutcomeDropped])

	d.Start(context.Background())
	d.Close()
	d.Close()

	d.Push(New("u1", "", TypeSystem, "c", "c", now))
	assert.Equal(t, 2, metrics.counts[OutcomeDropped])
}

func TestDispatcher_EnqueueRejectsUnknownType(t *testing.T) {
	_, repo := setup(t)
	d := NewDispatcher(repo, &fakePusher{}, nil, logging.Discard(), Options{})
	_, err := d.Enqueue(context.Background(), "u1", "", Type("promo"), "t", "m")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

type allowAll struct{}

func (allowAll) Require(context.Context, string, user.Action, string) (user.Role, error) {
	return user.RoleCustomer, nil
}

func TestInbox_RegisterToken(t *testing.T) {
	_, repo := setup(t)
	inbox := NewInbox(repo, allowAll{})
	ctx := context.Background()

	_, err := inbox.RegisterToken(ctx, "u1", RegisterTokenRequest{Token: "  "})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	tok, err := inbox.RegisterToken(ctx, "u1", RegisterTokenRequest{Token: "abc", Platform: "android"})
	require.NoError(t, err)
	assert.Equal(t, "u1", tok.UserID)

	cnt, err := inbox.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

type fakeSQS struct{ in *sqs.SendMessageInput }

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPusher_Push(t *testing.T) {
	client := &fakeSQS{}
	p := NewSQSPusher(client, "https://sqs.local/queue/push")

	err := p.Push(context.Background(), PushMessage{Token: "tok", NotificationID: "n1", Type: TypeOrderReady, Title: "Ready", OrderID: "o1"})
	require.NoError(t, err)
	require.NotNil(t, client.in)
	assert.Equal(t, "https://sqs.local/queue/push", *client.in.QueueUrl)
	assert.Equal(t, "order_ready", *client.in.MessageAttributes["type"].StringValue)

	var msg PushMessage
	require.NoError(t, json.Unmarshal([]byte(*client.in.MessageBody), &msg))
	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "o1", msg.OrderID)
}

type fakeCloudWatch struct {
	in *cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.in = in
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchMetrics_Record(t *testing.T) {
	client := &fakeCloudWatch{}
	m := NewCloudWatchMetrics(client, "Cafeteria", logging.Discard())

	m.Record(context.Background(), OutcomeDropped, 0)
	assert.Nil(t, client.in)

	m.Record(context.Background(), OutcomeDelivered, 3)
	require.NotNil(t, client.in)
	assert.Equal(t, "Cafeteria", *client.in.Namespace)
	require.Len(t, client.in.MetricData, 1)
	assert.Equal(t, 3.0, *client.in.MetricData[0].Value)
	assert.Equal(t, "delivered", *client.in.MetricData[0].Dimensions[0].Value)
}
