package app

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"eurobank-ledger/config"
	"eurobank-ledger/events"
	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init(logger.WithLevel("fatal"))
	os.Exit(m.Run())
}

// streamStub records XAdd calls; the read side is never driven here.
type streamStub struct {
	added []*redis.XAddArgs
}

func (s *streamStub) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	s.added = append(s.added, a)
	return redis.NewStringResult("1-0", nil)
}

func (s *streamStub) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (s *streamStub) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
}

func (s *streamStub) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (s *streamStub) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	cmd := redis.NewXAutoClaimCmd(ctx)
	cmd.SetVal(nil, "0-0")
	return cmd
}

// published decodes the i-th event written to the event stream.
func (s *streamStub) published(t *testing.T, i int) events.Event {
	t.Helper()
	require.Greater(t, len(s.added), i)
	var event events.Event
	values := s.added[i].Values.(map[string]any)
	require.NoError(t, json.Unmarshal([]byte(values["event"].(string)), &event))
	return event
}

func memoryDeps(streams events.StreamClient) Deps {
	return Deps{
		UoW:     repository.NewMemoryStore(time.Second),
		Users:   repository.NewMemoryUserRepository(),
		Clients: repository.NewMemoryClientRepository(),
		Tokens:  repository.NewMemoryTokenRepository(),
		Streams: streams,
	}
}

func testConfig(t *testing.T) config.Config {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.JWT.SecretKey = "test-secret"
	return cfg
}

func TestWire_RoutesCommandsToEventStream(t *testing.T) {
	cfg := testConfig(t)
	streams := &streamStub{}
	a, err := Wire(cfg, memoryDeps(streams))
	require.NoError(t, err)
	ctx := context.Background()

	send := func(id, eventType, token string, data any) events.Event {
		payload, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, a.Router.Dispatch(ctx, events.Event{ID: id, Type: eventType, Token: token, Data: payload}))
		return streams.published(t, len(streams.added)-1)
	}

	registered := send("c1", events.RegisterRequested, "", model.RegisterRequest{Login: "alice", Password: "correct-horse", ClientID: 1})
	assert.Equal(t, events.UserRegistered, registered.Type)

	login := send("c2", events.LoginRequested, "", model.LoginRequest{Login: "alice", Password: "correct-horse"})
	require.Equal(t, events.UserAuthenticated, login.Type)
	var authenticated events.UserAuthenticatedEvent
	require.NoError(t, json.Unmarshal(login.Data, &authenticated))
	require.NotEmpty(t, authenticated.AccessToken)

	open := model.OpenAccountRequest{ClientID: 1, HolderName: "Alice", Type: model.AccountTypeCurrent}
	rejected := send("c3", events.AccountOpenRequested, "", open)
	assert.Equal(t, events.AccountOpenRejected, rejected.Type)

	opened := send("c4", events.AccountOpenRequested, "Bearer "+authenticated.AccessToken, open)
	assert.Equal(t, cfg.Worker.EventStream, streams.added[len(streams.added)-1].Stream)
	assert.Equal(t, events.AccountOpened, opened.Type)
	assert.Equal(t, "c4", opened.CorrelationID)
}

func TestWire_RejectsBadConfig(t *testing.T) {
	deps := memoryDeps(&streamStub{})

	cfg := testConfig(t)
	cfg.Transfer.InstantCeiling = "lots"
	_, err := Wire(cfg, deps)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Transfer.Timezone = "Mars/Olympus"
	_, err = Wire(cfg, deps)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.JWT.SecretKey = ""
	_, err = Wire(cfg, deps)
	assert.Error(t, err)
}
