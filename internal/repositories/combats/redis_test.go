package combats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	atberr "github.com/KirkDiggler/rpg-atb/internal/errors"
	mockcombats "github.com/KirkDiggler/rpg-atb/internal/repositories/combats/mock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type RedisRepoTestSuite struct {
	suite.Suite
	mockClient   *redis.Client
	mock         redismock.ClientMock
	mockCtrl     *gomock.Controller
	timeProvider *mockcombats.MockTimeProvider
	repo         Repository
	now          time.Time
}

func (s *RedisRepoTestSuite) SetupTest() {
	s.mockClient, s.mock = redismock.NewClientMock()
	s.mockCtrl = gomock.NewController(s.T())
	s.timeProvider = mockcombats.NewMockTimeProvider(s.mockCtrl)
	s.now = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	s.repo = NewRedisRepository(&RedisRepoConfig{
		Client:       s.mockClient,
		TimeProvider: s.timeProvider,
		TTL:          time.Hour,
	})
}

func (s *RedisRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestRedisRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepoTestSuite))
}

func (s *RedisRepoTestSuite) snapshot(id string, status session.Status) *session.Snapshot {
	enc := combat.NewEncounter(id, "bridge", "dm")
	enc.CreatedAt = s.now
	enc.AddCombatant(&combat.Combatant{ID: "hero", Side: "heroes", IsActive: true})

	state := atb.NewState()
	state.Tick = 3

	return &session.Snapshot{
		ID:        id,
		DriverID:  "dm",
		Status:    status,
		Scheduler: state,
		Encounter: enc,
		CreatedAt: s.now,
	}
}

func (s *RedisRepoTestSuite) encoded(snap *session.Snapshot) []byte {
	snap.UpdatedAt = s.now
	data, err := json.Marshal(snap)
	s.Require().NoError(err)
	return data
}

func (s *RedisRepoTestSuite) TestSaveActive() {
	ctx := context.Background()
	snap := s.snapshot("c-1", session.StatusActive)
	data := s.encoded(snap)

	s.timeProvider.EXPECT().Now().Return(s.now)
	s.mock.ExpectTxPipeline()
	s.mock.ExpectSet("combat:c-1", data, time.Hour).SetVal("OK")
	s.mock.ExpectSAdd("combats:active", "c-1").SetVal(1)
	s.mock.ExpectTxPipelineExec()

	s.NoError(s.repo.Save(ctx, snap))
	s.Equal(s.now, snap.UpdatedAt)
}

func (s *RedisRepoTestSuite) TestSaveEndedLeavesIndex() {
	ctx := context.Background()
	snap := s.snapshot("c-1", session.StatusEnded)
	data := s.encoded(snap)

	s.timeProvider.EXPECT().Now().Return(s.now)
	s.mock.ExpectTxPipeline()
	s.mock.ExpectSet("combat:c-1", data, time.Hour).SetVal("OK")
	s.mock.ExpectSRem("combats:active", "c-1").SetVal(1)
	s.mock.ExpectTxPipelineExec()

	s.NoError(s.repo.Save(ctx, snap))
}

func (s *RedisRepoTestSuite) TestSaveRedisError() {
	ctx := context.Background()
	snap := s.snapshot("c-1", session.StatusActive)
	data := s.encoded(snap)

	s.timeProvider.EXPECT().Now().Return(s.now)
	s.mock.ExpectTxPipeline()
	s.mock.ExpectSet("combat:c-1", data, time.Hour).SetErr(errors.New("redis down"))

	s.Error(s.repo.Save(ctx, snap))
}

func (s *RedisRepoTestSuite) TestSaveValidation() {
	ctx := context.Background()

	s.True(atberr.IsInvalidArgument(s.repo.Save(ctx, nil)))
	s.True(atberr.IsInvalidArgument(s.repo.Save(ctx, &session.Snapshot{})))
}

func (s *RedisRepoTestSuite) TestGet() {
	ctx := context.Background()
	snap := s.snapshot("c-1", session.StatusActive)
	data := s.encoded(snap)

	s.mock.ExpectGet("combat:c-1").SetVal(string(data))
	s.mock.ExpectExpire("combat:c-1", time.Hour).SetVal(true)

	got, err := s.repo.Get(ctx, "c-1")
	s.Require().NoError(err)
	s.Equal("dm", got.DriverID)
	s.Equal(3, got.Tick())
	hero, ok := got.Encounter.Get("hero")
	s.Require().True(ok)
	s.True(hero.IsActive)
}

func (s *RedisRepoTestSuite) TestGetNotFound() {
	s.mock.ExpectGet("combat:missing").RedisNil()

	_, err := s.repo.Get(context.Background(), "missing")
	s.True(atberr.IsNotFound(err))
}

func (s *RedisRepoTestSuite) TestGetCorrupt() {
	s.mock.ExpectGet("combat:c-1").SetVal("{not json")

	_, err := s.repo.Get(context.Background(), "c-1")
	s.Error(err)
	s.False(atberr.IsNotFound(err))
}

func (s *RedisRepoTestSuite) TestDelete() {
	s.mock.ExpectTxPipeline()
	s.mock.ExpectDel("combat:c-1").SetVal(1)
	s.mock.ExpectSRem("combats:active", "c-1").SetVal(1)
	s.mock.ExpectTxPipelineExec()

	s.NoError(s.repo.Delete(context.Background(), "c-1"))
}

func (s *RedisRepoTestSuite) TestDeleteMissing() {
	s.mock.ExpectTxPipeline()
	s.mock.ExpectDel("combat:c-1").SetVal(0)
	s.mock.ExpectSRem("combats:active", "c-1").SetVal(0)
	s.mock.ExpectTxPipelineExec()

	s.True(atberr.IsNotFound(s.repo.Delete(context.Background(), "c-1")))
}

func (s *RedisRepoTestSuite) TestListActive() {
	ctx := context.Background()
	first := s.encoded(s.snapshot("c-1", session.StatusActive))
	second := s.encoded(s.snapshot("c-2", session.StatusActive))

	s.mock.MatchExpectationsInOrder(false)
	s.mock.ExpectSMembers("combats:active").SetVal([]string{"c-2", "c-1", "c-3"})
	s.mock.ExpectGet("combat:c-1").SetVal(string(first))
	s.mock.ExpectExpire("combat:c-1", time.Hour).SetVal(true)
	s.mock.ExpectGet("combat:c-2").SetVal(string(second))
	s.mock.ExpectExpire("combat:c-2", time.Hour).SetVal(true)
	s.mock.ExpectGet("combat:c-3").RedisNil()

	got, err := s.repo.ListActive(ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("c-1", got[0].ID)
	s.Equal("c-2", got[1].ID)
}

func (s *RedisRepoTestSuite) TestListActiveError() {
	s.mock.ExpectSMembers("combats:active").SetErr(errors.New("redis down"))

	_, err := s.repo.ListActive(context.Background())
	s.Error(err)
}
