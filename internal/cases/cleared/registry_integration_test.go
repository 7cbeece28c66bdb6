//go:build integration

package cleared_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/canonical"
	"chainscreen/internal/cases/cleared"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/testutil/containers"
)

type RedisRegistrySuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	registry *cleared.RedisRegistry
	ctx      context.Context
}

func TestRedisRegistrySuite(t *testing.T) {
	suite.Run(t, new(RedisRegistrySuite))
}

func (s *RedisRegistrySuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.registry = cleared.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisRegistrySuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisRegistrySuite) TestAddAndContains() {
	addr, err := canonical.NewAddress(canonical.ChainEthereum, "0x7F367cc41522cE07553e823bf3be79A889DEbe1B")
	s.Require().NoError(err)

	ok, err := s.registry.Contains(s.ctx, addr)
	s.Require().NoError(err)
	s.False(ok)

	caseID := domain.NewCaseID()
	clearedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.registry.Add(s.ctx, addr, caseID, clearedAt))

	ok, err = s.registry.Contains(s.ctx, addr)
	s.Require().NoError(err)
	s.True(ok)

	// The stored value carries the resolving case for operator audits.
	value, err := s.redis.Client.HGet(s.ctx, "chainscreen:cleared", "ETH:"+addr.Canonical).Result()
	s.Require().NoError(err)
	s.Equal(caseID.String()+"@2026-03-01T12:00:00Z", value)
}

func (s *RedisRegistrySuite) TestSurvivesReAdd() {
	addr, err := canonical.NewAddress(canonical.ChainBitcoin, "149w62rY42aZBox8fGcmqNsXUzSStKeq8C")
	s.Require().NoError(err)

	s.Require().NoError(s.registry.Add(s.ctx, addr, domain.NewCaseID(), time.Now()))
	s.Require().NoError(s.registry.Add(s.ctx, addr, domain.NewCaseID(), time.Now()))

	ok, err := s.registry.Contains(s.ctx, addr)
	s.Require().NoError(err)
	s.True(ok)
}
