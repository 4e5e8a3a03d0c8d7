package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"stratum/internal/hierarchy"

	dErrors "stratum/pkg/domain-errors"
)

// =============================================================================
// Registry Service Test Suite
// =============================================================================
// Justification for unit tests: the ancestor walk has exact step-count and
// level-continuity rules that are easiest to pin down against a hand-corrupted
// in-memory tree.

type RegistryServiceSuite struct {
	suite.Suite
	nodes   *hierarchy.InMemoryStore
	service *Service
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.nodes = hierarchy.NewInMemoryStore()
	s.Require().NoError(hierarchy.Bootstrap(context.Background(), s.nodes))

	var err error
	s.service, err = New(s.nodes, NewInMemoryStore())
	s.Require().NoError(err)
}

func (s *RegistryServiceSuite) TestNew() {
	s.Run("nil hierarchy store returns error", func() {
		_, err := New(nil, NewInMemoryStore())
		s.Error(err)
	})

	s.Run("nil registry store returns error", func() {
		_, err := New(s.nodes, nil)
		s.Error(err)
	})
}

func (s *RegistryServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("walks the full ancestor chain from a district", func() {
		info, err := s.service.Register(ctx, "user-1", "KR-JEJU-JEJU-YEON")
		s.NoError(err)
		s.Equal("KR-JEJU-JEJU-YEON", info.Layer1ID)
		s.Equal("KR-JEJU-JEJU", info.Layer2ID)
		s.Equal("KR-JEJU", info.Layer3ID)
		s.Equal("KR", info.Layer4ID)
		s.Equal("GLOBAL", info.Layer5ID)
	})

	s.Run("empty entity id is rejected", func() {
		_, err := s.service.Register(ctx, "", "KR-JEJU-JEJU-YEON")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown district is not found", func() {
		_, err := s.service.Register(ctx, "user-2", "NOT-A-DISTRICT")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-district node is an invalid layer level", func() {
		_, err := s.service.Register(ctx, "user-3", "KR-JEJU-JEJU")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "invalid layer level")
	})

	s.Run("re-registration replaces the mapping", func() {
		_, err := s.service.Register(ctx, "user-4", "KR-JEJU-JEJU-YEON")
		s.Require().NoError(err)

		info, err := s.service.Register(ctx, "user-4", "KR-JEJU-SEOGWIPO-JUNGMUN")
		s.NoError(err)
		s.Equal("KR-JEJU-SEOGWIPO-JUNGMUN", info.Layer1ID)
		s.Equal("KR-JEJU-SEOGWIPO", info.Layer2ID)
	})

	s.Run("broken parent chain is surfaced", func() {
		ghost := "VANISHED"
		s.Require().NoError(s.nodes.InsertNode(context.Background(), hierarchy.Node{
			ID:       "BROKEN-DISTRICT",
			Level:    hierarchy.LevelDistrict,
			Name:     "Broken",
			ParentID: &ghost,
			Currency: hierarchy.DefaultCurrency,
		}))

		_, err := s.service.Register(ctx, "user-5", "BROKEN-DISTRICT")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "broken hierarchy")
	})
}

func (s *RegistryServiceSuite) TestLookup() {
	ctx := context.Background()

	s.Run("unregistered entity is not found", func() {
		_, err := s.service.Lookup(ctx, "nobody")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("registered entity round-trips", func() {
		_, err := s.service.Register(ctx, "user-6", "KR-JEJU-JEJU-IDOIL")
		s.Require().NoError(err)

		info, err := s.service.Lookup(ctx, "user-6")
		s.NoError(err)
		s.Equal("user-6", info.EntityID)
		s.Equal("KR-JEJU-JEJU-IDOIL", info.Layer1ID)
	})
}

func (s *RegistryServiceSuite) TestFindCommonLayer() {
	ctx := context.Background()

	register := func(entityID, districtID string) EntityLayerInfo {
		info, err := s.service.Register(ctx, entityID, districtID)
		s.Require().NoError(err)
		return *info
	}

	s.Run("same district is common at the district level", func() {
		a := register("a1", "KR-JEJU-JEJU-YEON")
		b := register("b1", "KR-JEJU-JEJU-YEON")

		common, err := s.service.FindCommonLayer(ctx, a, b)
		s.NoError(err)
		s.Equal(hierarchy.LevelDistrict, common.Level)
		s.Equal("KR-JEJU-JEJU-YEON", common.ID)
	})

	s.Run("same city, different districts meet at the city", func() {
		a := register("a2", "KR-JEJU-JEJU-YEON")
		b := register("b2", "KR-JEJU-JEJU-NOHYUNG")

		common, err := s.service.FindCommonLayer(ctx, a, b)
		s.NoError(err)
		s.Equal(hierarchy.LevelCity, common.Level)
		s.Equal("KR-JEJU-JEJU", common.ID)
		s.Equal("Jeju City", common.Name)
	})

	s.Run("different cities meet at the province", func() {
		a := register("a3", "KR-JEJU-JEJU-YEON")
		b := register("b3", "KR-JEJU-SEOGWIPO-JUNGMUN")

		common, err := s.service.FindCommonLayer(ctx, a, b)
		s.NoError(err)
		s.Equal(hierarchy.LevelProvince, common.Level)
		s.Equal("KR-JEJU", common.ID)
	})
}
