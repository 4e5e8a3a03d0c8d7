package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stratum/internal/hierarchy"
	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// Service registers entities against the administrative hierarchy and
// resolves common ancestors between registered entities.
type Service struct {
	nodes  hierarchy.Store
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(nodes hierarchy.Store, store Store, opts ...Option) (*Service, error) {
	if nodes == nil {
		return nil, fmt.Errorf("hierarchy store is required")
	}
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}

	svc := &Service{nodes: nodes, store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register maps an entity to its full ancestor chain starting from a district
// node. The chain is derived by walking parent pointers exactly four steps;
// any missing link means the stored hierarchy is corrupted and the error is
// surfaced unmodified. Re-registering an entity replaces its mapping.
func (s *Service) Register(ctx context.Context, entityID, districtID string) (*EntityLayerInfo, error) {
	if entityID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "entity_id is required")
	}

	district, err := s.nodes.GetNode(ctx, districtID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "district node %s not found", districtID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load district node")
	}
	if district.Level != hierarchy.LevelDistrict {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"invalid layer level: node %s is at level %d, want district (%d)",
			districtID, district.Level, hierarchy.LevelDistrict)
	}

	info := EntityLayerInfo{EntityID: entityID, Layer1ID: district.ID}
	current := district
	layers := []*string{&info.Layer2ID, &info.Layer3ID, &info.Layer4ID, &info.Layer5ID}
	for i, target := range layers {
		if current.ParentID == nil {
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"broken hierarchy: node %s at level %d has no parent", current.ID, current.Level)
		}
		parent, err := s.nodes.GetNode(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Newf(dErrors.CodeValidation,
					"broken hierarchy: parent %s of %s is missing", *current.ParentID, current.ID)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "walk hierarchy")
		}
		if parent.Level != hierarchy.LevelDistrict+hierarchy.Level(i+1) {
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"broken hierarchy: node %s at level %d has parent %s at level %d",
				current.ID, current.Level, parent.ID, parent.Level)
		}
		*target = parent.ID
		current = parent
	}

	if err := s.store.Upsert(ctx, info); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist entity layer mapping")
	}

	if s.logger != nil {
		s.logger.Info("entity registered",
			"entity_id", entityID,
			"district_id", districtID,
			"root_id", info.Layer5ID,
		)
	}

	stored, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reload entity layer mapping")
	}
	return stored, nil
}

// Lookup returns the registered ancestor chain for an entity.
func (s *Service) Lookup(ctx context.Context, entityID string) (*EntityLayerInfo, error) {
	info, err := s.store.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "entity %s is not registered", entityID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load entity layer mapping")
	}
	return info, nil
}

// FindCommonLayer returns the lowest common ancestor of two registered
// entities. Levels are compared ascending so ties resolve to the most
// specific layer; the global root is always common by construction.
func (s *Service) FindCommonLayer(ctx context.Context, a, b EntityLayerInfo) (CommonLayer, error) {
	for level := hierarchy.LevelDistrict; level < hierarchy.LevelGlobal; level++ {
		if a.LayerAt(level) == b.LayerAt(level) {
			return s.describeLayer(ctx, level, a.LayerAt(level))
		}
	}
	return s.describeLayer(ctx, hierarchy.LevelGlobal, a.Layer5ID)
}

func (s *Service) describeLayer(ctx context.Context, level hierarchy.Level, id string) (CommonLayer, error) {
	common := CommonLayer{Level: level, ID: id}
	node, err := s.nodes.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Mapping points at a node that no longer exists; report the id
			// without a name rather than failing a read-only lookup.
			return common, nil
		}
		return common, dErrors.Wrap(err, dErrors.CodeInternal, "load common layer node")
	}
	common.Name = node.Name
	return common, nil
}
