package hierarchy

import (
	"context"
	"errors"

	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// seedNode is one row of the default hierarchy.
type seedNode struct {
	id       string
	level    Level
	name     string
	parentID string
}

// defaultHierarchy is the fixed administrative tree seeded at startup:
// one global root, one country, one province, two cities, twelve districts.
var defaultHierarchy = []seedNode{
	{"GLOBAL", LevelGlobal, "Global", ""},
	{"KR", LevelCountry, "South Korea", "GLOBAL"},
	{"KR-JEJU", LevelProvince, "Jeju Province", "KR"},
	{"KR-JEJU-JEJU", LevelCity, "Jeju City", "KR-JEJU"},
	{"KR-JEJU-SEOGWIPO", LevelCity, "Seogwipo City", "KR-JEJU"},
	{"KR-JEJU-JEJU-YEON", LevelDistrict, "Yeon-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-JEJU-NOHYUNG", LevelDistrict, "Nohyung-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-JEJU-ILDOIL", LevelDistrict, "Ildo1-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-JEJU-ILDOI", LevelDistrict, "Ildo2-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-JEJU-IDOIL", LevelDistrict, "Ido1-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-JEJU-IDOI", LevelDistrict, "Ido2-dong", "KR-JEJU-JEJU"},
	{"KR-JEJU-SEOGWIPO-JUNGMUN", LevelDistrict, "Jungmun-dong", "KR-JEJU-SEOGWIPO"},
	{"KR-JEJU-SEOGWIPO-SEOGWI", LevelDistrict, "Seogwi-dong", "KR-JEJU-SEOGWIPO"},
	{"KR-JEJU-SEOGWIPO-DONGHONG", LevelDistrict, "Donghong-dong", "KR-JEJU-SEOGWIPO"},
	{"KR-JEJU-SEOGWIPO-SEOHONG", LevelDistrict, "Seohong-dong", "KR-JEJU-SEOGWIPO"},
	{"KR-JEJU-SEOGWIPO-DAEJEONG", LevelDistrict, "Daejeong-eup", "KR-JEJU-SEOGWIPO"},
	{"KR-JEJU-SEOGWIPO-NAMWON", LevelDistrict, "Namwon-eup", "KR-JEJU-SEOGWIPO"},
}

// Bootstrap seeds the default hierarchy with zero balances and validates the
// resulting tree. Re-running it leaves existing nodes untouched.
func Bootstrap(ctx context.Context, store Store) error {
	for _, seed := range defaultHierarchy {
		node := Node{
			ID:       seed.id,
			Level:    seed.level,
			Name:     seed.name,
			Currency: DefaultCurrency,
		}
		if seed.parentID != "" {
			parentID := seed.parentID
			node.ParentID = &parentID
		}
		if err := store.InsertNode(ctx, node); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "seed hierarchy node "+seed.id)
		}
	}
	return Validate(ctx, store)
}

// Validate checks the structural invariants of the stored tree: exactly one
// root at the global level, every non-root node's parent exists one level
// above it, and no upward walk cycles.
func Validate(ctx context.Context, store Store) error {
	nodes, err := store.All(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load hierarchy for validation")
	}

	byID := make(map[string]Node, len(nodes))
	roots := 0
	for _, node := range nodes {
		byID[node.ID] = node
		if node.ParentID == nil {
			roots++
			if node.Level != LevelGlobal {
				return dErrors.Newf(dErrors.CodeValidation,
					"root node %s is at level %d, want %d", node.ID, node.Level, LevelGlobal)
			}
		}
	}
	if roots != 1 {
		return dErrors.Newf(dErrors.CodeValidation, "hierarchy has %d roots, want exactly 1", roots)
	}

	for _, node := range nodes {
		if node.ParentID == nil {
			continue
		}
		parent, ok := byID[*node.ParentID]
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation,
				"node %s references missing parent %s", node.ID, *node.ParentID)
		}
		if parent.Level != node.Level+1 {
			return dErrors.Newf(dErrors.CodeValidation,
				"node %s at level %d has parent %s at level %d", node.ID, node.Level, parent.ID, parent.Level)
		}
	}

	// Level continuity above rules out cycles already (levels strictly
	// increase along parent pointers), but walk each node with a step budget
	// so a corrupted store cannot loop the caller.
	for _, node := range nodes {
		if err := walkToRoot(node, byID); err != nil {
			return err
		}
	}
	return nil
}

// walkToRoot follows parent pointers until the root, failing if the walk does
// not terminate within the tree height.
func walkToRoot(node Node, byID map[string]Node) error {
	current := node
	for steps := 0; current.ParentID != nil; steps++ {
		if steps > int(LevelGlobal) {
			return dErrors.Newf(dErrors.CodeValidation, "cycle detected walking up from %s", node.ID)
		}
		next, ok := byID[*current.ParentID]
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation,
				"broken parent chain above %s", current.ID)
		}
		current = next
	}
	return nil
}

// IsNotFound reports whether err is the store's missing-record sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
