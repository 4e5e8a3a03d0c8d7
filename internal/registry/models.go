package registry

import (
	"time"

	"stratum/internal/hierarchy"
)

// EntityLayerInfo is the flattened ancestor chain for one economic entity,
// computed once at registration so common-layer lookups stay O(1).
type EntityLayerInfo struct {
	EntityID  string    `json:"entity_id"`
	Layer1ID  string    `json:"layer1_id"` // district
	Layer2ID  string    `json:"layer2_id"` // city
	Layer3ID  string    `json:"layer3_id"` // province
	Layer4ID  string    `json:"layer4_id"` // country
	Layer5ID  string    `json:"layer5_id"` // global root
	CreatedAt time.Time `json:"created_at"`
}

// LayerAt returns the ancestor node id at the given level.
func (e EntityLayerInfo) LayerAt(level hierarchy.Level) string {
	switch level {
	case hierarchy.LevelDistrict:
		return e.Layer1ID
	case hierarchy.LevelCity:
		return e.Layer2ID
	case hierarchy.LevelProvince:
		return e.Layer3ID
	case hierarchy.LevelCountry:
		return e.Layer4ID
	case hierarchy.LevelGlobal:
		return e.Layer5ID
	}
	return ""
}

// CommonLayer names the lowest hierarchy level at which two entities share an
// ancestor. The global root is common to every pair by construction.
type CommonLayer struct {
	Level hierarchy.Level `json:"level"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
}
