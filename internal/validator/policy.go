package validator

import "context"

// PolicyProvider answers the compliance questions of stage 5. Injecting it
// keeps blacklist and sanctions rules swappable without touching pipeline
// control flow.
type PolicyProvider interface {
	IsBlacklisted(ctx context.Context, entityID string) (bool, error)
	IsSanctioned(ctx context.Context, entityID string) (bool, error)
}

// StaticPolicy is a fixed in-memory policy, suitable for tests and as the
// default until an external screening service is wired in.
type StaticPolicy struct {
	blacklist map[string]struct{}
	sanctions map[string]struct{}
}

func NewStaticPolicy(blacklisted, sanctioned []string) *StaticPolicy {
	p := &StaticPolicy{
		blacklist: make(map[string]struct{}, len(blacklisted)),
		sanctions: make(map[string]struct{}, len(sanctioned)),
	}
	for _, id := range blacklisted {
		p.blacklist[id] = struct{}{}
	}
	for _, id := range sanctioned {
		p.sanctions[id] = struct{}{}
	}
	return p
}

func (p *StaticPolicy) IsBlacklisted(_ context.Context, entityID string) (bool, error) {
	_, listed := p.blacklist[entityID]
	return listed, nil
}

func (p *StaticPolicy) IsSanctioned(_ context.Context, entityID string) (bool, error) {
	_, listed := p.sanctions[entityID]
	return listed, nil
}
