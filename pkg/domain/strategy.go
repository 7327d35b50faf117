package domain

import "fmt"

// StrategyKind enumerates retrieval/extraction strategies
type StrategyKind string

// strategy kinds
const (
	StrategyStatic         StrategyKind = "static"
	StrategyPaginated      StrategyKind = "paginated"
	StrategyInfiniteScroll StrategyKind = "infinite_scroll"
	StrategyAPIDiscovery   StrategyKind = "api_discovery"
	StrategyDynamicRender  StrategyKind = "dynamic_render"
	StrategySourceSpecific StrategyKind = "source_specific"
)

// Strategy is the detected or configured strategy for one crawl.
// ProfileID is set only for StrategySourceSpecific.
type Strategy struct {
	Kind      StrategyKind
	ProfileID string
}

// String returns strategy name, including profile for source-specific ones
func (s Strategy) String() string {
	if s.Kind == StrategySourceSpecific {
		return fmt.Sprintf("%s(%s)", s.Kind, s.ProfileID)
	}
	return string(s.Kind)
}

// Valid checks if the kind is a known strategy
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyStatic, StrategyPaginated, StrategyInfiniteScroll, StrategyAPIDiscovery,
		StrategyDynamicRender, StrategySourceSpecific:
		return true
	}
	return false
}
