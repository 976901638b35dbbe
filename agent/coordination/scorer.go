package coordination

import (
	"math"
	"strings"

	"github.com/BaSui01/agentcoord/types"
)

// AgentProfile is the capability view of an agent used for scoring.
type AgentProfile struct {
	AgentID   string
	Role      string
	Expertise []string
	Skills    map[string]float64
	// AvailabilityScore and PerformanceScore are within [0,1].
	AvailabilityScore float64
	PerformanceScore  float64
}

// ProfileFor derives the scoring profile of an agent. Availability is the
// free share of capacity and performance is the success rate.
func ProfileFor(a *types.Agent) AgentProfile {
	return AgentProfile{
		AgentID:           a.ID,
		Role:              a.Role,
		Expertise:         a.Expertise,
		Skills:            a.Skills,
		AvailabilityScore: clamp01(1 - a.WorkloadPercentage()/100),
		PerformanceScore:  clamp01(a.SuccessRate / 100),
	}
}

// Scorer computes how well an agent profile fits task requirements.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score returns a suitability score in [0,1]. A requirement that is not set
// is fully satisfied; capability data the agent lacks contributes nothing.
func (s *Scorer) Score(p AgentProfile, req types.TaskRequirements) float64 {
	total := s.weights.total()
	if total <= 0 {
		return 0
	}
	sum := s.weights.Role*roleMatch(p.Role, req.Role) +
		s.weights.Expertise*expertiseOverlap(p.Expertise, req.Expertise) +
		s.weights.Skills*skillAlignment(p.Skills, req.Skills) +
		s.weights.Availability*clamp01(p.AvailabilityScore) +
		s.weights.Performance*clamp01(p.PerformanceScore)
	return clamp01(sum / total)
}

func roleMatch(have, want string) float64 {
	if strings.TrimSpace(want) == "" {
		return 1
	}
	if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
		return 1
	}
	return 0
}

// expertiseOverlap is the Jaccard index of the lower-cased sets.
func expertiseOverlap(have, want []string) float64 {
	required := lowerSet(want)
	if len(required) == 0 {
		return 1
	}
	offered := lowerSet(have)
	inter := 0
	for k := range required {
		if _, ok := offered[k]; ok {
			inter++
		}
	}
	union := len(required) + len(offered) - inter
	return float64(inter) / float64(union)
}

func skillAlignment(have, want map[string]float64) float64 {
	if len(want) == 0 {
		return 1
	}
	sum := 0.0
	for name, required := range want {
		actual, ok := have[name]
		if !ok {
			continue
		}
		sum += clamp01(1 - math.Max(0, required-actual))
	}
	return clamp01(sum / float64(len(want)))
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
