package agent

import (
	"sort"
	"strings"

	"github.com/rfeldhaus/autogui-cli/internal/config"
)

// Guard applies the static danger rules and the allowed-region check. It is
// built once per process from read-only configuration and judges actions
// independently of the oracle's own danger flag.
type Guard struct {
	blockedKeys   map[string]struct{}
	blockedCombos map[string]struct{}
	blockedText   []string
	region        *config.RegionConfig
}

func NewGuard(safety config.SafetyConfig, region *config.RegionConfig) *Guard {
	g := &Guard{
		blockedKeys:   make(map[string]struct{}, len(safety.DangerousKeys)),
		blockedCombos: make(map[string]struct{}, len(safety.DangerousHotkeys)),
		region:        region,
	}
	for _, k := range safety.DangerousKeys {
		g.blockedKeys[strings.ToLower(k)] = struct{}{}
	}
	for _, combo := range safety.DangerousHotkeys {
		if key := comboKey(combo); key != "" {
			g.blockedCombos[key] = struct{}{}
		}
	}
	for _, p := range safety.DangerousPatterns {
		if p != "" {
			g.blockedText = append(g.blockedText, strings.ToLower(p))
		}
	}
	return g
}

// comboKey canonicalizes a key combination so that matching is order- and
// case-insensitive set equality.
func comboKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	folded := make([]string, len(keys))
	for i, k := range keys {
		folded[i] = strings.ToLower(k)
	}
	sort.Strings(folded)
	return strings.Join(folded, "+")
}

// Dangerous reports whether the static rule tables flag the action. Only
// press and type actions can match a rule; everything else is flagged solely
// by the oracle's self-report.
func (g *Guard) Dangerous(a Action) bool {
	switch a.Kind {
	case ActionPress:
		keys := a.keys()
		if len(keys) == 1 {
			if _, ok := g.blockedKeys[strings.ToLower(keys[0])]; ok {
				return true
			}
		}
		if _, ok := g.blockedCombos[comboKey(keys)]; ok {
			return true
		}
	case ActionType:
		text := strings.ToLower(a.stringParam("text", ""))
		for _, pattern := range g.blockedText {
			if strings.Contains(text, pattern) {
				return true
			}
		}
	}
	return false
}

// InRegion reports whether every coordinate pair the action carries falls
// inside the allowed region. With no region configured it always passes.
func (g *Guard) InRegion(a Action) bool {
	if g.region == nil {
		return true
	}
	for _, p := range coordPairs(a) {
		if !g.region.Contains(p[0]/1000, p[1]/1000) {
			return false
		}
	}
	return true
}

// coordPairs collects the normalized 0-1000 coordinate pairs an action
// explicitly carries: the position of pointer actions, start and end of a
// drag, the optional position of a scroll. Pairs the action omits are not
// checked; the defaults only apply at execution time.
func coordPairs(a Action) [][2]float64 {
	var pairs [][2]float64
	add := func(xKey, yKey string) {
		if a.hasParam(xKey) && a.hasParam(yKey) {
			pairs = append(pairs, [2]float64{a.floatParam(xKey, 500), a.floatParam(yKey, 500)})
		}
	}
	switch a.Kind {
	case ActionClick, ActionDoubleClick, ActionRightClick, ActionMove, ActionScroll:
		add("x", "y")
	case ActionDrag:
		add("start_x", "start_y")
		add("end_x", "end_y")
	}
	return pairs
}
