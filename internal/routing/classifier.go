package routing

import (
	"errors"
	"fmt"
)

// RouteClass selects how a route renders errors and which principal rules
// apply to it. The board service only serves its JSON API and health endpoints.
type RouteClass string

const (
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassOps         RouteClass = "ops"
)

func parseRouteClass(s string) (RouteClass, error) {
	switch rc := RouteClass(s); rc {
	case RouteClassInternalAPI, RouteClassOps:
		return rc, nil
	default:
		return "", fmt.Errorf("allowlist: unknown route_class %q", s)
	}
}

type Classifier struct {
	exact    map[string]RouteClass
	patterns []pathPatternRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]RouteClass, len(ep.Routes))
	var patterns []pathPatternRoute
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		rc, err := parseRouteClass(r.RouteClass)
		if err != nil {
			return nil, err
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: rc})
			continue
		}
		exact[r.Path] = rc
	}
	return &Classifier{exact: exact, patterns: patterns}, nil
}

// Classify returns the declared class of path. Undeclared paths are treated
// as API paths so unknown URLs still get a JSON envelope.
func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.exact[path]; ok {
		return rc
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}
	return RouteClassInternalAPI
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}
