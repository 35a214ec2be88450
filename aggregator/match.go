package aggregator

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/matcher"
	"github.com/aquasecurity/advisory-aggregator/risk"
	"github.com/aquasecurity/advisory-aggregator/types"
)

type MatchRequest struct {
	Packages  []types.PackageRef
	Ecosystem string
}

type MatchResult struct {
	FetchedAt  time.Time              `json:"fetchedAt"`
	Count      int                    `json:"count"`
	Advisories []types.Advisory       `json:"advisories"`
	Packages   []matcher.PackageMatch `json:"packages,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// MatchPackages asks the live source for the advisories affecting the declared packages.
// Advisories are returned as the source reports them, batch after batch.
func (a Aggregator) MatchPackages(ctx context.Context, m matcher.Matcher, req MatchRequest) MatchResult {
	eco, ok := types.ParseEcosystem(req.Ecosystem)
	if !ok {
		return a.matchFailure(xerrors.Errorf("%w: %s", ErrUnsupportedEcosystem, req.Ecosystem))
	}
	advisories := risk.ClassifyAll(m.Live(ctx, eco, req.Packages))
	return MatchResult{
		FetchedAt:  a.now(),
		Count:      len(advisories),
		Advisories: advisories,
	}
}

// MatchCached evaluates the declared packages against a previous aggregation result without
// touching the network. An empty ecosystem matches across all of them.
func (a Aggregator) MatchCached(cached Result, req MatchRequest) MatchResult {
	if cached.Count < 0 {
		return a.matchFailure(xerrors.Errorf("cached result is unusable: %s", cached.Error))
	}
	scoped := cached.Advisories
	var eco types.Ecosystem
	if req.Ecosystem != "" {
		var ok bool
		if eco, ok = types.ParseEcosystem(req.Ecosystem); !ok {
			return a.matchFailure(xerrors.Errorf("%w: %s", ErrUnsupportedEcosystem, req.Ecosystem))
		}
		scoped = nil
		for _, adv := range cached.Advisories {
			if adv.Ecosystem == eco {
				scoped = append(scoped, adv)
			}
		}
	}

	groups := matcher.Group(eco, scoped, req.Packages)
	advisories := matcher.Flatten(groups)
	return MatchResult{
		FetchedAt:  cached.FetchedAt,
		Count:      len(advisories),
		Advisories: advisories,
		Packages:   groups,
	}
}

func (a Aggregator) matchFailure(err error) MatchResult {
	return MatchResult{
		FetchedAt:  a.now(),
		Count:      -1,
		Advisories: []types.Advisory{},
		Error:      err.Error(),
	}
}
