package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/flowerr"
	"github.com/quendro/forgeflow/pkg/models"
)

// remediationRetry shapes the wait between attempts of the same stage.
var remediationRetry = flowerr.RetryConfig{
	BackoffBase:       500 * time.Millisecond,
	BackoffMultiplier: 2.0,
	MaxBackoff:        5 * time.Second,
}

// remediate runs the automatic fix attempt between retries of the same
// stage. It never re-enters the stage machinery itself; anything it
// cannot fix simply fails again on the retried attempt, bounded by the
// stage's retry counter.
func (o *Orchestrator) remediate(
	ctx context.Context,
	wc *models.WorkflowContext,
	env *environment.Handle,
	stage models.Stage,
	classification flowerr.Classification,
	retryCount int,
) {
	journal := func(entry string) {
		_ = o.persistence.AppendJournal(ctx, wc.ID, "remediation: "+entry)
	}

	switch classification.Kind {
	case flowerr.KindNetwork, flowerr.KindAIProvider:
		wait := remediationRetry.Backoff(retryCount)
		journal(fmt.Sprintf("waiting %s before retrying stage %s", wait, stage))

		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}

	case flowerr.KindDeployment:
		journal(fmt.Sprintf("resubmitting stage %s with adjusted parameters", stage))

		select {
		case <-ctx.Done():
		case <-time.After(remediationRetry.Backoff(retryCount)):
		}

	default:
	}

	// A compilation retry commonly fails on a dependency that never made
	// it into the environment; re-fetch anything detected but missing.
	if stage == models.StageCompilation || stage == models.StageDependencyResolution {
		o.refetchMissingDependencies(ctx, wc, env, journal)
	}
}

// refetchMissingDependencies re-installs detected dependencies absent from
// the installed set. Install is idempotent, so present dependencies are
// untouched; failures are journaled and left for the retried attempt.
func (o *Orchestrator) refetchMissingDependencies(
	ctx context.Context,
	wc *models.WorkflowContext,
	env *environment.Handle,
	journal func(string),
) {
	resolver := o.executor.toolchain.Resolver

	for name, dep := range wc.Dependencies {
		if wc.Installed(name) {
			continue
		}

		if err := resolver.Install(ctx, dep, env.Path); err != nil {
			journal(fmt.Sprintf("re-fetch of dependency %s failed: %v", name, err))

			continue
		}

		wc.MarkInstalled(dep)
		journal("re-fetched dependency " + name)
	}
}
