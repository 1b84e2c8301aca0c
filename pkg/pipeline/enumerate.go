package pipeline

import (
	"context"
	"errors"
	"iter"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depglobe/pkg/backoff"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/integrations/dependents"
	"github.com/matzehuels/depglobe/pkg/integrations/github"
	"github.com/matzehuels/depglobe/pkg/observability"
)

// RepoSource lists the repositories owned by an account.
// [github.Client] implements it.
type RepoSource interface {
	Repos(ctx context.Context, owner string) ([]github.Repo, error)
}

// DependentSource lists a repository's packages and their dependents.
// [dependents.Client] implements it.
type DependentSource interface {
	Packages(ctx context.Context, repo string) ([]dependents.Package, error)
	Dependents(ctx context.Context, repo string, pkg dependents.Package) ([]dependents.Dependent, error)
}

// Dependent is one (repository, dependent) pair produced by an [Enumerator].
type Dependent struct {
	Repository string // "owner/name" of the collected repository
	Package    string // package name within Repository; may be empty
	Name       string // "owner/name" of the dependent repository
	Account    string // owner part of Name
}

// errEnumerated is returned when an Enumerator is walked twice.
var errEnumerated = errors.New("dependents already enumerated")

// Enumerator walks the dependents of an account's repositories.
type Enumerator struct {
	repos     RepoSource
	deps      DependentSource
	backoff   *backoff.Controller
	logger    *log.Logger
	owner     string
	explicit  []string
	skipForks bool

	used         bool
	repositories int
}

// NewEnumerator creates an enumerator over owner's repositories, or over
// explicit "owner/name" references when any are given.
func NewEnumerator(repos RepoSource, deps DependentSource, ctrl *backoff.Controller, logger *log.Logger, owner string, explicit []string, skipForks bool) *Enumerator {
	if logger == nil {
		logger = log.Default()
	}
	if ctrl == nil {
		ctrl = backoff.New(backoff.DefaultPadding, logger)
	}
	return &Enumerator{
		repos:     repos,
		deps:      deps,
		backoff:   ctrl,
		logger:    logger,
		owner:     owner,
		explicit:  explicit,
		skipForks: skipForks,
	}
}

// All yields dependents lazily in repository, package, then page order.
// An error is yielded once and ends the sequence. The sequence can be
// consumed only once.
func (e *Enumerator) All(ctx context.Context) iter.Seq2[Dependent, error] {
	return func(yield func(Dependent, error) bool) {
		if e.used {
			yield(Dependent{}, errEnumerated)
			return
		}
		e.used = true

		repos, err := e.listRepositories(ctx)
		if err != nil {
			yield(Dependent{}, err)
			return
		}

		for _, repo := range repos {
			e.repositories++
			e.logger.Info("checking repository", "repo", repo)
			observability.Pipeline().OnRepository(ctx, repo)

			pkgs, err := backoff.Call(ctx, e.backoff, func() ([]dependents.Package, error) {
				return e.deps.Packages(ctx, repo)
			})
			if err != nil {
				yield(Dependent{}, err)
				return
			}

			for _, pkg := range pkgs {
				deps, err := backoff.Call(ctx, e.backoff, func() ([]dependents.Dependent, error) {
					return e.deps.Dependents(ctx, repo, pkg)
				})
				if err != nil {
					yield(Dependent{}, err)
					return
				}
				e.logger.Debug("package dependents", "repo", repo, "package", pkg.Name, "count", len(deps))

				for _, d := range deps {
					dep := Dependent{Repository: repo, Package: pkg.Name, Name: d.Name, Account: d.Account()}
					if !yield(dep, nil) {
						return
					}
				}
			}
		}
	}
}

// Repositories returns how many repositories have been started so far.
func (e *Enumerator) Repositories() int { return e.repositories }

func (e *Enumerator) listRepositories(ctx context.Context) ([]string, error) {
	if len(e.explicit) > 0 {
		for _, ref := range e.explicit {
			if _, _, err := deperrors.ValidateRepoRef(ref); err != nil {
				return nil, err
			}
		}
		return e.explicit, nil
	}

	repos, err := backoff.Call(ctx, e.backoff, func() ([]github.Repo, error) {
		return e.repos.Repos(ctx, e.owner)
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		if e.skipForks && r.Fork {
			e.logger.Debug("skipping fork", "repo", r.FullName)
			continue
		}
		names = append(names, r.FullName)
	}
	e.logger.Info("found repositories", "owner", e.owner, "count", len(names))
	return names, nil
}
