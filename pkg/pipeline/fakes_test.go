package pipeline

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depglobe/pkg/backoff"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
	"github.com/matzehuels/depglobe/pkg/integrations/dependents"
	"github.com/matzehuels/depglobe/pkg/integrations/github"
	"github.com/matzehuels/depglobe/pkg/usage"
)

type fakeRepos struct {
	repos []github.Repo
	err   error
	calls int
}

func (f *fakeRepos) Repos(_ context.Context, owner string) ([]github.Repo, error) {
	f.calls++
	return f.repos, f.err
}

// fakeDependents maps repository to package name to dependent names.
// A repository with a single "" package has no package selector.
type fakeDependents struct {
	packages   map[string][]string
	dependents map[string]map[string][]string
	errs       map[string]error
	calls      []string
}

func newFakeDependents() *fakeDependents {
	return &fakeDependents{
		packages:   map[string][]string{},
		dependents: map[string]map[string][]string{},
		errs:       map[string]error{},
	}
}

// add registers dependents of repo's unnamed package.
func (f *fakeDependents) add(repo string, names ...string) {
	f.addPackage(repo, "", names...)
}

func (f *fakeDependents) addPackage(repo, pkg string, names ...string) {
	if f.dependents[repo] == nil {
		f.dependents[repo] = map[string][]string{}
	}
	if _, ok := f.dependents[repo][pkg]; !ok {
		f.packages[repo] = append(f.packages[repo], pkg)
	}
	f.dependents[repo][pkg] = append(f.dependents[repo][pkg], names...)
}

func (f *fakeDependents) Packages(_ context.Context, repo string) ([]dependents.Package, error) {
	f.calls = append(f.calls, "packages "+repo)
	if err := f.errs[repo]; err != nil {
		return nil, err
	}
	var out []dependents.Package
	for _, name := range f.packages[repo] {
		out = append(out, dependents.Package{ID: name, Name: name})
	}
	if len(out) == 0 {
		out = []dependents.Package{{}}
	}
	return out, nil
}

func (f *fakeDependents) Dependents(_ context.Context, repo string, pkg dependents.Package) ([]dependents.Dependent, error) {
	f.calls = append(f.calls, "dependents "+repo+" "+pkg.Name)
	var out []dependents.Dependent
	for _, name := range f.dependents[repo][pkg.Name] {
		out = append(out, dependents.Dependent{Name: name})
	}
	return out, nil
}

type fakeAccounts struct {
	locations map[string]string
	errs      map[string][]error
	calls     map[string]int
}

func newFakeAccounts(locations map[string]string) *fakeAccounts {
	return &fakeAccounts{locations: locations, errs: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeAccounts) User(_ context.Context, login string) (*github.User, error) {
	f.calls[login]++
	if errs := f.errs[login]; len(errs) > 0 {
		err := errs[0]
		f.errs[login] = errs[1:]
		return nil, err
	}
	loc, ok := f.locations[login]
	if !ok {
		return nil, deperrors.New(deperrors.ErrCodeNotFound, "user %s", login)
	}
	return &github.User{Login: login, Location: loc}, nil
}

func (f *fakeAccounts) total() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeGeocoder struct {
	places  map[string]geocode.Coordinates
	err     error
	queries []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, q string) (geocode.Coordinates, bool, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return geocode.Coordinates{}, false, f.err
	}
	c, ok := f.places[q]
	return c, ok, nil
}

// memStore keeps the encoded artifact in memory, like a FileStore would.
type memStore struct {
	data  []byte
	saves int
}

func (s *memStore) Load(context.Context) ([]usage.Usage, error) {
	usages, _, err := usage.Read(bytes.NewReader(s.data))
	return usages, err
}

func (s *memStore) Save(_ context.Context, usages []usage.Usage) error {
	data, err := usage.Marshal(usages)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

func (s *memStore) Close() error { return nil }

// fakeClock advances only when the controller sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func testController(clock *fakeClock) *backoff.Controller {
	ctrl := backoff.New(backoff.DefaultPadding, log.New(io.Discard))
	ctrl.Now = func() time.Time { return clock.now }
	ctrl.Sleep = func(_ context.Context, d time.Duration) error {
		clock.sleeps = append(clock.sleeps, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	return ctrl
}
