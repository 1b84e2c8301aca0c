package dependents

import "strings"

// Package is one entry of a repository's package selector. A repository
// without a selector has a single Package with an empty ID.
type Package struct {
	ID   string
	Name string
}

// Dependent is a repository that depends on a package, named "owner/repo".
type Dependent struct {
	Name string
}

// Account returns the owning account: the part of Name before the first "/".
func (d Dependent) Account() string {
	account, _, _ := strings.Cut(d.Name, "/")
	return account
}
