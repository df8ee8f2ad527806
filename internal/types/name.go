package types

import "strings"

// Name is a package identity: either "pkg" (unqualified, repo resolved by
// search order) or "repo/pkg" (qualified). See spec §3 "Package identity".
type Name struct {
	Repo string // empty when unqualified
	Pkg  string
}

func (n Name) String() string {
	if n.Repo == "" {
		return n.Pkg
	}
	return n.Repo + "/" + n.Pkg
}

// Qualified reports whether the name carries an explicit repo.
func (n Name) Qualified() bool {
	return n.Repo != ""
}

// ParseName splits a raw package name into its optional repo and package
// parts. Names are ASCII, non-empty, and contain no '/' other than the
// single optional separator.
func ParseName(raw string) (Name, error) {
	if raw == "" {
		return Name{}, &InvalidPackageNameError{Raw: raw}
	}
	for _, r := range raw {
		if r > 127 {
			return Name{}, &InvalidPackageNameError{Raw: raw}
		}
	}
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Name{}, &InvalidPackageNameError{Raw: raw}
		}
		return Name{Pkg: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Name{}, &InvalidPackageNameError{Raw: raw}
		}
		return Name{Repo: parts[0], Pkg: parts[1]}, nil
	default:
		return Name{}, &InvalidPackageNameError{Raw: raw}
	}
}
