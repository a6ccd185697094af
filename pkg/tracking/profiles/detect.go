package profiles

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Location is a set of paths where the job looks up knitfab settings.
type Location struct {
	// Profile is a name of knitprofile. Empty if not detected.
	Profile string

	// ProfileStore is a path to the profile store file.
	ProfileStore string

	// Env is a path to knitenv file. It may not exist.
	Env string
}

type detection struct {
	home string
}

type DetectOption func(*detection) *detection

func WithHome(home string) DetectOption {
	return func(d *detection) *detection {
		d.home = home
		return d
	}
}

// Detect searches `.knitprofile` and `knitenv` from the directory `from` toward the root.
//
// The first line of `.knitprofile` is the profile name.
// The profile store is `~/.knit/profile`.
func Detect(from string, opt ...DetectOption) (Location, error) {
	det := detection{}
	for _, o := range opt {
		det = *o(&det)
	}

	home := det.home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	if abs, err := filepath.Abs(from); err == nil {
		from = abs
	}

	loc := Location{
		ProfileStore: path.Join(home, ".knit", "profile"),
		Env:          path.Join(from, "knitenv"),
	}

	profileFound := false
	envFound := false
	for searchpath := from; ; {
		if !profileFound {
			candidate := path.Join(searchpath, ".knitprofile")
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				content, err := os.ReadFile(candidate)
				if err != nil {
					return Location{}, err
				}
				profileFound = true
				if lines := strings.Split(string(content), "\n"); 0 < len(lines) {
					loc.Profile = strings.TrimSpace(lines[0])
				}
			}
		}
		if !envFound {
			candidate := path.Join(searchpath, "knitenv")
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				envFound = true
				loc.Env = candidate
			}
		}

		if profileFound && envFound {
			break
		}

		next := path.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return loc, nil
}
