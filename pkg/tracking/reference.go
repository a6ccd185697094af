package tracking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
)

const versionLatest = "latest"

// Reference points an artifact.
//
// In text form, it is one of:
//
//   - "knit#id:ID": the Data with the knit#id.
//   - "NAME" or "NAME:latest": the newest Data tagged "name:NAME".
//   - "NAME:vN": the N-th (0-origin, oldest first) Data tagged "name:NAME".
//
// Transient Data are not counted.
type Reference struct {
	KnitId string
	Name   string

	// Version is the index of versions, or -1 for the latest.
	Version int
}

func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if id, ok := strings.CutPrefix(s, tags.KeyKnitId+":"); ok {
		if id == "" {
			return Reference{}, fmt.Errorf("%w: %q: knit#id is empty", ErrInvalidReference, s)
		}
		return Reference{KnitId: id, Version: -1}, nil
	}

	name, version := s, versionLatest
	if i := strings.LastIndex(s, ":"); 0 <= i {
		name, version = s[:i], s[i+1:]
	}
	if name == "" {
		return Reference{}, fmt.Errorf("%w: %q: name is empty", ErrInvalidReference, s)
	}

	if version == versionLatest {
		return Reference{Name: name, Version: -1}, nil
	}
	if n, ok := strings.CutPrefix(version, "v"); ok {
		if v, err := strconv.Atoi(n); err == nil && 0 <= v && n == strconv.Itoa(v) {
			return Reference{Name: name, Version: v}, nil
		}
	}
	return Reference{}, fmt.Errorf(
		"%w: %q: version should be %q or \"v\" followed by a number",
		ErrInvalidReference, s, versionLatest,
	)
}

func (r Reference) String() string {
	if r.KnitId != "" {
		return tags.KeyKnitId + ":" + r.KnitId
	}
	if r.Version < 0 {
		return r.Name + ":" + versionLatest
	}
	return r.Name + ":v" + strconv.Itoa(r.Version)
}

// resolve finds the Data which r points.
func (s *Session) resolve(ctx context.Context, r Reference) (data.Detail, error) {
	if r.KnitId != "" {
		found, err := s.client.FindData(ctx, []tags.Tag{{Key: tags.KeyKnitId, Value: r.KnitId}})
		if err != nil {
			return data.Detail{}, err
		}
		for _, d := range found {
			if d.KnitId != r.KnitId {
				continue
			}
			if t := d.Transient(); t != "" {
				return data.Detail{}, fmt.Errorf(
					"%w: %s is %s:%s", ErrArtifactNotFound, r, tags.KeyKnitTransient, t,
				)
			}
			return d, nil
		}
		return data.Detail{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, r)
	}

	found, err := s.client.FindData(ctx, []tags.Tag{{Key: TagKeyName, Value: r.Name}})
	if err != nil {
		return data.Detail{}, err
	}

	type versioned struct {
		detail data.Detail
		ts     int64
	}
	versions := []versioned{}
	for _, d := range found {
		if d.Transient() != "" {
			continue
		}
		ts, ok := d.Timestamp()
		if !ok {
			continue
		}
		versions = append(versions, versioned{detail: d, ts: ts.UnixNano()})
	}
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].ts != versions[j].ts {
			return versions[i].ts < versions[j].ts
		}
		return versions[i].detail.KnitId < versions[j].detail.KnitId
	})

	if len(versions) == 0 {
		return data.Detail{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, r)
	}
	if r.Version < 0 {
		return versions[len(versions)-1].detail, nil
	}
	if len(versions) <= r.Version {
		return data.Detail{}, fmt.Errorf(
			"%w: %s (only %d versions exist)", ErrArtifactNotFound, r, len(versions),
		)
	}
	return versions[r.Version].detail, nil
}
