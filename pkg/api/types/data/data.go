package data

import (
	"time"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/cmp"
)

// Detail is metadata of a Data, as knitfab API responds.
//
// Lineage fields of the response are not decoded.
type Detail struct {
	KnitId string     `json:"knitId"`
	Tags   []tags.Tag `json:"tags"`
}

func (d Detail) Equal(o Detail) bool {
	return d.KnitId == o.KnitId &&
		cmp.SliceEqualUnordered(d.Tags, o.Tags)
}

// Values returns values of tags having the key.
func (d Detail) Values(key string) []string {
	values := []string{}
	for _, t := range d.Tags {
		if t.Key == key {
			values = append(values, t.Value)
		}
	}
	return values
}

// Timestamp returns the time when the Data is registered.
//
// If the Data does not have valid knit#timestamp, ok is false.
func (d Detail) Timestamp() (ts time.Time, ok bool) {
	for _, v := range d.Values(tags.KeyKnitTimestamp) {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// Transient returns the value of knit#transient tag.
//
// If the Data is not transient, it returns empty string.
func (d Detail) Transient() string {
	if v := d.Values(tags.KeyKnitTransient); 0 < len(v) {
		return v[0]
	}
	return ""
}
