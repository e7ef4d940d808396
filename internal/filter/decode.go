package filter

import (
	"bytes"
	"encoding/json"

	"log-manager/internal/domain"
)

// RawClause is the wire shape of one filter entry as sent by the UI.
type RawClause struct {
	Key       string   `json:"key" yaml:"key"`
	List      []string `json:"list,omitempty" yaml:"list,omitempty"`
	Remove    bool     `json:"remove,omitempty" yaml:"remove,omitempty"`
	StartTime string   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// DecodeClauses converts wire clauses into typed clauses, rejecting missing
// and unknown keys.
func DecodeClauses(raw []RawClause) ([]domain.Clause, error) {
	out := make([]domain.Clause, 0, len(raw))
	for i, r := range raw {
		key, err := domain.ParseFilterKey(r.Key)
		if err != nil {
			return nil, domain.ErrMalformedInput("filter %d: %s", i, err.Error())
		}
		if key == domain.FilterKeyTime {
			out = append(out, domain.TimeRangeClause{StartTime: r.StartTime, EndTime: r.EndTime})
			continue
		}
		out = append(out, domain.CategoricalClause{Key: key, Values: r.List, Exclude: r.Remove})
	}
	return out, nil
}

// UnmarshalFilter accepts either a bare JSON array of clauses or an object
// of the form {"filter": [...]}.
func UnmarshalFilter(data []byte) ([]RawClause, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []RawClause
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, domain.ErrMalformedInput("invalid filter list: %s", err.Error())
		}
		return raw, nil
	}
	var doc struct {
		Filter []RawClause `json:"filter"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, domain.ErrMalformedInput("invalid filter document: %s", err.Error())
	}
	if doc.Filter == nil {
		return nil, domain.ErrMalformedInput("missing query filter section")
	}
	return doc.Filter, nil
}
