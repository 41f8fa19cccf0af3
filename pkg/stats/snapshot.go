package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known stat keys written by the aggregation cycle.
const (
	KeyVisitorsCount  = "visitors-count"
	KeyCountriesCount = "countries-count"
	KeyMapData        = "map-data"
)

// ErrInvalidSnapshot is returned when a snapshot violates its invariants.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// CountryCount is one entry of the map-data sequence.
type CountryCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// Snapshot is the published set of statistics. Values are kept as raw JSON
// so keys written by other producers pass through merges untouched.
type Snapshot map[string]json.RawMessage

// Parse decodes a JSON object into a Snapshot. The top-level value must be an
// object; null and other types are rejected.
func Parse(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidSnapshot)
	}
	var s Snapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Encode returns the JSON encoding of the snapshot. Keys are sorted, so equal
// snapshots always encode to identical bytes. A nil snapshot encodes as {}.
func (s Snapshot) Encode() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]json.RawMessage(s))
}

// Clone returns a copy of the snapshot. Raw values are shared; they are never
// mutated in place.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a new snapshot holding every key of s overwritten by every
// key of update. Values are replaced, never combined: merging a map-data
// array replaces the previous array entirely.
func (s Snapshot) Merge(update Snapshot) Snapshot {
	out := make(Snapshot, len(s)+len(update))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// SetInt stores n at key.
func (s Snapshot) SetInt(key string, n int64) {
	s[key] = json.RawMessage(fmt.Sprintf("%d", n))
}

// SetMapData stores entries as the map-data sequence.
func (s Snapshot) SetMapData(entries []CountryCount) {
	if entries == nil {
		entries = []CountryCount{}
	}
	data, _ := json.Marshal(entries)
	s[KeyMapData] = data
}

// Validate checks the snapshot invariants: every value other than map-data
// is a non-negative number, and map-data is an array of entries with
// distinct, non-empty codes and non-negative counts.
func (s Snapshot) Validate() error {
	for key, raw := range s {
		if key == KeyMapData {
			if err := validateMapData(raw); err != nil {
				return err
			}
			continue
		}
		f, ok := number(raw)
		if !ok {
			return fmt.Errorf("%w: %s must be a number", ErrInvalidSnapshot, key)
		}
		if f < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidSnapshot, key)
		}
	}
	return nil
}

// number decodes raw as a JSON number literal. Quoted numbers are rejected.
func number(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return 0, false
	}
	return f, true
}

func validateMapData(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: map-data must be an array of {code, count}", ErrInvalidSnapshot)
	}
	var entries []CountryCount
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return fmt.Errorf("%w: map-data must be an array of {code, count}", ErrInvalidSnapshot)
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			return fmt.Errorf("%w: map-data entry without code", ErrInvalidSnapshot)
		}
		if e.Count < 0 {
			return fmt.Errorf("%w: map-data count for %s must not be negative", ErrInvalidSnapshot, e.Code)
		}
		if _, dup := seen[e.Code]; dup {
			return fmt.Errorf("%w: duplicate country code %s in map-data", ErrInvalidSnapshot, e.Code)
		}
		seen[e.Code] = struct{}{}
	}
	return nil
}
