package state

import (
	"encoding/json"
	"fmt"
)

type vectorJSON struct {
	Names   []string  `json:"names"`
	Values  []float64 `json:"values"`
	Seqs    []uint32  `json:"seqs"`
	TimeIdx int       `json:"time_idx"`
}

// MarshalJSON serializes the full vector, sequence numbers included, so a
// restored vector resumes exactly where the original left off.
func (v *Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(vectorJSON{
		Names:   v.names,
		Values:  v.values,
		Seqs:    v.seqs,
		TimeIdx: v.timeIdx,
	})
}

// UnmarshalJSON restores a vector previously produced by MarshalJSON.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw vectorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("state: decode vector: %w", err)
	}
	if len(raw.Values) != len(raw.Names) || len(raw.Seqs) != len(raw.Names) {
		return fmt.Errorf("state: decode vector: %d names, %d values, %d seqs",
			len(raw.Names), len(raw.Values), len(raw.Seqs))
	}
	if raw.TimeIdx < 0 || raw.TimeIdx >= len(raw.Names) {
		return fmt.Errorf("state: decode vector: time index %d out of range", raw.TimeIdx)
	}
	v.names = raw.Names
	v.values = raw.Values
	v.seqs = raw.Seqs
	v.timeIdx = raw.TimeIdx
	return nil
}
