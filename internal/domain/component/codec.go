package component

import (
	"encoding/json"
	"fmt"

	"github.com/forPelevin/timewarp/internal/domain/warp"
)

// Record is the persisted form of a component.
type Record struct {
	RangeLow     float64 `json:"rangeLow"`
	RangeHigh    float64 `json:"rangeHigh"`
	Factor       float64 `json:"factor"`
	Modifier     float64 `json:"modifier"`
	WarpTypeName string  `json:"warpTypeName"`
}

// ToRecords sorts components by lower bound and drops compliments.
func ToRecords(cs []Component) ([]Record, error) {
	sorted, err := Sort(WithoutCompliments(cs))
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, Record{
			RangeLow:     c.Range.Lo,
			RangeHigh:    c.Range.Hi,
			Factor:       c.Factor,
			Modifier:     c.Modifier,
			WarpTypeName: c.Type.String(),
		})
	}
	return out, nil
}

// FromRecords rebuilds sorted components with keys assigned in order.
func FromRecords(recs []Record) ([]Component, error) {
	out := make([]Component, 0, len(recs))
	for i, r := range recs {
		typ, ok := warp.ParseType(r.WarpTypeName)
		if !ok {
			return nil, fmt.Errorf("record %d: unknown warp type %q", i, r.WarpTypeName)
		}
		if typ == warp.ConstantCompliment {
			continue
		}
		c, err := New(Range{Lo: r.RangeLow, Hi: r.RangeHigh}, r.Factor, r.Modifier, typ)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, c)
	}
	sorted, err := Sort(out)
	if err != nil {
		return nil, err
	}
	for i := range sorted {
		sorted[i].Key = Key(i + 1)
	}
	return sorted, nil
}

func Encode(cs []Component) ([]byte, error) {
	recs, err := ToRecords(cs)
	if err != nil {
		return nil, fmt.Errorf("encode components: %w", err)
	}
	return json.MarshalIndent(recs, "", "  ")
}

func Decode(b []byte) ([]Component, error) {
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	cs, err := FromRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	return cs, nil
}
