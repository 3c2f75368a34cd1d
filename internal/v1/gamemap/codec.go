package gamemap

import (
	"encoding/json"
	"fmt"
)

// pointTag is the discriminator used by MarshalJSON/UnmarshalJSON below to
// tell a Point apart from an arbitrary {"row":_,"col":_} object nested
// elsewhere in a persisted blob. Grounded on the original repository's
// MapAndMetaEncoder / map_and_meta_deserializer pair: every Point, however
// deeply nested inside MapMeta.PointsOfInterest, round-trips through this
// exact shape.
const pointTag = "Point"

type taggedPoint struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Type string `json:"type"`
}

// MarshalJSON implements json.Marshaler, emitting the tagged form.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedPoint{Row: p.Row, Col: p.Col, Type: pointTag})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts either the tagged
// form or a bare {"row":_,"col":_} object, so a Point decodes the same way
// regardless of whether the tag survived an intermediate hop.
func (p *Point) UnmarshalJSON(data []byte) error {
	var tp taggedPoint
	if err := json.Unmarshal(data, &tp); err != nil {
		return fmt.Errorf("gamemap: decode point: %w", err)
	}
	if tp.Type != "" && tp.Type != pointTag {
		return fmt.Errorf("gamemap: unexpected point type tag %q", tp.Type)
	}
	p.Row, p.Col = tp.Row, tp.Col
	return nil
}
