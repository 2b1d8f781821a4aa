package routing

import "encoding/json"

// Steps are encoded with a "type" field of "WALK" or "BUS" so clients can
// tell them apart.

func (s *WalkStep) MarshalJSON() ([]byte, error) {
	type plain WalkStep
	return json.Marshal(struct {
		Type EdgeType `json:"type"`
		*plain
	}{Walk, (*plain)(s)})
}

func (s *BusStep) MarshalJSON() ([]byte, error) {
	type plain BusStep
	return json.Marshal(struct {
		Type EdgeType `json:"type"`
		*plain
	}{Bus, (*plain)(s)})
}

func (t EdgeType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (it *Itinerary) MarshalJSON() ([]byte, error) {
	type plain Itinerary
	steps := it.Steps
	if steps == nil {
		steps = []Step{}
	}
	return json.Marshal(struct {
		*plain
		Steps     []Step `json:"steps"`
		Transfers int    `json:"transfers"`
	}{(*plain)(it), steps, it.Transfers()})
}
