package merkle

import "encoding/json"

// record is the wire shape for DAG persistence: a flat node list plus the
// ordered root id list, from which Nodes/adjacency are reconstructed
// exactly.
type record struct {
	Nodes   []*Node `json:"nodes"`
	RootIds []H     `json:"rootIds"`
}

// Serialize returns the JSON encoding of d.
func (d *DAG) Serialize() ([]byte, error) {
	r := record{
		Nodes:   d.GetAllNodes(),
		RootIds: d.RootIds,
	}
	return json.Marshal(r)
}

// Deserialize reconstructs a DAG from the output of Serialize. The result
// is equal (ids, edges, and RootIds) to the original.
func Deserialize(data []byte) (*DAG, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	d := New()
	for _, n := range r.Nodes {
		d.Nodes[n.Id] = &Node{
			Id:       n.Id,
			Data:     n.Data,
			Parents:  append([]H(nil), n.Parents...),
			Children: append([]H(nil), n.Children...),
		}
	}
	d.RootIds = append([]H(nil), r.RootIds...)
	return d, nil
}
