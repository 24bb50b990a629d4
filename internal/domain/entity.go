package domain

// Entity is a functional endpoint (sensor, switch, light) exposed by a node.
// DeviceID references the registry container through which the owning node
// is resolved; entities are never matched by name heuristics.
type Entity struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	DeviceID string `json:"device_id"`
}

// RegistryEntry links a registry device container to a hardware identifier.
// It is the middle link of the entity -> device -> IEEE resolution chain.
type RegistryEntry struct {
	ID   string `json:"id"`
	IEEE string `json:"ieee"`
}
