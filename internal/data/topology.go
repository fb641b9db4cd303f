package data

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rooms.yaml
var defaultRoomsYAML []byte

// RoomDef is the static description of one room: identity, background
// descriptor for the client, and the four directional neighbors. An empty
// neighbor means no room in that direction.
type RoomDef struct {
	ID         string `yaml:"id"`
	Background string `yaml:"background"`
	North      string `yaml:"north"`
	South      string `yaml:"south"`
	East       string `yaml:"east"`
	West       string `yaml:"west"`
}

// Topology is the validated room adjacency table. The first room listed in
// the source file is the default spawn room.
type Topology struct {
	rooms     map[string]*RoomDef
	defaultID string
}

// LoadTopology loads a room topology from a YAML file. An empty path loads
// the built-in topology.
func LoadTopology(path string) (*Topology, error) {
	if path == "" {
		return DefaultTopology()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	t, err := parseTopology(raw)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return t, nil
}

// DefaultTopology returns the built-in room graph.
func DefaultTopology() (*Topology, error) {
	t, err := parseTopology(defaultRoomsYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in topology: %w", err)
	}
	return t, nil
}

func parseTopology(raw []byte) (*Topology, error) {
	var doc struct {
		Rooms []RoomDef `yaml:"rooms"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(doc.Rooms) == 0 {
		return nil, fmt.Errorf("no rooms defined")
	}

	t := &Topology{
		rooms:     make(map[string]*RoomDef, len(doc.Rooms)),
		defaultID: doc.Rooms[0].ID,
	}
	for i := range doc.Rooms {
		r := &doc.Rooms[i]
		if r.ID == "" {
			return nil, fmt.Errorf("room %d: empty id", i)
		}
		if _, dup := t.rooms[r.ID]; dup {
			return nil, fmt.Errorf("duplicate room id %q", r.ID)
		}
		t.rooms[r.ID] = r
	}

	// Closed graph: every referenced neighbor must exist.
	for _, r := range t.rooms {
		for dir, id := range map[string]string{
			"north": r.North, "south": r.South, "east": r.East, "west": r.West,
		} {
			if id == "" {
				continue
			}
			if _, ok := t.rooms[id]; !ok {
				return nil, fmt.Errorf("room %q: %s neighbor %q does not exist", r.ID, dir, id)
			}
		}
	}
	return t, nil
}

// Get returns the room definition for id, or nil if none.
func (t *Topology) Get(id string) *RoomDef {
	return t.rooms[id]
}

// All calls fn for every room definition.
func (t *Topology) All(fn func(*RoomDef)) {
	for _, r := range t.rooms {
		fn(r)
	}
}

// DefaultRoom returns the id of the spawn room.
func (t *Topology) DefaultRoom() string {
	return t.defaultID
}

// Count returns the number of rooms loaded.
func (t *Topology) Count() int {
	return len(t.rooms)
}
