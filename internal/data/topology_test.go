package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTopology(t *testing.T) {
	topo, err := DefaultTopology()
	if err != nil {
		t.Fatalf("DefaultTopology: %v", err)
	}
	if topo.Count() == 0 {
		t.Fatal("built-in topology is empty")
	}
	def := topo.DefaultRoom()
	if topo.Get(def) == nil {
		t.Fatalf("default room %q not in table", def)
	}
}

func TestLoadTopologyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	body := `
rooms:
  - id: hall
    background: stone
    east: cellar
  - id: cellar
    background: moss
    west: hall
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	topo, err := LoadTopology(path)
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	if got := topo.DefaultRoom(); got != "hall" {
		t.Errorf("DefaultRoom = %q, want hall", got)
	}
	if topo.Get("hall").East != "cellar" {
		t.Errorf("hall.East = %q, want cellar", topo.Get("hall").East)
	}
	if topo.Get("cellar").North != "" {
		t.Errorf("cellar.North = %q, want empty", topo.Get("cellar").North)
	}
}

func TestLoadTopologyRejectsBadGraphs(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "dangling neighbor",
			body: "rooms:\n  - id: hall\n    north: nowhere\n",
			want: "does not exist",
		},
		{
			name: "duplicate id",
			body: "rooms:\n  - id: hall\n  - id: hall\n",
			want: "duplicate",
		},
		{
			name: "empty file",
			body: "rooms: []\n",
			want: "no rooms",
		},
		{
			name: "missing id",
			body: "rooms:\n  - background: stone\n",
			want: "empty id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rooms.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadTopology(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
