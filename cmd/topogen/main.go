// topogen generates a rectangular room topology YAML for the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pibolib/cs375-multi-dungeon/internal/data"
)

var backgrounds = []string{"stone", "moss", "sand", "lava", "ice", "wood"}

func main() {
	cols := flag.Int("cols", 2, "grid columns")
	rows := flag.Int("rows", 2, "grid rows")
	wrap := flag.Bool("wrap", true, "wrap edges (torus); otherwise border rooms have missing neighbors")
	out := flag.String("o", "rooms.yaml", "output file")
	flag.Parse()

	if *cols < 1 || *rows < 1 {
		fmt.Fprintln(os.Stderr, "cols and rows must be at least 1")
		os.Exit(1)
	}

	id := func(col, row int) string {
		return fmt.Sprintf("room%d", row*(*cols)+col+1)
	}
	neighbor := func(col, row, dc, dr int) string {
		nc, nr := col+dc, row+dr
		if *wrap {
			nc = (nc + *cols) % *cols
			nr = (nr + *rows) % *rows
		} else if nc < 0 || nc >= *cols || nr < 0 || nr >= *rows {
			return ""
		}
		return id(nc, nr)
	}

	doc := struct {
		Rooms []data.RoomDef `yaml:"rooms"`
	}{}
	for row := 0; row < *rows; row++ {
		for col := 0; col < *cols; col++ {
			doc.Rooms = append(doc.Rooms, data.RoomDef{
				ID:         id(col, row),
				Background: backgrounds[(row*(*cols)+col)%len(backgrounds)],
				North:      neighbor(col, row, 0, -1),
				South:      neighbor(col, row, 0, 1),
				East:       neighbor(col, row, 1, 0),
				West:       neighbor(col, row, -1, 0),
			})
		}
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "# Room topology — %dx%d grid, wrap=%v\n", *cols, *rows, *wrap)
	buf.Write(body)

	if err := os.WriteFile(*out, []byte(buf.String()), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rooms to %s\n", len(doc.Rooms), *out)
}
