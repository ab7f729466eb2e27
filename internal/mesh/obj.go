package mesh

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/geometry"
)

// anchorDirective marks an anchor in an OBJ comment: "# anchor <name> <vertex>".
const anchorDirective = "anchor"

// ReadOBJ parses a Wavefront OBJ stream into a base mesh. Only vertex
// positions and faces are read; polygons are fan-triangulated. Texture and
// normal references ("v/vt/vn") are ignored. Anchors are read from
// "# anchor <name> <index>" comments (0-based vertex index).
func ReadOBJ(r io.Reader, id, model string) (*Base, error) {
	var (
		vertices []geometry.Vec3
		faces    [][3]int
		anchors  = map[string]int{}
	)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", lineNo)
			}
			var v geometry.Vec3
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: parsing vertex: %w", lineNo, err)
				}
				v[i] = f
			}
			vertices = append(vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				i, err := parseFaceRef(ref, len(vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				faces = append(faces, [3]int{idx[0], idx[k], idx[k+1]})
			}
		case "#":
			if len(fields) == 4 && fields[1] == anchorDirective {
				i, err := strconv.Atoi(fields[3])
				if err != nil {
					return nil, fmt.Errorf("line %d: parsing anchor index: %w", lineNo, err)
				}
				anchors[fields[2]] = i
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading obj: %w", err)
	}

	return New(id, model, vertices, faces, anchors)
}

// parseFaceRef converts a 1-based (or negative, relative) OBJ vertex
// reference into a 0-based index.
func parseFaceRef(ref string, vertexCount int) (int, error) {
	if slash := strings.IndexByte(ref, '/'); slash >= 0 {
		ref = ref[:slash]
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("parsing face index %q: %w", ref, err)
	}
	switch {
	case i > 0:
		return i - 1, nil
	case i < 0:
		return vertexCount + i, nil
	default:
		return 0, fmt.Errorf("face index 0 is not valid")
	}
}

// WriteOBJ writes a snapshot as Wavefront OBJ. Anchors (optional) are written
// as comments so ReadOBJ restores them.
func WriteOBJ(w io.Writer, s Snapshot, anchors map[string]int) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %s\n", s.MeshID)
	names := make([]string, 0, len(anchors))
	for name := range anchors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(bw, "# %s %s %d\n", anchorDirective, name, anchors[name])
	}
	for _, v := range s.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
	}
	for _, f := range s.Faces {
		fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
	}

	return bw.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
