package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/influence"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Deform a base mesh and export it as OBJ",
	Long: `Applies parameter values to the base mesh of a category and writes the
deformed mesh as Wavefront OBJ.

Examples:
  face-sculptor simulate --category nose --set nose-size=1.3 --out nose.obj
  face-sculptor simulate --category round --set implant-size=500 --compare
  face-sculptor simulate --category lips --set lips-fullness=1.4 --steps 30 --out frames/
  face-sculptor simulate --category round --mesh scan.obj --set implant-size=450 --out scan-450.obj

A --mesh base is read from Wavefront OBJ; anchors come from its
"# anchor <name> <index>" comments, or from --landmarks for face meshes.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("category", "nose", "Category to edit")
	simulateCmd.Flags().StringSlice("set", nil, "Parameter values as id=value (repeatable)")
	simulateCmd.Flags().String("landmarks", "", "Fit the face mesh to this landmark capture")
	simulateCmd.Flags().String("mesh", "", "Use this OBJ file as the base mesh instead of the built-in grid")
	simulateCmd.Flags().String("out", "-", "Output OBJ file, or a directory when --steps > 1")
	simulateCmd.Flags().Int("steps", 1, "Write this many frames easing from the defaults to the target values")
	simulateCmd.Flags().Bool("compare", false, "Print how far the result moved from the undeformed mesh")
	simulateCmd.Flags().Bool("json", false, "Output the comparison as JSON")
}

// parseAssignments parses id=value pairs.
func parseAssignments(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --set %q: expected id=value", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", pair, err)
		}
		out[id] = v
	}
	return out, nil
}

func anchorTable(base *mesh.Base) map[string]int {
	names := base.AnchorNames()
	out := make(map[string]int, len(names))
	for _, name := range names {
		out[name], _ = base.Anchor(name)
	}
	return out
}

func writeOBJFile(path string, res *deform.Result) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	return mesh.WriteOBJ(w, res.Snapshot(), anchorTable(res.Base()))
}

// loadBaseMesh reads an OBJ base mesh for model. A capture, when given, refits
// the anchor table to its landmarks.
func loadBaseMesh(path, model string, capture *landmark.Capture) (*mesh.Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh: %w", err)
	}
	defer f.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base, err := mesh.ReadOBJ(f, id, model)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if capture != nil {
		return mesh.FitAnchors(base, capture.Anchors())
	}
	return base, nil
}

// lerpValues eases from to toward to by t in [0, 1].
func lerpValues(from, to params.Values, t float64) params.Values {
	out := make(params.Values, len(to))
	for id, v := range to {
		out[id] = from[id] + (v-from[id])*t
	}
	return out
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	category := mustGetString(cmd, "category")
	registry, err := params.NewRegistry(catalog, category)
	if err != nil {
		return err
	}
	assignments, err := parseAssignments(mustGetStringSlice(cmd, "set"))
	if err != nil {
		return err
	}
	for id, v := range assignments {
		stored, err := registry.SetValue(id, v)
		if err != nil {
			return err
		}
		if stored != v {
			fmt.Fprintf(os.Stderr, "%s: %g stored as %g\n", id, v, stored)
		}
	}
	target := registry.Snapshot()

	var capture *landmark.Capture
	if path := mustGetString(cmd, "landmarks"); path != "" {
		if capture, _, err = readCapture(path); err != nil {
			return err
		}
	}

	renderer := editor.NewRenderer(catalog, cfg.Engine, nil)
	defaults, err := catalog.Defaults(category)
	if err != nil {
		return err
	}
	var (
		base *mesh.Base
		m    *influence.Map
	)
	if path := mustGetString(cmd, "mesh"); path != "" {
		if base, err = loadBaseMesh(path, registry.Active().Model, capture); err != nil {
			return err
		}
		m, err = renderer.Map(ctx, base)
	} else {
		base, m, err = renderer.Prepare(ctx, registry.Active().Model, capture)
	}
	if err != nil {
		return err
	}
	undeformed, err := renderer.Solver().Apply(base, m, defaults.Values)
	if err != nil {
		return err
	}
	result, err := renderer.Solver().Apply(base, m, target.Values)
	if err != nil {
		return err
	}

	out := mustGetString(cmd, "out")
	steps := mustGetInt(cmd, "steps")
	switch {
	case steps > 1:
		if out == "-" {
			return errors.New("--steps needs --out to name a directory")
		}
		if err := writeFrames(renderer, out, base, m, defaults.Values, target.Values, steps); err != nil {
			return err
		}
	case !mustGetBool(cmd, "compare") || out != "-":
		if err := writeOBJFile(out, result); err != nil {
			return err
		}
	}

	if !mustGetBool(cmd, "compare") {
		return nil
	}
	cmp, err := deform.Compare(undeformed.Snapshot(), result.Snapshot())
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(cmp)
	}
	fmt.Printf("Vertices moved: %d of %d\n", cmp.ChangedVertices, cmp.VertexCount)
	fmt.Printf("Max distance:   %.6f (vertex %d, clamp %.6f)\n", cmp.MaxDistance, cmp.MaxVertex, result.Limit())
	fmt.Printf("Mean distance:  %.6f\n", cmp.MeanDistance)
	fmt.Printf("RMS distance:   %.6f\n", cmp.RMSDistance)
	return nil
}

// writeFrames eases from the defaults to the target values, solving each
// frame incrementally, and writes frame_NNN.obj files into dir.
func writeFrames(renderer *editor.Renderer, dir string, base *mesh.Base, m *influence.Map, from, to params.Values, steps int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	res, err := renderer.Solver().Apply(base, m, from)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("Writing frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	for i := 1; i <= steps; i++ {
		if _, err := renderer.Solver().Update(res, lerpValues(from, to, float64(i)/float64(steps))); err != nil {
			return err
		}
		if err := writeOBJFile(filepath.Join(dir, fmt.Sprintf("frame_%03d.obj", i)), res); err != nil {
			return err
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Printf("\nWrote %d frames to %s\n", steps, dir)
	return nil
}
