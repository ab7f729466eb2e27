package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure influence build and solve times",
	Long: `Builds the influence map of a category's base mesh, then times full solves
against incremental updates that change one random parameter per iteration.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().String("category", "nose", "Category to benchmark")
	benchCmd.Flags().Int("iterations", constants.DefaultBenchIterations, "Number of solve iterations")
	benchCmd.Flags().Uint64("seed", 1, "Random seed for parameter changes")
	benchCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// BenchResult is the JSON output of the bench command.
type BenchResult struct {
	Category     string        `json:"category"`
	Vertices     int           `json:"vertices"`
	Entries      int           `json:"influenceEntries"`
	Iterations   int           `json:"iterations"`
	Build        time.Duration `json:"buildNs"`
	MeanApply    time.Duration `json:"meanApplyNs"`
	MeanUpdate   time.Duration `json:"meanUpdateNs"`
	MeanTouched  float64       `json:"meanTouchedVertices"`
	FrameBudget  time.Duration `json:"frameBudgetNs"`
	WithinBudget bool          `json:"withinBudget"`
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	iterations := mustGetInt(cmd, "iterations")
	if iterations < 1 {
		return fmt.Errorf("--iterations must be positive, got %d", iterations)
	}
	jsonOutput := mustGetBool(cmd, "json")

	registry, err := params.NewRegistry(catalog, mustGetString(cmd, "category"))
	if err != nil {
		return err
	}
	active := registry.Active()

	renderer := editor.NewRenderer(catalog, cfg.Engine, nil)
	base, err := renderer.Base(active.Model, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	m, err := renderer.Map(ctx, base)
	if err != nil {
		return err
	}
	result := BenchResult{
		Category:    active.ID,
		Vertices:    base.VertexCount(),
		Entries:     m.EntryCount(),
		Iterations:  iterations,
		Build:       time.Since(start),
		FrameBudget: cfg.Engine.TickInterval,
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(iterations,
			progressbar.OptionSetDescription("Solving"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("solves"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	rng := rand.New(rand.NewPCG(mustGetUint64(cmd, "seed"), 0))
	solver := renderer.Solver()
	res, err := solver.Apply(base, m, registry.Snapshot().Values)
	if err != nil {
		return err
	}

	var applyTotal, updateTotal time.Duration
	var touchedTotal int
	for i := 0; i < iterations; i++ {
		def := active.Parameters[rng.IntN(len(active.Parameters))]
		if _, err := registry.SetValue(def.ID, def.Min+rng.Float64()*(def.Max-def.Min)); err != nil {
			return err
		}
		values := registry.Snapshot().Values

		t := time.Now()
		touched, err := solver.Update(res, values)
		if err != nil {
			return err
		}
		updateTotal += time.Since(t)
		touchedTotal += touched

		t = time.Now()
		if _, err := solver.Apply(base, m, values); err != nil {
			return err
		}
		applyTotal += time.Since(t)

		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	n := time.Duration(iterations)
	result.MeanApply = applyTotal / n
	result.MeanUpdate = updateTotal / n
	result.MeanTouched = float64(touchedTotal) / float64(iterations)
	result.WithinBudget = result.MeanUpdate < result.FrameBudget

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("Category:        %s (%d vertices, %d influence entries)\n", result.Category, result.Vertices, result.Entries)
	fmt.Printf("Influence build: %s\n", result.Build)
	fmt.Printf("Full solve:      %s mean\n", result.MeanApply)
	fmt.Printf("Update:          %s mean, %.1f vertices touched\n", result.MeanUpdate, result.MeanTouched)
	fmt.Printf("Frame budget:    %s (within: %v)\n", result.FrameBudget, result.WithinBudget)
	return nil
}
