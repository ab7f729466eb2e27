package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <landmarks.json>",
	Short: "Compute the anchor frame of a landmark capture",
	Long: `Reads a landmark set ([[x,y,z], ...] or [{"x":..,"y":..,"z":..}, ...];
"-" reads stdin) and prints its anchor frame: origin, rotation and the scale
that maps the interocular distance to 1.

With --reference the frame is compared to a second capture and the scale
ratio and rotation angle between the two are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)

	normalizeCmd.Flags().String("reference", "", "Second landmark file to compare the frame against")
	normalizeCmd.Flags().Bool("landmarks", false, "Include the normalized landmarks in JSON output")
	normalizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// NormalizeResult is the JSON output of the normalize command.
type NormalizeResult struct {
	Points      int            `json:"points"`
	Frame       landmark.Frame `json:"frame"`
	Interocular float64        `json:"interocular"`
	Landmarks   landmark.Set   `json:"landmarks,omitempty"`
	ScaleRatio  *float64       `json:"scaleRatio,omitempty"`
	AngleDeg    *float64       `json:"angleDegrees,omitempty"`
}

func readCapture(path string) (*landmark.Capture, int, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, fmt.Errorf("opening landmarks: %w", err)
		}
		defer f.Close()
		r = f
	}
	set, err := landmark.Decode(r)
	if err != nil {
		return nil, 0, err
	}
	capture, err := landmark.NewCapture(set, time.Now())
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return capture, len(set), nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	capture, points, err := readCapture(args[0])
	if err != nil {
		return err
	}

	frame := capture.Frame()
	result := NormalizeResult{Points: points, Frame: frame, Interocular: frame.Interocular()}
	if mustGetBool(cmd, "landmarks") {
		result.Landmarks = capture.Landmarks()
	}
	if ref := mustGetString(cmd, "reference"); ref != "" {
		other, _, err := readCapture(ref)
		if err != nil {
			return err
		}
		ratio, angle := frame.Delta(other.Frame())
		deg := angle * 180 / math.Pi
		result.ScaleRatio = &ratio
		result.AngleDeg = &deg
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(result)
	}

	fmt.Printf("Points:      %d\n", result.Points)
	fmt.Printf("Origin:      %.6f %.6f %.6f\n", frame.Origin[0], frame.Origin[1], frame.Origin[2])
	fmt.Printf("Interocular: %.6f (scale %.6f)\n", result.Interocular, frame.Scale)
	fmt.Println("Rotation:")
	r := frame.Rotation
	for i := 0; i < 9; i += 3 {
		fmt.Printf("  % .6f % .6f % .6f\n", r[i], r[i+1], r[i+2])
	}
	if result.ScaleRatio != nil {
		fmt.Printf("\nAgainst reference:\n")
		fmt.Printf("  Scale ratio: %.6f\n", *result.ScaleRatio)
		fmt.Printf("  Rotation:    %.4f°\n", *result.AngleDeg)
	}
	return nil
}
