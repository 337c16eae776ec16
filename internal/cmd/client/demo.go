package client

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rzbill/tbx/pkg/summary"
)

// demoObject is written with AddJSONText.
type demoObject struct {
	Int  int    `json:"int"`
	Text string `json:"text"`
}

func randomImage(rng *rand.Rand, shape ...int) summary.Tensor {
	t := summary.NewTensor(shape...)
	for i := range t.Data {
		t.Data[i] = rng.Float64()
	}
	return t
}

func randomNormal(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

// WriteDemo writes one of every summary kind to logdir, mirroring a typical
// training script.
func WriteDemo(fs afero.Fs, logdir string, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	w, err := summary.NewWriter(logdir, summary.WithFs(fs))
	if err != nil {
		return err
	}

	for i := 0; i < 100; i++ {
		if err := w.AddScalar("scalar/scalar", float64(i), summary.Step(int64(i)), summary.WallTime(time.Unix(int64(i), 0))); err != nil {
			return err
		}
	}
	for i := 0; i < 100; i++ {
		x := float64(i) / 30
		vals := map[string]float64{"sin": math.Sin(x), "cos": math.Cos(x)}
		if err := w.AddScalars("scalar/scalars", vals, summary.Step(int64(i))); err != nil {
			return err
		}
	}

	for i := 0; i < 3; i++ {
		if err := w.AddImage("image", randomImage(rng, 128, 128, 3), summary.ChannelsLast, summary.Step(int64(i))); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		if err := w.AddImages("images", randomImage(rng, 5, 128, 128, 3), summary.ChannelsLast, summary.Step(int64(i))); err != nil {
			return err
		}
	}

	for i := 0; i < 3; i++ {
		if err := w.AddText("text", fmt.Sprintf("step: %d", i), false, summary.Step(int64(i))); err != nil {
			return err
		}
	}
	if err := w.AddText("text_with_newlines", "text\nwith\nnewlines", true); err != nil {
		return err
	}
	if err := w.AddJSONText("json", demoObject{Int: 42, Text: "hoge"}); err != nil {
		return err
	}

	matrix := make([][]float64, 100)
	labels := make([]string, 100)
	for i := range matrix {
		matrix[i] = randomNormal(rng, 10)
		labels[i] = strconv.Itoa(rng.IntN(10))
	}
	if err := w.AddEmbedding("embed", matrix, labels); err != nil {
		return err
	}

	for i := 0; i < 3; i++ {
		if err := w.AddHistogram("hist", randomNormal(rng, 1024), summary.Step(int64(i))); err != nil {
			return err
		}
	}
	conv := summary.Parameters{
		"filter": randomNormal(rng, 3*3*32*64),
		"bias":   make([]float64, 64),
	}
	if err := w.AddHistograms("conv", conv); err != nil {
		return err
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return w.Close()
}

// NewDemoCommand constructs the `demo` command.
func NewDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write sample scalars, images, text, histograms and an embedding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("out")
			seed, _ := cmd.Flags().GetUint64("seed")
			clean, _ := cmd.Flags().GetBool("clean")
			fs := afero.NewOsFs()
			if clean {
				if err := fs.RemoveAll(dir); err != nil {
					return err
				}
			}
			if err := WriteDemo(fs, dir, seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote demo run to %s\n", dir)
			return nil
		},
	}
	cmd.Flags().String("out", filepath.Join(os.TempDir(), "tensorboardx"), "Output log directory")
	cmd.Flags().Uint64("seed", 1, "Random seed")
	cmd.Flags().Bool("clean", true, "Remove the output directory first")
	return cmd
}
