package main

import (
	"fmt"
	"os"
	"time"

	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/export"
	"dot-pattern-editor/internal/maze"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "dotgrid",
		Short:         "pixel grid tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(newMazeCmd())
	return rootCmd
}

func newMazeCmd() *cobra.Command {
	var (
		size    string
		seed    uint64
		scale   int
		out     string
		maxSize int
	)
	cmd := &cobra.Command{
		Use:   "maze",
		Short: "generate a maze and write it as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := editor.New(editor.WithMaxSize(maxSize), editor.WithRand(maze.NewRand(seed)))
			if err := e.SubmitGridSize(size); err != nil {
				return err
			}
			if err := e.GenerateMaze(); err != nil {
				return err
			}
			snap, err := e.Snapshot()
			if err != nil {
				return err
			}
			data, err := export.Bytes(snap, scale)
			if err != nil {
				return err
			}
			if out == "" {
				out = export.FileName(snap.Size(), time.Now())
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, scale %d)\n", out, snap.Size(), snap.Size(), scale)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "grid side length")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = random)")
	cmd.Flags().IntVar(&scale, "scale", 1, "pixels per cell")
	cmd.Flags().StringVar(&out, "out", "", "output file (default dot_pattern_<N>x<N>_<date>.png)")
	cmd.Flags().IntVar(&maxSize, "max-size", editor.DefaultMaxSize, "largest accepted side length")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}
