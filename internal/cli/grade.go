package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/config"
	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/export"
	"emprendo-intake/internal/grading"
)

type gradeFlags struct {
	pendingOnly bool
	dryRun      bool
	parallelism int
}

func (f *gradeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.pendingOnly, "pending-only", false, "only applications without a recommendation")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "compute grades without writing them")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 0, "rows graded concurrently (default from config)")
}

func (f *gradeFlags) options() app.GradeOptions {
	return app.GradeOptions{
		PendingOnly: f.pendingOnly,
		DryRun:      f.dryRun,
		Parallelism: f.parallelism,
	}
}

// NewGradeCmd ranks the stored applications of a form.
func NewGradeCmd(configPath *string) *cobra.Command {
	var flags gradeFlags
	cmd := &cobra.Command{
		Use:   "grade <form-slug>",
		Short: "Rank stored applications of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *configPath, func(d *deps) error {
				progress, err := d.service.GradeForm(cmd.Context(), args[0], flags.options())
				report(progress)
				return err
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// NewReviewCmd applies the hybrid grader, external scoring included, to the
// stored applications of a stage-2 form.
func NewReviewCmd(configPath *string) *cobra.Command {
	var flags gradeFlags
	cmd := &cobra.Command{
		Use:   "review <form-slug>",
		Short: "Review stage-2 applications with external text scoring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *configPath, func(d *deps) error {
				progress, err := d.service.ReviewForm(cmd.Context(), args[0], flags.options())
				report(progress)
				return err
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// NewGradeCSVCmd grades rows of an exported CSV without touching storage.
func NewGradeCSVCmd(configPath *string) *cobra.Command {
	var (
		track       string
		input       string
		output      string
		parallelism int
	)
	cmd := &cobra.Command{
		Use:   "grade-csv",
		Short: "Grade a CSV of stage-2 rows and write the scored CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := grading.ParseTrack(track)
			if !ok {
				return fmt.Errorf("unknown track %q", track)
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			in, err := os.Open(input)
			if err != nil {
				return err
			}
			defer in.Close()
			out, closeOut, err := openOutput(output)
			if err != nil {
				return err
			}
			defer closeOut()

			grader := grading.NewBulkGrader(t, scoringClients(cfg))
			progress, err := export.GradeCSV(cmd.Context(), in, out, grader, nil, grading.BatchOptions{Parallelism: parallelism})
			report(progress)
			return err
		},
	}
	cmd.Flags().StringVar(&track, "track", string(grading.TrackEntrepreneur), "emprendedora or mentora")
	cmd.Flags().StringVar(&input, "in", "", "input CSV")
	cmd.Flags().StringVar(&output, "out", "-", "output CSV, - for stdout")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "rows graded concurrently")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// NewExportCmd writes the applications of a form as CSV.
func NewExportCmd(configPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <form-slug>",
		Short: "Export the applications of a form as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *configPath, func(d *deps) error {
				fd, err := d.forms.GetForm(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				apps, err := d.apps.ListByForm(cmd.Context(), fd.ID, false)
				if err != nil {
					return err
				}
				out, closeOut, err := openOutput(output)
				if err != nil {
					return err
				}
				defer closeOut()
				if err := export.WriteCSV(out, fd, apps); err != nil {
					return err
				}
				log.Printf("exported %d applications of %s", len(apps), fd.Slug)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&output, "out", "-", "output CSV, - for stdout")
	return cmd
}

func withDeps(ctx context.Context, configPath string, fn func(*deps) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("close %s: %v", path, err)
		}
	}, nil
}

func report(p domain.RunProgress) {
	log.Printf("run %s on %s: %d/%d done, %d failed", p.RunID, p.FormSlug, p.Done, p.Total, p.Failed)
	for _, f := range p.Failures {
		log.Printf("  %s: %s", f.Key, f.Error)
	}
}
