package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/portrait-studio/internal/cli"
	"github.com/fpang/portrait-studio/internal/config"
	"github.com/fpang/portrait-studio/internal/generation"
	"github.com/fpang/portrait-studio/internal/imagestore"
	"github.com/fpang/portrait-studio/internal/lambdaboot"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/pipeline"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/fpang/portrait-studio/internal/store"
	"github.com/fpang/portrait-studio/internal/studio"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- edit ---

func newEditCmd() *cobra.Command {
	var (
		imageFlag       string
		studioFlag      string
		paramFlags      []string
		instructionFlag string
		allowFlag       string
		preserveFlag    string
		refFlags        []string
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Run one edit through perception, generation and the quality gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			initStart := time.Now()
			cfg := loadConfig()

			t, err := studio.ParseType(studioFlag)
			if err != nil {
				return err
			}
			input, err := cli.ResolveImagePath(imageFlag)
			if err != nil {
				return err
			}
			params, err := cli.ParseParams(paramFlags)
			if err != nil {
				return err
			}
			if instructionFlag != "" {
				params[studio.ParamInstruction] = instructionFlag
			}
			if t == studio.Freeform && params.Get(studio.ParamInstruction, "") == "" {
				instr, err := cli.PromptForInstruction(os.Stdin, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				params[studio.ParamInstruction] = instr
			}
			allowed, err := region.ParseList(allowFlag)
			if err != nil {
				return fmt.Errorf("--allow: %w", err)
			}
			preserve, err := region.ParseList(preserveFlag)
			if err != nil {
				return fmt.Errorf("--preserve: %w", err)
			}
			refs := make([]string, 0, len(refFlags))
			for _, r := range refFlags {
				resolved, err := cli.ResolveImagePath(r)
				if err != nil {
					return fmt.Errorf("--ref: %w", err)
				}
				refs = append(refs, resolved)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			env, err := newEnvironment(ctx, cfg)
			if err != nil {
				return err
			}
			defer env.runs.Close()

			lambdaboot.StartupLog("studio-cli", initStart).
				Endpoint("perception", cfg.Perception.BaseURL).
				SQLite("history", cfg.Storage.SQLitePath).
				S3Bucket("images", cfg.Storage.Bucket).
				Config("model", cfg.Generation.Model).
				Config("studio", string(t)).
				Log()

			res, err := env.orchestrator.Run(ctx, pipeline.EditRequest{
				Studio:        t,
				InputImageRef: input,
				Params:        params,
				Overrides:     studio.Overrides{ExtraAllowed: allowed, ExtraPreserve: preserve},
				References:    refs,
			})
			if err != nil {
				return err
			}

			var info *imagestore.Info
			if obj, err := env.images.Get(ctx, input); err == nil {
				if described, err := imagestore.Describe(obj.Data); err == nil {
					info = &described
				}
			}
			rec, err := store.NewRunRecord(res, info)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to build run record")
			} else if err := env.runs.PutRun(context.WithoutCancel(ctx), rec); err != nil {
				log.Warn().Err(err).Msg("Failed to save run history")
			}

			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), res)
			}
			cli.PrintResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Input portrait (local path or s3:// reference)")
	cmd.Flags().StringVarP(&studioFlag, "studio", "s", "", "Studio: garment, hairstyle, accessories, background, brand, freeform")
	cmd.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "Studio parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&instructionFlag, "instruction", "", "Freeform edit instruction")
	cmd.Flags().StringVar(&allowFlag, "allow", "", "Extra editable regions, comma separated")
	cmd.Flags().StringVar(&preserveFlag, "preserve", "", "Extra preserved regions, comma separated")
	cmd.Flags().StringArrayVar(&refFlags, "ref", nil, "Reference image (repeatable)")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("studio")
	return cmd
}

// environment holds the collaborators of one CLI edit.
type environment struct {
	orchestrator *pipeline.Orchestrator
	images       imagestore.Store
	runs         *store.SQLiteStore
}

func newEnvironment(ctx context.Context, cfg config.Config) (*environment, error) {
	router := &imagestore.Router{
		Local:  imagestore.NewLocalStore(cfg.Storage.LocalRoot),
		Output: imagestore.NewLocalStore(cfg.Storage.LocalRoot),
	}
	if cfg.Storage.Bucket != "" {
		aws := lambdaboot.InitAWS()
		s3s := lambdaboot.InitS3(aws.Config, cfg.Storage.Bucket)
		router.S3 = imagestore.NewS3Store(s3s.Client, s3s.Bucket)
	}

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	perceiver := perception.NewPerceiver(
		perception.NewHTTPClient(cfg.Perception.BaseURL, os.Getenv("STUDIO_PERCEPTION_API_KEY"), cfg.Perception.Timeout),
		cfg.Pipeline.MinFaceConfidence,
	)
	generator := generation.NewGeminiGenerator(cli.InitGeminiClient(ctx), router, cfg.GeminiConfig())

	return &environment{
		orchestrator: pipeline.New(perceiver, generator, cfg.PipelineOptions()),
		images:       router,
		runs:         runs,
	}, nil
}

// --- check ---

func newCheckCmd() *cobra.Command {
	var instructionFlag string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Screen a freeform instruction without editing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructionFlag == "" {
				instr, err := cli.PromptForInstruction(os.Stdin, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				instructionFlag = instr
			}
			analysis := studio.AnalyzeInstruction(instructionFlag)
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), analysis)
			}
			cli.PrintAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
	cmd.Flags().StringVar(&instructionFlag, "instruction", "", "Instruction to screen")
	return cmd
}

// --- scope ---

func newScopeCmd() *cobra.Command {
	var (
		studioFlag      string
		instructionFlag string
		warpFlag        float64
		edgeFlag        float64
		allowFlag       string
		preserveFlag    string
	)
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Print the edit scope, preserve map and negative prompt for a studio",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := studio.ParseType(studioFlag)
			if err != nil {
				return err
			}
			ctrl, err := studio.New(t)
			if err != nil {
				return err
			}
			allowed, err := region.ParseList(allowFlag)
			if err != nil {
				return fmt.Errorf("--allow: %w", err)
			}
			preserve, err := region.ParseList(preserveFlag)
			if err != nil {
				return fmt.Errorf("--preserve: %w", err)
			}
			params := studio.Params{}
			if instructionFlag != "" {
				params[studio.ParamInstruction] = instructionFlag
			}

			in := perception.Output{Risk: perception.GeometryRisk{WarpRisk: warpFlag, EdgeRisk: edgeFlag}}
			setup, err := ctrl.ComputeEditScope(in, params, studio.Overrides{ExtraAllowed: allowed, ExtraPreserve: preserve})
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), setup.Plan)
			}
			cli.PrintScope(cmd.OutOrStdout(), t, setup)
			return nil
		},
	}
	cmd.Flags().StringVarP(&studioFlag, "studio", "s", "", "Studio name")
	cmd.Flags().StringVar(&instructionFlag, "instruction", "", "Freeform instruction (freeform studio only)")
	cmd.Flags().Float64Var(&warpFlag, "warp-risk", 0, "Simulated geometric warp risk in [0,1]")
	cmd.Flags().Float64Var(&edgeFlag, "edge-risk", 0, "Simulated edge risk in [0,1]")
	cmd.Flags().StringVar(&allowFlag, "allow", "", "Extra editable regions, comma separated")
	cmd.Flags().StringVar(&preserveFlag, "preserve", "", "Extra preserved regions, comma separated")
	cmd.MarkFlagRequired("studio")
	return cmd
}

// --- runs ---

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the local run history",
	}

	var limitFlag int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := openHistory()
			if err != nil {
				return err
			}
			defer runs.Close()
			recs, err := runs.ListRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			w := cmd.OutOrStdout()
			for _, r := range recs {
				fmt.Fprintf(w, "%s  %-11s  %-11s  %.3f  %s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Studio, r.Status, r.BestComposite, r.RunID)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of runs to show")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := openHistory()
			if err != nil {
				return err
			}
			defer runs.Close()
			rec, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			if jsonFlag {
				snapshot, err := rec.InputPerception()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					*store.RunRecord
					InputPerception *perception.Output `json:"inputPerception,omitempty"`
				}{rec, snapshot})
			}
			cli.PrintRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func openHistory() (*store.SQLiteStore, error) {
	cfg := loadConfig()
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return runs, nil
}
