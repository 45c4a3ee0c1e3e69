package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/session"
	"submux/internal/transport"
)

const defaultLocalUser = "local"

type localJobOptions struct {
	user    string
	name    string
	outDir  string
	verbose bool
	prefs   map[session.Field]*string
}

func (o *localJobOptions) bind(cmd *cobra.Command, withEncoding bool) {
	cmd.Flags().StringVar(&o.user, "user", defaultLocalUser, "Session owner used for the local job")
	cmd.Flags().StringVarP(&o.outDir, "out", "o", ".", "Directory that receives the result")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Log pipeline events to stderr")
	if !withEncoding {
		return
	}
	cmd.Flags().StringVarP(&o.name, "name", "n", "", "Output filename (defaults to the video's name)")
	o.prefs = make(map[session.Field]*string, len(session.Fields))
	for _, field := range session.Fields {
		value := new(string)
		o.prefs[field] = value
		flag := strings.ReplaceAll(string(field), "_", "-")
		usage := fmt.Sprintf("Encoding %s (%s)", strings.ReplaceAll(string(field), "_", " "), strings.Join(session.Options(field), ", "))
		cmd.Flags().StringVar(value, flag, "", usage)
	}
}

func (o *localJobOptions) preferences() (session.Preferences, error) {
	var prefs session.Preferences
	for _, field := range session.Fields {
		value := o.prefs[field]
		if value == nil || strings.TrimSpace(*value) == "" {
			continue
		}
		if err := prefs.Set(field, *value); err != nil {
			return session.Preferences{}, err
		}
	}
	return prefs, nil
}

func newMuxCommand(ctx *commandContext) *cobra.Command {
	muxCmd := &cobra.Command{
		Use:   "mux",
		Short: "Combine a local video and subtitle file",
	}
	muxCmd.AddCommand(newLocalMuxCommand(ctx, "soft", jobs.ModeSoftMux, "Attach the subtitle as a selectable track (MKV)"))
	muxCmd.AddCommand(newLocalMuxCommand(ctx, "hard", jobs.ModeHardMux, "Burn the subtitle into the picture (MP4)"))
	return muxCmd
}

func newLocalMuxCommand(ctx *commandContext, use string, mode jobs.Mode, short string) *cobra.Command {
	var opts localJobOptions
	cmd := &cobra.Command{
		Use:   use + " <video> <subtitle>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalJob(cmd, ctx, mode, &opts, args[0], args[1])
		},
	}
	opts.bind(cmd, true)
	return cmd
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var opts localJobOptions
	cmd := &cobra.Command{
		Use:   "extract <video>",
		Short: "Extract the first subtitle stream of a video as SRT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalJob(cmd, ctx, jobs.ModeExtract, &opts, args[0], "")
		},
	}
	opts.bind(cmd, false)
	return cmd
}

// runLocalJob stages copies of the inputs into a fresh session, runs the job
// with console output, and always discards the session afterwards.
func runLocalJob(cmd *cobra.Command, ctx *commandContext, mode jobs.Mode, opts *localJobOptions, video, subtitle string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	user, err := requireArg(opts.user, "--user")
	if err != nil {
		return err
	}
	logger, err := consoleLogger(opts.verbose)
	if err != nil {
		return err
	}
	var prefs session.Preferences
	if opts.prefs != nil {
		if prefs, err = opts.preferences(); err != nil {
			return err
		}
	}

	store, err := session.Open(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := intake.New(cfg, store, logger)
	if _, err := svc.Discard(runCtx, user); err != nil {
		return err
	}
	defer func() {
		_, _ = svc.Discard(context.WithoutCancel(runCtx), user)
	}()

	out := cmd.OutOrStdout()
	if _, err := stageLocalFile(runCtx, svc, user, video, opts.name, out); err != nil {
		return err
	}
	if subtitle != "" {
		if _, err := stageLocalFile(runCtx, svc, user, subtitle, "", out); err != nil {
			return err
		}
	}
	if !prefs.Empty() {
		if err := store.SetPreferences(runCtx, user, prefs); err != nil {
			return fmt.Errorf("save preferences: %w", err)
		}
	}

	orch := jobs.New(cfg, store, transport.NewConsole(out, opts.outDir), logger)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-runCtx.Done():
			_ = orch.Cancel(user)
		case <-done:
		}
	}()

	_, err = orch.Run(context.WithoutCancel(runCtx), user, mode)
	if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
		return context.Canceled
	}
	return err
}

func stageLocalFile(ctx context.Context, svc *intake.Service, user, path, customName string, out io.Writer) (*intake.Result, error) {
	path = strings.TrimSpace(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	result, err := svc.AcceptReader(ctx, user, f, filepath.Base(path), customName)
	if err != nil {
		return nil, err
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "warning: %s: %s\n", filepath.Base(path), warning)
	}
	return result, nil
}
