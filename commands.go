package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/geometry"
	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// Flag values shared by the commands.
var (
	envFile   string
	verbose   bool
	houseKey  string
	sessionID string
	spaceID   string
	resident  string
	outPath   string
	asJSON    bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "spacecopilot",
		Short:        "Decision support for the outdoor spaces of a residential building",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before the process environment")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant as a resident",
		Args:  cobra.NoArgs,
		RunE:  runChatCommand,
	}
	chat.Flags().StringVar(&houseKey, "house", "", "house key of the resident (e.g. H5)")
	chat.Flags().StringVar(&sessionID, "session", "", "resume a conversation session")

	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the building database or the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand,
	}
	ask.Flags().StringVar(&sessionID, "session", "", "conversation session for knowledge answers")

	negotiate := &cobra.Command{
		Use:   "negotiate [message]",
		Short: "Suggest and run negotiation actions for a resident",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runNegotiateCommand,
	}
	negotiate.Flags().StringVar(&houseKey, "house", "", "house key of the resident")
	negotiate.Flags().BoolVar(&asJSON, "json", false, "print the reply as JSON")

	suggest := &cobra.Command{
		Use:   "suggest-geometry",
		Short: "Suggest geometric variations of a space for one resident",
		Args:  cobra.NoArgs,
		RunE:  runSuggestGeometryCommand,
	}
	suggest.Flags().StringVar(&spaceID, "space", "", "outdoor space id (e.g. O3)")
	suggest.Flags().StringVar(&resident, "resident", "", "resident house key")

	assign := &cobra.Command{
		Use:   "assign-activities",
		Short: "Assign the best activity to every outdoor space",
		Args:  cobra.NoArgs,
		RunE:  runAssignActivitiesCommand,
	}
	assign.Flags().StringVar(&spaceID, "space", "", "assign one space only and print it")
	assign.Flags().StringVarP(&outPath, "out", "o", "", "output CSV (default DATA_ASSIGNMENTS_CSV)")

	voting := &cobra.Command{
		Use:   "voting-weights",
		Short: "Compute voting weights from distances, personas and persona preferences",
		Args:  cobra.NoArgs,
		RunE:  runVotingWeightsCommand,
	}
	voting.Flags().StringVarP(&outPath, "out", "o", "", "output CSV (default DATA_VOTING_CSV)")

	root.AddCommand(chat, ask, negotiate, suggest, assign, voting)
	return root
}

// withApp loads configuration, opens the app and closes it after run.
func withApp(cmd *cobra.Command, quiet bool, run func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Quiet: quiet && !verbose})

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logx.Warn().Err(err).Msg("Error releasing resources")
		}
	}()
	return run(ctx, a)
}

func runChatCommand(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, true, func(ctx context.Context, a *app) error {
		runner, err := a.chatRunner(ctx)
		if err != nil {
			return err
		}
		if err := a.watchData(ctx); err != nil {
			logx.Warn().Err(err).Msg("Data files are not watched")
		}

		session := sessionID
		if session == "" {
			session = uuid.NewString()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s. Type 'exit' to quit, '/clear' to forget the conversation.\n", session)

		return chatLoop(ctx, cmd.InOrStdin(), out, func(line string) string {
			if line == "/clear" {
				if err := a.history.Clear(ctx, session); err != nil {
					logx.Warn().Err(err).Str("session_id", session).Msg("Could not clear history")
				}
				return "Conversation cleared."
			}
			reply := runner.Invoke(ctx, model.ChatInput{SessionID: session, HouseKey: houseKey, Message: line})
			return reply.Result
		})
	})
}

// chatLoop reads one message per line and prints each answer until EOF,
// "exit" or cancellation.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, answer func(string) string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		}
		fmt.Fprintln(out, answer(line))
		if ctx.Err() != nil {
			return nil
		}
	}
}

func runAskCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(ctx context.Context, a *app) error {
		questions, err := a.questionAnswerer(ctx)
		if err != nil {
			return err
		}
		session := sessionID
		if session == "" {
			session = uuid.NewString()
		}
		fmt.Fprintln(cmd.OutOrStdout(), questions.Answer(ctx, session, strings.Join(args, " ")))
		return nil
	})
}

func runNegotiateCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(ctx context.Context, a *app) error {
		negotiator, err := a.negotiator(ctx)
		if err != nil {
			return err
		}
		outcome := negotiator.Negotiate(ctx, houseKey, strings.Join(args, " "))
		if !asJSON {
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Dispatch.Text())
			return nil
		}
		return printJSON(cmd.OutOrStdout(), model.ChatReply{
			Intent: model.IntentNegotiate,
			Result: outcome.Dispatch.Text(),
			Params: outcome.Request.Parameters.Map(),
		})
	})
}

func runSuggestGeometryCommand(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, true, func(ctx context.Context, a *app) error {
		advisor, err := a.geometryAdvisor(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), advisor.Suggest(ctx, spaceID, resident))
	})
}

func runAssignActivitiesCommand(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app) error {
		assigner, err := a.assigner(ctx)
		if err != nil {
			return err
		}
		if spaceID != "" {
			assignment, err := assigner.Assign(ctx, spaceID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), assignment)
		}

		assignments, err := assigner.AssignAll(ctx)
		if err != nil {
			return err
		}
		path := outPath
		if path == "" {
			path = a.cfg.Dataset.AssignmentsCSV
		}
		if err := writeFile(path, func(w io.Writer) error {
			return dataset.WriteAssignments(w, geometry.Rows(assignments))
		}); err != nil {
			return err
		}

		assigned := 0
		for _, as := range assignments {
			if as.Activity != nil {
				assigned++
			}
		}
		a.store.Reload()
		fmt.Fprintf(cmd.OutOrStdout(), "Assigned %d of %d spaces, written to %s\n", assigned, len(assignments), path)
		return nil
	})
}

func runVotingWeightsCommand(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, false, func(ctx context.Context, a *app) error {
		data, err := a.store.Load(ctx)
		if err != nil {
			return err
		}
		prefs, err := dataset.ReadPersonaActivitiesFile(a.cfg.Dataset.PersonaActivities)
		if err != nil {
			return fmt.Errorf("read persona activities: %w", err)
		}
		votes := dataset.ComputeVotingWeights(data.Distances, data.Personas, prefs)

		path := outPath
		if path == "" {
			path = a.cfg.Dataset.VotingCSV
		}
		if err := writeFile(path, func(w io.Writer) error {
			return dataset.WriteVotes(w, votes)
		}); err != nil {
			return err
		}
		a.store.Reload()
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d voting weights to %s\n", len(votes), path)
		return nil
	})
}

// writeFile creates path and its parent directories and fills it with
// write.
func writeFile(path string, write func(io.Writer) error) error {
	if path == "" {
		return fmt.Errorf("no output path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
