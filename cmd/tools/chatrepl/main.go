package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-tavern/chatbot/internal/app"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	chatservice "github.com/zhouzirui/z-tavern/chatbot/internal/service/chat"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		lang       string
	)

	cmd := &cobra.Command{
		Use:           "chatrepl",
		Short:         "Chat with the configured model from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, configPath)
			if err != nil {
				return err
			}
			if lang == "" {
				lang = a.Config.Chat.DefaultLanguage
			}

			session, err := a.Chat.CreateSession(ctx, lang)
			if err != nil {
				return err
			}
			defer a.Chat.CloseSession(context.Background(), session.ID())

			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "reply language (english|spanish)")
	return cmd
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer, session *chatservice.Session) error {
	fmt.Fprintf(out, "language: %s  (/lang <id>, /history, /quit)\n", session.Language())

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
		case line == "/quit":
			return nil
		case line == "/history":
			printTranscript(out, session.Transcript())
		case strings.HasPrefix(line, "/lang"):
			if err := session.SetLanguage(strings.TrimSpace(strings.TrimPrefix(line, "/lang"))); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "language: %s\n", session.Language())
		default:
			reply, err := session.OnSubmit(ctx, line)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "assistant: %s\n", reply)
		}
	}
}

func printTranscript(out io.Writer, turns []chat.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "(no messages yet)")
		return
	}
	for _, turn := range turns {
		fmt.Fprintf(out, "%s: %s\n", turn.Role, turn.Content)
	}
}
