package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/offlineqa/internal/bootstrap"
	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/domain/smalltalk"
)

const chatLongDesc string = `Start an interactive chat with the offline assistant.

Commands:
  /lang en|hi   Switch greeting language
  /clear        Start a fresh conversation
  /exit         Quit (also /quit or Ctrl-D)`

type chatCommander struct {
	opts     *rootOptions
	language string
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	cmder := &chatCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := cmder.opts.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("lang") {
				cmder.language = cfg.Chat.DefaultLanguage
			}
			rt, cleanup, err := bootstrap.NewRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			stats := rt.Chatbot.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n",
				dimStyle.Render(fmt.Sprintf("%d questions loaded, model %s, index %s", stats.Records, stats.Model, stats.Backend)))
			return newChatSession(rt.Conversation, cmder.language).run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cmder.language, "lang", "l", "en", "Reply language for greetings (en or hi)")

	return cmd
}

// chatSession is the terminal REPL state.
type chatSession struct {
	svc       conversation.Service
	language  smalltalk.Language
	sessionID string
}

func newChatSession(svc conversation.Service, language string) *chatSession {
	return &chatSession{svc: svc, language: smalltalk.ParseLanguage(language)}
}

func (s *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s%s\n\n", assistantPrompt, conversation.WelcomeMessage())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := s.command(ctx, out, line); done {
				return nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.svc.Reply(ctx, conversation.Request{
			Query:     line,
			Language:  string(s.language),
			SessionID: s.sessionID,
		})
		if err != nil {
			fmt.Fprintf(out, "%s %s\n\n", failMark, err)
			continue
		}
		s.sessionID = resp.SessionID
		s.printReply(out, resp)
	}
}

// command handles a slash command and reports whether the REPL should stop.
func (s *chatSession) command(ctx context.Context, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/clear":
		if s.sessionID == "" {
			fmt.Fprintf(out, "%s%s\n\n", assistantPrompt, conversation.WelcomeMessage())
			return false
		}
		session, err := s.svc.Clear(ctx, s.sessionID)
		if err != nil {
			fmt.Fprintf(out, "%s %s\n\n", failMark, err)
			return false
		}
		for _, msg := range session.Messages {
			fmt.Fprintf(out, "%s%s\n\n", assistantPrompt, msg.Content)
		}
	case "/lang":
		if len(fields) < 2 {
			fmt.Fprintf(out, "%s\n\n", dimStyle.Render("language: "+string(s.language)))
			return false
		}
		s.language = smalltalk.ParseLanguage(fields[1])
		fmt.Fprintf(out, "%s\n\n", dimStyle.Render("language set to "+string(s.language)))
	default:
		fmt.Fprintf(out, "%s\n\n", dimStyle.Render("unknown command "+fields[0]+"; try /lang, /clear or /exit"))
	}
	return false
}

func (s *chatSession) printReply(out io.Writer, resp conversation.Response) {
	fmt.Fprintf(out, "%s%s\n", assistantPrompt, answerStyle.Render(resp.Answer))
	if resp.MatchedQuestion != "" && resp.Confidence != nil {
		fmt.Fprintf(out, "%s\n", dimStyle.Render(fmt.Sprintf("matched %q (%s)", resp.MatchedQuestion, formatPercent(*resp.Confidence))))
	}
	if resp.LowConfidence {
		fmt.Fprintf(out, "%s\n", warnStyle.Render(resp.Warning))
	}
	fmt.Fprintln(out)
}
