// Package chatcmder provides the chat command, an interactive terminal
// client of a running chat relay.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const (
	clientIDHeader = "X-Client-ID"
	cliUserPrefix  = "cli_"
)

type chatCommander struct {
	target    string
	userID    string
	fresh     bool
	markdown  bool
	debug     bool
	configDir string

	client *http.Client
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with a running chat relay.

Replies stream into the terminal as the bot writes them. The conversation
is saved to .chatrelay/session.json after every turn and resumed the next
time "chatrelay chat" runs, so the bot keeps the context of the last few
messages.

Commands inside the session:
  /new     Forget the saved conversation and start over
  /exit    Quit (Ctrl+D also works)

Examples:
  chatrelay chat
  chatrelay chat --target http://relay.internal:5000
  chatrelay chat --new --markdown`

const chatShortDesc string = "Chat with a running relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("target") {
				cmder.target = cfg.Client.Target
			}
			if !cmd.Flags().Changed("markdown") {
				cmder.markdown = term.IsTerminal(int(os.Stdout.Fd()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.target, "target", "t", defaults.Client.Target, "Chat relay URL")
	cmd.Flags().StringVarP(&cmder.userID, "user-id", "u", "", "User id to chat as (default: saved or generated)")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming the saved one")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each finished answer as markdown (default: on for terminals)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	if c.client == nil {
		// the relay bounds every turn, so no client-side timeout
		c.client = &http.Client{}
	}

	ddm := dotdir.NewManager()
	if c.fresh {
		if err := ddm.ClearSession(c.configDir); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
	}

	session, err := ddm.LoadSession(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	fmt.Fprintln(out)
	if session != nil && session.ConversationID != "" {
		fmt.Fprintf(out, "  %s Resuming conversation %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(session.ConversationID, 20)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Turns))),
		)
	} else {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	session = c.ensureSession(session)

	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Relay:"), cliui.NameStyle.Render(c.target))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(out)
			return nil
		case "/new":
			if err := ddm.ClearSession(c.configDir); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			session = c.ensureSession(nil)
			fmt.Fprintf(out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		answer, convID, err := c.sendAndStream(ctx, out, session, input)
		if err != nil {
			fmt.Fprintf(out, "\n  %s %v\n\n", cliui.FailMark, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if convID != "" {
			session.ConversationID = convID
		}
		session.Append("user", input)
		session.Append("assistant", answer)
		if err := ddm.SaveSession(session, c.configDir); err != nil {
			c.logger.Warn("could not save session", "error", err)
		}

		fmt.Fprint(out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// ensureSession fills in the user id, preferring the flag, then the saved
// one, then a fresh random id.
func (c *chatCommander) ensureSession(s *dotdir.SessionState) *dotdir.SessionState {
	if s == nil {
		s = &dotdir.SessionState{}
	}
	switch {
	case c.userID != "":
		s.UserID = c.userID
	case s.UserID == "":
		s.UserID = cliUserPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return s
}

// sendAndStream posts one turn to the relay and writes the answer to out as
// it arrives. It returns the full answer and the conversation id reported
// by the relay.
func (c *chatCommander) sendAndStream(ctx context.Context, out io.Writer, session *dotdir.SessionState, input string) (string, string, error) {
	req := relay.ChatRequest{
		Message:        input,
		UserID:         session.UserID,
		ConversationID: session.ConversationID,
	}
	for _, t := range session.Turns {
		req.History = append(req.History, relay.HistoryMessage{Role: t.Role, Content: t.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		"target", c.target,
		"conversation_id", session.ConversationID,
		"history", len(req.History),
	)

	url := strings.TrimRight(c.target, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set(clientIDHeader, session.UserID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return "", "", fmt.Errorf("relay returned %d: %s", resp.StatusCode, e.Error)
		}
		return "", "", fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	return c.readStream(out, resp.Body)
}

func (c *chatCommander) readStream(out io.Writer, body io.Reader) (string, string, error) {
	var (
		answer strings.Builder
		convID string
	)

	fmt.Fprint(out, cliui.AssistantPrompt)

	reader := sse.NewReader(body)
	for {
		rec, err := reader.Next()
		if err != nil {
			return "", "", fmt.Errorf("reading stream: %w", err)
		}
		if rec == nil {
			return "", "", errors.New("stream ended before the answer finished")
		}

		var ev relay.Event
		if err := json.Unmarshal(rec.Data, &ev); err != nil {
			c.logger.Debug("skipping undecodable event", "error", err)
			continue
		}

		switch ev.Kind {
		case relay.KindInit:
			convID = ev.ConversationID

		case relay.KindDelta:
			answer.WriteString(ev.Content)
			if !c.markdown {
				fmt.Fprint(out, ev.Content)
			}

		case relay.KindDone:
			if ev.ConversationID != "" {
				convID = ev.ConversationID
			}
			if c.markdown {
				c.printMarkdown(out, answer.String())
			}
			return answer.String(), convID, nil

		case relay.KindError:
			if ev.Status != 0 {
				return "", "", fmt.Errorf("%s (status %d)", ev.Message, ev.Status)
			}
			return "", "", errors.New(ev.Message)
		}
	}
}

func (c *chatCommander) printMarkdown(out io.Writer, content string) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w - 4
	}

	rendered, err := cliui.RenderMarkdown(content, width)
	if err != nil {
		c.logger.Debug("markdown rendering failed", "error", err)
	}
	fmt.Fprint(out, "\n"+strings.TrimRight(rendered, "\n"))
}
