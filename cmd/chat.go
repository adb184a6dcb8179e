package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/killallgit/vivu/pkg/api"
	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/models"
	"github.com/killallgit/vivu/pkg/render"
	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/tokens"
	"github.com/killallgit/vivu/pkg/transport"
	"github.com/killallgit/vivu/pkg/typing"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("prompt", "p", "", "send one message and exit")
	cmd.Flags().Int64("chat-id", 0, "continue a stored chat")
	cmd.Flags().Bool("no-save", false, "do not store the conversation in the backend")
	cmd.Flags().Bool("no-typing", false, "show answers as they arrive instead of typing them out")

	cmd.Flags().Bool("show-thinking", true, "show model reasoning")
	viper.BindPFlag("show_thinking", cmd.Flags().Lookup("show-thinking"))
}

// session is everything one chat run needs.
type session struct {
	cfg        *config.Config
	controller *controllers.ChatController
	lister     models.Lister
	formatter  *render.Formatter
	out        io.Writer
	errOut     io.Writer
	live       bool
	width      int
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := logger.WithComponent("chat_cmd")

	if noTyping, _ := cmd.Flags().GetBool("no-typing"); noTyping {
		cfg.Typing.Enabled = false
	}

	tr, err := transport.FromConfig(cfg)
	if err != nil {
		return err
	}
	manager := stream.NewManager(tr, streamOptions(cfg)...)
	defer manager.CancelAll()

	var opts []controllers.ChatOption
	store := newAPIClient(cfg)
	noSave, _ := cmd.Flags().GetBool("no-save")
	if cfg.Stream.Transport != transport.KindOllama && !noSave {
		opts = append(opts, controllers.WithStore(store))
	}
	chatID, _ := cmd.Flags().GetInt64("chat-id")
	if chatID > 0 {
		opts = append(opts, controllers.WithStore(store), controllers.WithChatID(chatID))
	}

	controller := controllers.NewChatController(manager, cfg.DefaultModel(), opts...)
	if err := controller.LoadHistory(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load chat %d: %w", chatID, err)
	}

	interactive, width := render.Terminal(os.Stdout)

	s := &session{
		cfg:        cfg,
		controller: controller,
		lister:     modelLister(cfg),
		formatter:  newFormatter(interactive, width, cfg.DefaultModel()),
		out:        os.Stdout,
		errOut:     cmd.ErrOrStderr(),
		live:       interactive,
		width:      width,
	}

	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" && len(args) > 0 {
		prompt = strings.Join(args, " ")
	}

	log.Debug("Starting chat", "model", controller.Model(), "chat_id", chatID, "one_shot", prompt != "")

	if prompt != "" {
		return s.send(cmd.Context(), prompt)
	}
	return s.repl(cmd.Context(), cmd.InOrStdin())
}

// send streams one reply. Ctrl-C stops the reply, not the program.
func (s *session) send(parent context.Context, content string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	view := s.newView()
	view.Start()

	final, err := s.controller.Send(ctx, content, view.Update)
	if err != nil {
		view.Abort()
		fmt.Fprintln(s.errOut, s.formatter.FormatError(err))
		return err
	}

	fmt.Fprintln(s.out, view.Finish(final))
	return nil
}

func (s *session) repl(ctx context.Context, in io.Reader) error {
	if s.live {
		fmt.Fprintf(s.out, "Chatting with %s. Type /help for commands.\n", s.controller.Model())
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if s.live {
			fmt.Fprint(s.out, "\n> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				fmt.Fprintln(s.errOut, s.formatter.FormatError(err))
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *session) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, "/models        list models\n/model NAME    switch model\n/exit          quit")
	case "/models":
		return false, controllers.NewModelsController(s.lister).ListModels(ctx, s.out, s.controller.Model())
	case "/model":
		if arg == "" {
			fmt.Fprintln(s.out, s.controller.Model())
			return false, nil
		}
		list, err := s.lister.ListModels(ctx)
		if err != nil {
			return false, err
		}
		m, ok := models.Find(list, arg)
		if !ok {
			return false, fmt.Errorf("unknown model %q", arg)
		}
		s.controller.SetModel(m.Name)
		fmt.Fprintf(s.out, "Now chatting with %s\n", m.Name)
	default:
		return false, errors.New("unknown command " + name)
	}
	return false, nil
}

func (s *session) newView() *render.StreamView {
	opts := []render.ViewOption{
		render.WithReasoning(s.cfg.ShowThinking),
	}
	if s.live {
		opts = append(opts, render.WithLive(render.NewLive(s.out, s.width)))
	}
	if s.cfg.Typing.Enabled && s.live {
		opts = append(opts, render.WithTyping(typing.WithPacer(typing.NewPacer(s.cfg.Typing.PlainDelay, s.cfg.Typing.MinDelay))))
	} else {
		opts = append(opts, render.WithTyping(typing.WithInstant()))
	}
	return render.NewStreamView(s.formatter, opts...)
}

func streamOptions(cfg *config.Config) []stream.Option {
	return []stream.Option{
		stream.WithMinBatchSize(cfg.Stream.MinBatchSize),
		stream.WithBatchInterval(cfg.Stream.BatchInterval),
		stream.WithCancelPlaceholder(cfg.Stream.CancelPlaceholder),
		stream.WithReasoningMarkers(stream.Markers{
			Open:  cfg.Stream.ReasoningOpen,
			Close: cfg.Stream.ReasoningClose,
		}),
	}
}

func newAPIClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		api.WithToken(cfg.API.Token),
	)
}

// newFormatter styles output for a terminal and keeps it plain otherwise.
// Token counts use a real encoding only when one is cached locally, since
// loading it would otherwise go to the network.
func newFormatter(interactive bool, width int, model string) *render.Formatter {
	counter := tokens.NewEstimator()
	if os.Getenv("TIKTOKEN_CACHE_DIR") != "" {
		counter = tokens.NewCounter(model)
	}
	opts := []render.FormatterOption{render.WithTokenCounter(counter)}
	if !interactive {
		opts = append(opts, render.Plain())
	}
	return render.NewFormatter(width, opts...)
}
