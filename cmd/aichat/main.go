package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/config"
	"github.com/olgaz/aichat/internal/history"
	"github.com/olgaz/aichat/internal/llm"
	"github.com/olgaz/aichat/internal/logger"
	"github.com/olgaz/aichat/internal/mcp"
	"github.com/olgaz/aichat/internal/orchestrator"
	"github.com/olgaz/aichat/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.GetConfigPath(), "path to the config file")
	dbPath := flag.String("db", "", "override the history database path")
	prompt := flag.String("prompt", "", "send a single prompt and exit")
	filePath := flag.String("file", "", "attach a text file to the prompt")
	clear := flag.Bool("clear", false, "clear the conversation history and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *dbPath != "" {
		cfg.HistoryPath = *dbPath
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Global().Close()

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *clear {
		if err := store.DeleteAllMessages(ctx); err != nil {
			return err
		}
		fmt.Println("History cleared.")
		return nil
	}

	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	gateway := llm.NewGateway(cfg)

	mcpClient := mcp.New(nil)
	defer mcpClient.Disconnect()
	if settings.WeatherToolsEnabled && settings.MCPServerURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := mcpClient.Connect(connectCtx, settings.MCPServerURL); err != nil {
			fmt.Fprintf(os.Stderr, "warning: tool server unavailable: %v\n", err)
		}
		cancel()
	}

	registry := tools.NewRegistry(mcpClient,
		tools.NewDateTimeHandler(),
		tools.NewReminderHandler(store),
	)

	engine := orchestrator.New(gateway, registry, store, cfg.ToolLoopLimit)
	app := &app{
		store:    store,
		engine:   engine,
		registry: registry,
		mcp:      mcpClient,
		settings: settings,
	}

	if *filePath != "" {
		pending, err := readAttachment(*filePath)
		if err != nil {
			return err
		}
		app.pending = pending
	}

	if *prompt != "" || *filePath != "" {
		return app.respondOnce(ctx, *prompt)
	}
	return app.repl(ctx)
}

type app struct {
	store    *history.Store
	engine   *orchestrator.Engine
	registry *tools.Registry
	mcp      *mcp.Client
	settings chat.Settings
	pending  *attachment
}

// attachment is a file staged for the next message.
type attachment struct {
	name    string
	content string
}

const maxAttachmentBytes = 10 * 1024 * 1024

func readAttachment(path string) (*attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxAttachmentBytes {
		return nil, fmt.Errorf("file %s is larger than 10MB", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("file %s is empty", path)
	}

	return &attachment{name: filepath.Base(path), content: string(data)}, nil
}

func (a *app) repl(ctx context.Context) error {
	fmt.Printf("aichat (%s, %s). Type /help for commands.\n",
		a.settings.Provider, a.settings.Model.APIName)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := a.command(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := a.respondOnce(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", userMessage(err))
		}
	}
}

func (a *app) command(ctx context.Context, line string) (done bool, err error) {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Println("/attach     attach a text file to the next message")
		fmt.Println("/clear      clear the conversation history")
		fmt.Println("/summarize  compact the conversation into a summary")
		fmt.Println("/tools      list the tools available to the model")
		fmt.Println("/settings   show the active settings")
		fmt.Println("/quit       exit")
		return false, nil
	case "/attach":
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach"))
		if path == "" {
			return false, errors.New("usage: /attach <path>")
		}
		pending, err := readAttachment(path)
		if err != nil {
			return false, err
		}
		a.pending = pending
		fmt.Printf("Attached %s (%d chars). It will be sent with your next message.\n",
			pending.name, len([]rune(pending.content)))
		return false, nil
	case "/clear":
		if err := a.store.DeleteAllMessages(ctx); err != nil {
			return false, err
		}
		fmt.Println("History cleared.")
		return false, nil
	case "/summarize":
		summary, err := a.engine.Summarize(ctx, a.settings)
		if err != nil {
			return false, err
		}
		if summary == nil {
			fmt.Println("Nothing to summarize.")
			return false, nil
		}
		fmt.Printf("Summarized %d messages.\n", summary.Summarization.MessageCount)
		return false, nil
	case "/tools":
		available := a.registry.ListAvailable(ctx, a.settings)
		if len(available) == 0 {
			fmt.Println("No tools available.")
			return false, nil
		}
		for _, d := range available {
			fmt.Printf("%-24s %s\n", d.Name, d.Description)
		}
		return false, nil
	case "/settings":
		fmt.Printf("provider: %s\nmodel: %s\nformat: %s\nstyle: %s\ndeep thinking: %v\nsummarization: %+v\n",
			a.settings.Provider, a.settings.Model.APIName, a.settings.ResponseFormat,
			a.settings.CommunicationStyle, a.settings.DeepThinking, a.settings.Summarization)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", line)
	}
}

func (a *app) respondOnce(ctx context.Context, input string) error {
	var userMsg *chat.Message
	if a.pending != nil {
		userMsg = chat.NewUserMessageWithFile(input, a.pending.name, a.pending.content)
		a.pending = nil
	} else {
		userMsg = chat.NewMessage(chat.RoleUser, input)
	}
	if err := a.store.InsertMessage(ctx, userMsg); err != nil {
		return err
	}

	contextMessages, err := a.store.ContextForRequest(ctx)
	if err != nil {
		return err
	}

	reply, err := a.engine.Respond(ctx, contextMessages, a.settings)
	if err != nil {
		return err
	}
	if err := a.store.InsertMessage(ctx, reply); err != nil {
		return err
	}

	fmt.Println(reply.DisplayText())
	if md := reply.Metadata; md != nil {
		line := fmt.Sprintf("[%s | %d in / %d out tokens | %d ms",
			md.Model.APIName, md.InputTokens, md.OutputTokens, md.ResponseTimeMS)
		if cost := md.Cost(); cost > 0 {
			line += fmt.Sprintf(" | $%.6f", cost)
		}
		if len(md.UsedTools) > 0 {
			line += " | tools: " + strings.Join(md.UsedTools, ", ")
		}
		fmt.Println(line + "]")
	}

	if summary, err := a.engine.MaybeSummarize(ctx, a.settings); err != nil {
		logger.Warn("summarization failed: %v", err)
	} else if summary != nil {
		fmt.Printf("(compacted %d earlier messages)\n", summary.Summarization.MessageCount)
	}

	return nil
}

// userMessage maps errors to the short texts shown in the terminal.
func userMessage(err error) string {
	var provErr *llm.ProviderError
	switch {
	case errors.As(err, &provErr):
		return provErr.Message()
	case errors.Is(err, llm.ErrTimeout):
		return "The request timed out. Try again."
	case errors.Is(err, llm.ErrNoConnectivity):
		return "No network connection. Check your internet access."
	case errors.Is(err, orchestrator.ErrToolLoopExceeded):
		return "The model could not finish within the tool call limit."
	case errors.Is(err, orchestrator.ErrEmptyResponse):
		return "The provider returned an empty response."
	default:
		return err.Error()
	}
}
