package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"support-backend/pkg/api"
	"support-backend/pkg/client"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// options are read from the environment first; flags override them.
type options struct {
	APIURL      string `env:"CHAT_API_URL" envDefault:"http://localhost:5000/api"`
	SessionFile string `env:"CHAT_SESSION_FILE"`
}

func loadOptions(args []string) (options, error) {
	var opts options
	if err := env.Parse(&opts); err != nil {
		return opts, fmt.Errorf("error parsing environment: %w", err)
	}

	flags := flag.NewFlagSet("chat", flag.ContinueOnError)
	flags.StringVar(&opts.APIURL, "api", opts.APIURL, "base url of the chat api")
	flags.StringVar(&opts.SessionFile, "session-file", opts.SessionFile, "file the session id is kept in (defaults to the user config dir)")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}

	if opts.SessionFile == "" {
		path, err := client.DefaultSessionPath()
		if err != nil {
			return opts, err
		}
		opts.SessionFile = path
	}
	return opts, nil
}

var (
	userColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	agentColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	errorColor  = color.New(color.FgRed).SprintFunc()
	hintColor   = color.New(color.FgHiBlack).SprintFunc()
	headerColor = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

type terminal struct {
	widget   *client.Widget
	renderer *glamour.TermRenderer
	tty      bool

	// lastFailed is the text of the last message that could not be sent.
	lastFailed string
}

func newTerminal(widget *client.Widget) *terminal {
	t := &terminal{widget: widget, tty: term.IsTerminal(int(os.Stdout.Fd()))}

	width := 80
	if t.tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
			width = w
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)
	if err == nil {
		t.renderer = renderer
	}
	return t
}

func (t *terminal) printHeader() {
	fmt.Println(headerColor("Customer Support"))
	fmt.Println(hintColor("We typically reply in a few seconds"))
	fmt.Println(hintColor("Commands: /new starts a new conversation, /retry resends a failed message, /quit exits"))
	fmt.Println()
}

func (t *terminal) printMessage(m api.Message) {
	if m.Sender == api.SenderUser {
		fmt.Printf("%s %s\n", userColor("You:"), m.Text)
		return
	}

	text := m.Text
	if t.renderer != nil {
		if rendered, err := t.renderer.Render(m.Text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Printf("%s\n%s\n\n", agentColor("Agent:"), text)
}

func (t *terminal) printBanner() {
	if state := t.widget.Snapshot(); state.Error != "" {
		fmt.Println(errorColor(state.Error))
	}
}

func (t *terminal) printSuggestions() {
	if len(t.widget.Snapshot().Messages) > 0 {
		return
	}
	fmt.Println(agentColor("Hi! How can we help you today?"))
	for i, s := range client.Suggestions {
		fmt.Printf("  %s %s\n", hintColor(fmt.Sprintf("[%d]", i+1)), s)
	}
	fmt.Println()
}

// suggestion maps a numeric shortcut to a suggestion when the conversation is empty.
func (t *terminal) suggestion(input string) (string, bool) {
	if len(t.widget.Snapshot().Messages) > 0 {
		return "", false
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(client.Suggestions) {
		return "", false
	}
	return client.Suggestions[n-1], true
}

func (t *terminal) send(ctx context.Context, text string) {
	if remaining := client.CharactersRemaining(strings.TrimSpace(text)); remaining < 0 {
		fmt.Println(errorColor(fmt.Sprintf("Message is %d characters too long (max %d).", -remaining, client.MaxMessageLength)))
		return
	}

	stop := t.spinner()
	err := t.widget.Send(ctx, text)
	stop()

	if err != nil {
		t.lastFailed = strings.TrimSpace(text)
		if errors.Is(err, client.ErrNotConnected) || errors.Is(err, client.ErrBusy) {
			fmt.Println(errorColor(err.Error()))
		}
		t.printBanner()
		fmt.Println(hintColor("Type /retry to send it again."))
		return
	}

	t.lastFailed = ""
	messages := t.widget.Snapshot().Messages
	if len(messages) > 0 {
		t.printMessage(messages[len(messages)-1])
	}
}

func (t *terminal) spinner() func() {
	if !t.tty {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Agent is typing"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				bar.Finish() // nolint:errcheck
				return
			case <-ticker.C:
				bar.Add(1) // nolint:errcheck
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func main() {
	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	widget := client.NewWidget(client.New(opts.APIURL), client.NewFileSessionStore(opts.SessionFile))
	t := newTerminal(widget)

	t.printHeader()
	widget.Init(ctx)
	t.printBanner()

	for _, m := range widget.Snapshot().Messages {
		t.printMessage(m)
	}
	t.printSuggestions()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print(userColor("> "))

		var input string
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return
			}
			input = strings.TrimSpace(line)
		}

		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/new":
			widget.NewConversation()
			t.lastFailed = ""
			fmt.Println(hintColor("Started a new conversation."))
			t.printSuggestions()
			continue
		case "/retry":
			if t.lastFailed == "" {
				fmt.Println(hintColor("Nothing to retry."))
				continue
			}
			if !widget.Snapshot().Connected {
				widget.Init(ctx)
				t.printBanner()
			}
			t.send(ctx, t.lastFailed)
			continue
		}

		if s, ok := t.suggestion(input); ok {
			fmt.Printf("%s %s\n", userColor("You:"), s)
			input = s
		}
		t.send(ctx, input)
	}
}
