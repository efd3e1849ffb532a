// Package client wires the capture pipeline, local storage, and transport
// into the interactive sync agent behind cmd/client.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Aphrodine-wq/clipsync/internal/client/config"
	"github.com/Aphrodine-wq/clipsync/internal/client/outbox"
	"github.com/Aphrodine-wq/clipsync/internal/client/services"
	"github.com/Aphrodine-wq/clipsync/internal/client/storage"
	"github.com/Aphrodine-wq/clipsync/internal/client/transport"
	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/cryptox"
	"github.com/Aphrodine-wq/clipsync/internal/logging"
)

// App is the interactive client agent: a capture REPL over the sync stack.
type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     *storage.Repositories
	api       *transport.API
	transport *transport.Transport
	capture   *services.CaptureService
	outbox    *outbox.Outbox
	reader    *bufio.Reader
}

// NewApp initializes the local database, the cipher, and the transport.
// Nothing connects yet; the transport comes up after login.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	key, err := cryptox.ResolveMasterKey(cfg.MasterKey, cfg.Production)
	if err != nil {
		return nil, err
	}
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return nil, err
	}

	repos, err := storage.InitDatabase(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	ob := outbox.New(repos.Outbox, logger, nil)

	api := transport.NewAPI(cfg.ServerEndpointAddr, cfg.DeviceName, nil)
	bus := transport.NewBus(logger)
	tr := transport.New(cfg, api, ob, bus, transport.Options{Logger: logger})

	bus.Subscribe(transport.KindOutboxFailed, func(e transport.Event) {
		fmt.Printf("write %s failed permanently; use 'failed' to inspect\n", e.Entry.LocalID)
	})

	capture := services.NewCaptureService(cfg, cipher, repos.Clips, tr, api, logger)

	return &App{
		config:    cfg,
		logger:    logger,
		repos:     repos,
		api:       api,
		transport: tr,
		capture:   capture,
		outbox:    ob,
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

// Run drives the REPL until EOF, quit, or a termination signal.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	defer func() {
		a.capture.Stop()
		if err := a.transport.Close(); err != nil {
			a.logger.Warn(ctx, "transport close", "error", err)
		}
		a.repos.DB.Close()
	}()

	fmt.Println("clipsync agent. Type 'help' for commands.")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return
		}
		if !a.dispatch(ctx, strings.TrimSpace(line)) {
			return
		}
	}
}

// dispatch runs one REPL command, returning false to exit.
func (a *App) dispatch(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
	case "help":
		a.printHelp()
	case "register":
		a.withCredentials(rest, func(user, pass string) error {
			return a.api.Register(ctx, user, pass)
		})
	case "login":
		a.withCredentials(rest, func(user, pass string) error {
			if err := a.api.Login(ctx, user, pass); err != nil {
				return err
			}
			return a.transport.Connect(ctx)
		})
	case "copy", "copys":
		if rest == "" {
			fmt.Println("usage: copy <content> (copys encrypts)")
			break
		}
		res, err := a.capture.Capture(ctx, rest, services.CaptureOptions{Encrypt: cmd == "copys"})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		state := "sent"
		if res.Queued {
			state = "queued"
		}
		sensitive := ""
		if res.Classification.Sensitive {
			sensitive = fmt.Sprintf(" (looks sensitive: %s)", strings.Join(res.Classification.Families, ", "))
		}
		fmt.Printf("%s %s as %s%s\n", state, res.Clip.LocalID, res.Clip.Type, sensitive)
	case "list":
		a.printClips(ctx)
	case "show":
		content, err := a.capture.Reveal(ctx, rest)
		if err != nil {
			if errors.Is(err, common.ErrDecryptionFailed) {
				fmt.Println("cannot decrypt this clip with the current master key")
				break
			}
			fmt.Printf("error: %v\n", err)
			break
		}
		fmt.Println(content)
	case "pin", "unpin":
		if err := a.capture.Pin(ctx, rest, cmd == "pin"); err != nil && !errors.Is(err, common.ErrTransportUnavailable) {
			fmt.Printf("error: %v\n", err)
		}
	case "delete":
		if err := a.capture.Delete(ctx, rest); err != nil && !errors.Is(err, common.ErrTransportUnavailable) {
			fmt.Printf("error: %v\n", err)
		}
	case "unlock":
		id, pass, _ := strings.Cut(rest, " ")
		content, err := a.capture.Unlock(ctx, id, pass)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		fmt.Println(content)
	case "join":
		if err := a.transport.JoinTeams(strings.Fields(rest)); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "leave":
		if err := a.transport.LeaveTeams(strings.Fields(rest)); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "status":
		pending, _ := a.outbox.Pending(ctx)
		fmt.Printf("%s (%s), attempts=%d, pending=%d\n",
			a.transport.Status(ctx), a.transport.State(), a.transport.Attempts(), pending)
	case "failed":
		a.printFailed(ctx)
	case "retry":
		if err := a.outbox.Retry(ctx, rest); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "drop":
		if err := a.outbox.Delete(ctx, rest); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "quit", "exit":
		return false
	default:
		fmt.Printf("unknown command %q; try 'help'\n", cmd)
	}
	return true
}

func (a *App) withCredentials(rest string, fn func(user, pass string) error) {
	user, pass, ok := strings.Cut(rest, " ")
	if !ok {
		fmt.Println("usage: <command> <username> <password>")
		return
	}
	if err := fn(user, pass); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (a *App) printClips(ctx context.Context) {
	clips, err := a.capture.List(ctx, 20)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, c := range clips {
		flags := ""
		if c.Pinned {
			flags += " pinned"
		}
		if c.Encrypted {
			flags += " encrypted"
		}
		if c.PasswordProtected {
			flags += " locked"
		}
		preview := c.Content
		if len(preview) > 40 {
			preview = preview[:40] + "..."
		}
		fmt.Printf("%s  [%s]%s  %s\n", c.LocalID, c.Type, flags, preview)
	}
}

func (a *App) printFailed(ctx context.Context) {
	entries, err := a.outbox.Failed(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("no failed writes")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  op=%s attempts=%d\n", e.LocalID, e.Op, e.Attempts)
	}
}

func (a *App) printHelp() {
	fmt.Println(`commands:
  register <user> <pass>   create account
  login <user> <pass>      authenticate and connect
  copy <content>           capture a clip (copys to encrypt)
  list                     show local clips
  show <localId>           reveal clip content
  pin/unpin <clipId>       toggle pin
  delete <clipId>          delete clip
  unlock <clipId> <pass>   read a password-protected clip
  join/leave <teamId...>   team room membership
  status                   connection and outbox state
  failed / retry <id> / drop <id>
  quit`)
}
