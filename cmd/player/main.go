package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-player/internal/api"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/logger"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/player"
	"github.com/stemsi/exstem-player/internal/telemetry"
)

func main() {
	sessionID := flag.String("session", "", "existing session ID (requires API_TOKEN)")
	createNew := flag.Bool("new", false, "seed a new session on the dev server")
	mode := flag.String("mode", "TUTOR", "mode for -new: EXAM or TUTOR")
	questions := flag.Int("questions", 10, "question count for -new")
	limit := flag.Int("limit", 0, "time limit in seconds for -new (0 = untimed)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.New(cfg, log)

	id := *sessionID
	if *createNew {
		req := model.CreateSessionRequest{
			Mode:          model.SessionMode(*mode),
			QuestionCount: *questions,
		}
		if *limit > 0 {
			req.TimeLimitSeconds = limit
		}
		created, err := client.CreateDevSession(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed session")
		}
		id = created.Session.SessionID
		fmt.Printf("Sesi baru: %s (%s, %d soal)\n", id, created.Session.Mode, created.Session.TotalQuestions)
	}
	if id == "" {
		log.Fatal().Msg("Provide -session <id> or -new")
	}

	tele := telemetry.NewStream(client.TelemetryURL(id), cfg.TelemetryQueueSize, log)
	go tele.Start(ctx)

	done := make(chan struct{})
	hooks := player.Hooks{
		OnTerminal: func(status model.SessionStatus, reviewURL string) {
			fmt.Printf("\nSesi berakhir (%s).", status)
			if reviewURL != "" {
				fmt.Printf(" Lihat hasil: %s", reviewURL)
			}
			fmt.Println()
			close(done)
		},
	}
	notifier := player.NotifierFunc(func(message string) {
		fmt.Printf("⚠ %s\n", message)
	})

	p := player.New(id, cfg, client, tele, notifier, hooks, log)
	if err := p.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load session")
	}

	fmt.Println("Perintah: n(ext) p(rev) g <nomor> a <A-E> m(ark) s(ubmit) state q(uit)")
	render(p)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-done:
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if handle(ctx, p, strings.Fields(strings.TrimSpace(scanner.Text()))) {
			return
		}
		// Give in-flight fetches a beat before re-rendering.
		time.Sleep(150 * time.Millisecond)
		render(p)
	}
}

// handle executes one command; returns true to quit.
func handle(ctx context.Context, p *player.Player, args []string) bool {
	if len(args) == 0 {
		return false
	}
	state, loaded := p.State()
	if !loaded {
		return false
	}

	switch args[0] {
	case "q", "quit":
		return true
	case "n", "next":
		navigate(ctx, p, state.CurrentIndex+1)
	case "p", "prev":
		navigate(ctx, p, state.CurrentIndex-1)
	case "g", "goto":
		if len(args) < 2 {
			fmt.Println("Gunakan: g <nomor>")
			return false
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("Nomor tidak valid.")
			return false
		}
		navigate(ctx, p, pos)
	case "a", "ans":
		if len(args) < 2 || len(args[1]) != 1 {
			fmt.Println("Gunakan: a <A-E>")
			return false
		}
		choice := int(strings.ToUpper(args[1])[0] - 'A')
		if choice < 0 || choice >= model.OptionCount {
			fmt.Println("Pilihan harus A sampai E.")
			return false
		}
		if snap, ok := p.CurrentQuestion(); ok {
			_ = p.SelectOption(ctx, snap.QuestionID, snap.Index, choice)
		}
	case "m", "mark":
		if snap, ok := p.CurrentQuestion(); ok {
			_ = p.ToggleMarkForReview(ctx, snap.QuestionID, snap.Index, !snap.AnswerState.MarkedForReview)
		}
	case "s", "submit":
		_ = p.Submit(ctx)
	case "state":
		fmt.Printf("%s | %s | soal %d/%d | terjawab %d\n",
			state.Mode, state.Status, state.CurrentIndex, state.TotalQuestions, state.AnsweredCount)
	default:
		fmt.Println("Perintah tidak dikenal.")
	}
	return false
}

func navigate(ctx context.Context, p *player.Player, pos int) {
	if err := p.Navigate(ctx, pos); err != nil {
		fmt.Println("Nomor soal di luar jangkauan.")
	}
}

func render(p *player.Player) {
	state, loaded := p.State()
	if !loaded {
		return
	}
	snap, ok := p.CurrentQuestion()
	if !ok {
		fmt.Println("(memuat soal...)")
		return
	}

	header := fmt.Sprintf("── Soal %d/%d ── terjawab %d", snap.Index, state.TotalQuestions, state.AnsweredCount)
	if remaining, timed := p.Remaining(); timed {
		header += fmt.Sprintf(" ── sisa %s", remaining.Round(time.Second))
	}
	if snap.AnswerState.MarkedForReview {
		header += " ── [ditandai]"
	}
	fmt.Println(header)
	fmt.Println(snap.Text)
	for i, opt := range snap.Options {
		marker := " "
		if snap.AnswerState.SelectedIndex != nil && *snap.AnswerState.SelectedIndex == i {
			marker = "●"
		}
		fmt.Printf(" %s %c. %s\n", marker, 'A'+i, opt)
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
