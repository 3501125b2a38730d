package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cocinacasera/casabot/internal/api"
	"github.com/cocinacasera/casabot/internal/engine"
	"github.com/cocinacasera/casabot/internal/genai"
	"github.com/cocinacasera/casabot/internal/messaging"
	"github.com/cocinacasera/casabot/internal/ocr"
	"github.com/cocinacasera/casabot/internal/scheduler"
	"github.com/cocinacasera/casabot/internal/twiliowhatsapp"
	"github.com/cocinacasera/casabot/internal/util"
	"github.com/cocinacasera/casabot/internal/verify"
	"github.com/cocinacasera/casabot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for casabot state data
	DefaultStateDir = "/var/lib/casabot"
	// DefaultDBFileName is the default SQLite database filename for the WhatsApp session
	DefaultDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("casabot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("casabot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Backend         string
	WhatsAppDSN     string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	VisionCreds     string
	APIAddr         string
	ResetCron       string
	OperatorKeyword string
	TutorialVideo   string
}

// Flags holds command line flag values
type Flags struct {
	backend         *string
	qrOutput        *string
	numeric         *bool
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	visionCreds     *string
	apiAddr         *string
	resetCron       *string
	operatorKeyword *string
	tutorialVideo   *string
	sendBudget      *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Backend:         os.Getenv("MESSAGING_BACKEND"),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("CASABOT_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		VisionCreds:     os.Getenv("VISION_CREDENTIALS_FILE"),
		APIAddr:         os.Getenv("API_ADDR"),
		ResetCron:       os.Getenv("RESET_SCHEDULE"),
		OperatorKeyword: os.Getenv("OPERATOR_KEYWORD"),
		TutorialVideo:   os.Getenv("TUTORIAL_VIDEO_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CASABOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = config.DatabaseURL
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}
	if config.ResetCron == "" {
		config.ResetCron = scheduler.DefaultResetSpec
	}

	slog.Debug("environment variables loaded",
		"MESSAGING_BACKEND", config.Backend,
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"CASABOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"VISION_CREDENTIALS_FILE_SET", config.VisionCreds != "",
		"API_ADDR", config.APIAddr,
		"RESET_SCHEDULE", config.ResetCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		backend:         flag.String("backend", config.Backend, "messaging backend: whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
		qrOutput:        flag.String("qr-output", "", "path to write login QR code"),
		numeric:         flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for casabot data (overrides $CASABOT_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN or $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		visionCreds:     flag.String("vision-credentials", config.VisionCreds, "Google Vision credentials file (overrides $VISION_CREDENTIALS_FILE)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "admin API server address (overrides $API_ADDR)"),
		resetCron:       flag.String("reset-cron", config.ResetCron, "cron schedule for the daily conversation reset (overrides $RESET_SCHEDULE)"),
		operatorKeyword: flag.String("operator-keyword", config.OperatorKeyword, "fromMe keyword that unpauses a chat (overrides $OPERATOR_KEYWORD)"),
		tutorialVideo:   flag.String("tutorial-video", config.TutorialVideo, "URL of the multi-order tutorial video (overrides $TUTORIAL_VIDEO_URL)"),
		sendBudget:      flag.Int("send-budget", util.ParseIntEnv("SEND_BUDGET_PER_MINUTE", messaging.DefaultSendBudgetPerMinute), "outbound messages per minute (overrides $SEND_BUDGET_PER_MINUTE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"backend", *flags.backend,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"visionCredsSet", *flags.visionCreds != "",
		"apiAddr", *flags.apiAddr,
		"resetCron", *flags.resetCron,
		"sendBudget", *flags.sendBudget)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildTransport creates the configured messaging backend.
func buildTransport(flags Flags) (messaging.Service, error) {
	if strings.EqualFold(*flags.backend, "twilio") {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		slog.Info("Using Twilio messaging backend")
		return messaging.NewTwilioService(client), nil
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}

	var svcOpts []messaging.WhatsAppServiceOption
	if *flags.operatorKeyword != "" {
		svcOpts = append(svcOpts, messaging.WithOperatorKeyword(*flags.operatorKeyword))
	}
	slog.Info("Using Whatsmeow messaging backend")
	return messaging.NewWhatsAppService(client, svcOpts...), nil
}

func run(flags Flags) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := buildTransport(flags)
	if err != nil {
		return err
	}
	sender := messaging.NewRateLimitedSender(transport, *flags.sendBudget)

	// Optional collaborators: missing config degrades to scripted replies
	// and manual receipt review, never to a startup failure.
	var replyCache *engine.ReplyCache
	if *flags.openaiKey != "" {
		genaiClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Error("GenAI client unavailable, using scripted replies only", "error", err)
		} else {
			replyCache = engine.NewReplyCache(genaiClient, 0)
		}
	} else {
		slog.Info("No OpenAI key configured, contextual replies disabled")
	}

	var ocrClient *ocr.Client
	if *flags.visionCreds != "" {
		ocrClient, err = ocr.NewClient(ctx, ocr.WithCredentialsFile(*flags.visionCreds))
		if err != nil {
			slog.Error("OCR client unavailable, receipts go to manual review", "error", err)
			ocrClient = nil
		}
	} else {
		slog.Info("No Vision credentials configured, receipt verification disabled")
	}

	timers := engine.NewSimpleTimer()
	engOpts := []engine.Option{
		engine.WithNotifier(sender),
		engine.WithReplyCache(replyCache),
	}
	if ocrClient != nil {
		engOpts = append(engOpts, engine.WithVerifier(verify.NewVerifier(ocrClient)))
	}
	if *flags.tutorialVideo != "" {
		engOpts = append(engOpts, engine.WithTutorialVideo(*flags.tutorialVideo))
	}
	eng := engine.NewEngine(timers, engOpts...)

	if err := transport.Start(ctx); err != nil {
		return err
	}
	messaging.NewPump(transport, eng).Start(ctx)

	sched := scheduler.NewScheduler()
	if err := sched.AddJob(*flags.resetCron, eng.ClearAll); err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	// The Twilio backend receives inbound messages over a webhook, served on
	// the same listener as the admin API.
	if twilioSvc, ok := transport.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithRoute("/twilio/webhook", twilioSvc.WebhookHandler))
		slog.Info("Twilio inbound webhook mounted", "path", "/twilio/webhook")
	}
	server := api.NewServer(eng, timers, apiOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		slog.Info("Shutting down on signal", "signal", s)
	}

	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		slog.Error("Admin API shutdown failed", "error", err)
	}
	sched.Stop()
	eng.Stop()
	if err := transport.Stop(); err != nil {
		slog.Error("Transport stop failed", "error", err)
	}
	if ocrClient != nil {
		if err := ocrClient.Close(); err != nil {
			slog.Error("OCR client close failed", "error", err)
		}
	}
	return nil
}
