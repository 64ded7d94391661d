package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/codeclash/server/internal/config"
	"github.com/codeclash/server/internal/game"
	"github.com/codeclash/server/internal/problems/groq"
	"github.com/codeclash/server/internal/problems/openai"
	"github.com/codeclash/server/internal/runner/piston"
	"github.com/codeclash/server/internal/ws"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`CodeClash - real-time competitive coding rooms

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                 Port to listen on (default: 8080)
  DEFAULT_PROVIDER     Problem provider: "groq" or "openai" (default: groq)
  DEFAULT_MODEL        Model used for problem generation
  GROQ_API_KEY         Groq API key (required for the groq provider)
  OPENAI_API_KEY       OpenAI API key (required for the openai provider)
  PISTON_URL           Code execution endpoint (default: https://emkc.org/api/v2/piston)
  PROVIDER_TIMEOUT_SEC Problem generation timeout in seconds (default: 30)
  RUNNER_TIMEOUT_SEC   Per-test execution timeout in seconds (default: 15)
  MAX_ROOM_SIZE        Member cap per room (default: 10)
  ROOM_TTL_SEC         Idle time before finished rooms are collected (default: 600)
  REAP_INTERVAL_SEC    Janitor interval in seconds (default: 60)
  EXPORT_ENABLED       Export final standings to file (default: true)
  EXPORT_FILE          Path for exported standings (default: ./codeclash-results.txt)
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("CodeClash %s\n", version)
		return
	}

	_ = godotenv.Load()

	cfg := config.FromEnv()
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// Room registry, collaborators, coordinator
	rooms := game.NewRoomManager(cfg.MaxRoomSize)

	var provider game.Provider
	switch strings.ToLower(cfg.DefaultProvider) {
	case "openai":
		provider = openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel)
	default:
		provider = groq.New(cfg.GroqKey, cfg.GroqBaseURL, cfg.DefaultModel)
	}
	runner := piston.New(cfg.PistonURL)

	bus := ws.New()
	coord := game.NewCoordinator(rooms, provider, runner, bus)
	coord.SetTimeouts(cfg.ProviderTimeout, cfg.RunnerTimeout)
	if cfg.ExportEnabled {
		coord.SetExportFile(cfg.ExportFile)
	}
	bus.SetCoordinator(coord)

	io := bus.Mount(r)
	defer io.Close()

	done := make(chan struct{})
	defer close(done)
	rooms.StartReaper(done, cfg.ReapInterval, cfg.RoomTTL)

	// Join-screen probe: does this room code exist?
	r.GET("/api/rooms/:code", func(c *gin.Context) {
		room, err := rooms.Get(strings.ToUpper(c.Param("code")))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": room.Code, "status": room.Phase()})
	})

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
