package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	agentopencode "github.com/HyphaGroup/oubliette/internal/agent/opencode"
	"github.com/HyphaGroup/oubliette/internal/audit"
	"github.com/HyphaGroup/oubliette/internal/auth"
	"github.com/HyphaGroup/oubliette/internal/config"
	"github.com/HyphaGroup/oubliette/internal/container"
	"github.com/HyphaGroup/oubliette/internal/container/applecontainer"
	"github.com/HyphaGroup/oubliette/internal/container/docker"
	"github.com/HyphaGroup/oubliette/internal/hostapi"
	"github.com/HyphaGroup/oubliette/internal/logger"
	"github.com/HyphaGroup/oubliette/internal/rtp"
	"github.com/HyphaGroup/oubliette/internal/schedule"
	"github.com/HyphaGroup/oubliette/internal/session"
	"github.com/HyphaGroup/oubliette/internal/skills"
	"github.com/HyphaGroup/oubliette/internal/tasks"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	// Check for subcommands before parsing flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			cmdInit()
			return
		case "upgrade":
			cmdUpgrade(os.Args[2:])
			return
		case "token":
			cmdToken(os.Args[2:])
			return
		case "provider":
			cmdProvider(os.Args[2:])
			return
		case "skill":
			cmdSkill(os.Args[2:])
			return
		case "task":
			cmdTask(os.Args[2:])
			return
		case "--version", "-v":
			fmt.Printf("oubliette %s\n", Version)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Default: run server
	runServer()
}

func printUsage() {
	fmt.Printf(`Oubliette %s - Headless AI Agent Automation

Usage: oubliette [command] [options]

Commands:
  (default)    Start the kernel server
  init         Initialize Oubliette directory structure
  upgrade      Upgrade to latest version
  token        Manage authentication tokens
  provider     Manage remote tool providers (RTP)
  skill        Manage and execute skills
  task         Inspect and control background tasks

Server Options:
  --dir <path>       Oubliette home directory
  --daemon           Start server in background and exit when ready

Config Precedence (for server):
  1. --dir flag
  2. OUBLIETTE_HOME env var
  3. ./.oubliette (if initialized in current directory)
  4. ~/.oubliette (default)

Examples:
  oubliette                              Start the server (auto-detect config)
  oubliette --dir /path/to/oubliette     Start with specific config directory
  oubliette --daemon                     Start in background
  oubliette init                         Set up ~/.oubliette
  oubliette init --dir .                 Set up in current directory
  oubliette provider list                List registered RTP providers
  oubliette skill list                   List installed skills
  oubliette task list                    List background tasks
`, Version)
}

func runServer() {
	// Parse command-line flags
	showVersion := flag.Bool("version", false, "Print version and exit")
	dirFlag := flag.String("dir", "", "Oubliette home directory (default: ~/.oubliette)")
	daemonFlag := flag.Bool("daemon", false, "Run in background and exit after server is ready")
	flag.Parse()

	if *showVersion {
		fmt.Printf("oubliette %s\n", Version)
		os.Exit(0)
	}

	// Daemon mode: re-exec in background and wait for health check
	if *daemonFlag {
		runDaemon(*dirFlag)
		return
	}

	// Determine oubliette directory with precedence:
	// 1. --dir flag
	// 2. OUBLIETTE_HOME env var
	// 3. ./.oubliette (current directory)
	// 4. ~/.oubliette (default)
	oublietteDir := resolveOublietteDir(*dirFlag)
	dataDir := filepath.Join(oublietteDir, "data")
	configDir := filepath.Join(oublietteDir, "config")

	// Check if initialized
	if _, err := os.Stat(filepath.Join(configDir, "oubliette.jsonc")); errors.Is(err, iofs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Oubliette not initialized. Run 'oubliette init' first.")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAll(configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Standard paths
	projectsDir := filepath.Join(dataDir, "projects")
	logDir := filepath.Join(dataDir, "logs")

	// Initialize logger
	if err := logger.Init(logDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Println("🗝️  Oubliette - Headless AI Agent Automation")
	logger.Println("   \"The city remembered every one of its citizens...\"")
	logger.Println("")

	// Log model info
	if cfg.Models != nil && len(cfg.Models.Models) > 0 {
		logger.Printf("🤖 Loaded %d model(s)", len(cfg.Models.Models))
	}

	// Ensure projects directory exists
	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		logger.Fatalf("Failed to create projects directory: %v", err)
	}

	addr := cfg.Server.Address

	// Initialize container runtime based on preference
	var containerRuntime container.Runtime
	runtimePref := container.GetRuntimePreference()

	var baseRuntime container.Runtime
	switch runtimePref {
	case "docker":
		r, err := docker.NewRuntime()
		if err != nil {
			logger.Fatalf("Failed to initialize Docker runtime: %v", err)
		}
		baseRuntime = r
	case "apple-container":
		r, err := applecontainer.NewRuntime()
		if err != nil {
			logger.Fatalf("Failed to initialize Apple Container runtime: %v", err)
		}
		baseRuntime = r
	default: // "auto"
		if r, err := applecontainer.NewRuntime(); err == nil && r.IsAvailable() {
			baseRuntime = r
			logger.Println("🍎 Using Apple Container runtime")
		} else if r, err := docker.NewRuntime(); err == nil && r.IsAvailable() {
			baseRuntime = r
			logger.Println("🐳 Using Docker runtime")
		} else {
			logger.Fatalf("No container runtime available")
		}
	}

	// Wrap runtime with status caching (5 second TTL). This substrate backs
	// the Session Kernel's managed agent processes, not a standalone product.
	containerRuntime = container.NewCachedRuntime(baseRuntime, 5*time.Second)
	defer func() { _ = containerRuntime.Close() }()

	// Initialize agent runtime (OpenCode) — this is the process substrate the
	// Session Kernel's ManagedProcess registrations run on top of.
	agentRuntime := agentopencode.NewRuntime(containerRuntime)
	logger.Println("🤖 Agent runtime: OpenCode")
	if provCred, ok := cfg.Credentials.GetDefaultProviderCredential(); !ok || provCred.APIKey == "" {
		logger.Println("⚠️  WARNING: No API keys configured in oubliette.jsonc")
		logger.Println("   Sessions will fail until you add credentials.providers")
	}

	oublietteMCPURL := fmt.Sprintf("http://localhost%s", addr)
	sessionMgr := session.NewManager(projectsDir, agentRuntime, oublietteMCPURL)

	if err := sessionMgr.LoadIndex(); err != nil {
		logger.Printf("⚠️  Failed to load session index: %v (will rebuild from disk)", err)
	}
	if recovered, err := sessionMgr.RecoverStaleSessions(30 * time.Minute); err != nil {
		logger.Printf("⚠️  Failed to recover stale sessions: %v", err)
	} else if recovered > 0 {
		logger.Printf("🔄 Recovered %d stale sessions from previous crash", recovered)
	}

	ctx := context.Background()
	if err := containerRuntime.Ping(ctx); err != nil {
		logger.Fatalf("Failed to connect to container runtime: %v", err)
	}

	logger.Printf("✅ Connected to %s runtime\n", containerRuntime.Name())
	logger.Printf("📁 Projects directory: %s\n", projectsDir)
	logger.Printf("📝 Logs directory: %s\n", logDir)
	logger.Println("")

	// Initialize auth store
	authStore, err := auth.NewStore(dataDir)
	if err != nil {
		logger.Fatalf("Failed to initialize auth store: %v", err)
	}
	defer func() { _ = authStore.Close() }()
	logger.Printf("🔐 Auth database: %s/auth.json\n", dataDir)

	// Initialize schedule store — backs the Task Manager's cron-driven
	// scheduled tasks (see internal/tasks/scheduler.go).
	scheduleStore, err := schedule.NewStore(dataDir)
	if err != nil {
		logger.Fatalf("Failed to initialize schedule store: %v", err)
	}
	defer func() { _ = scheduleStore.Close() }()
	logger.Printf("📅 Schedule database: %s/schedules.json\n", dataDir)

	// RTP provider registry and health monitor.
	providers := rtp.NewProviderRegistry(filepath.Join(dataDir, "providers.json"))
	if err := providers.Load(); err != nil {
		logger.Printf("⚠️  Failed to load provider registry: %v", err)
	}
	healthMonitor := rtp.NewHealthMonitor()

	// Extension Plane: skill registry, file loader, and executor.
	skillRegistry := skills.NewRegistry(filepath.Join(dataDir, "skills.json"))
	if err := skillRegistry.Load(); err != nil {
		logger.Printf("⚠️  Failed to load skill registry: %v", err)
	}
	skillExecutor := skills.NewExecutor(skillRegistry)

	// Task Manager and cron-schedule bridge.
	taskManager := tasks.NewManager()
	scheduler := tasks.NewScheduler(scheduleStore, taskManager, scheduledTaskRunner(sessionMgr), 15*time.Second)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go scheduler.Run(schedulerCtx)

	api := hostapi.NewServer(providers, healthMonitor, skillRegistry, skillExecutor, taskManager)
	httpServer := &http.Server{Addr: addr, Handler: api}

	logger.Println("🚀 Starting Oubliette kernel server...")
	logger.Printf("📡 Server address: http://localhost%s\n", addr)
	logger.Println("   Use the provider/skill/task HTTP API or the oubliette CLI to manage resources")
	logger.Println("")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatalf("Server error: %v", err)
	case sig := <-shutdownChan:
		logger.Printf("⚠️  Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Println("   Stopping scheduler...")
		stopScheduler()

		logger.Println("   Stopping kernel server...")
		_ = httpServer.Shutdown(shutdownCtx)

		logger.Println("   Saving provider/skill registries...")
		_ = providers.Save()
		_ = skillRegistry.Save()

		logger.Println("   Closing container runtime...")
		_ = containerRuntime.Close()

		logger.Println("   Closing auth database...")
		_ = authStore.Close()

		logger.Println("   Closing schedule database...")
		_ = scheduleStore.Close()

		logger.Println("✅ Shutdown complete")
		_ = logger.Close()

		os.Exit(0) //nolint:gocritic // intentional exit after manual cleanup
	}
}

// scheduledTaskRunner bridges a due cron schedule into a session turn: an
// existing target session is continued, or a new one is created from the
// schedule's prompt when the target names only a project.
func scheduledTaskRunner(sessionMgr *session.Manager) tasks.Runner {
	return func(ctx context.Context, sched *schedule.Schedule, target schedule.ScheduleTarget) tasks.Result {
		start := time.Now()
		var turn *session.Turn
		var err error
		if target.SessionID != "" {
			turn, err = sessionMgr.Continue(ctx, target.SessionID, sched.Prompt)
		} else {
			var sess *session.Session
			sess, err = sessionMgr.Create(ctx, target.ProjectID, "", sched.Prompt, session.StartOptions{})
			if err == nil && len(sess.Turns) > 0 {
				turn = &sess.Turns[len(sess.Turns)-1]
			}
		}
		if err != nil {
			return tasks.Failure(err.Error(), time.Since(start).Milliseconds())
		}
		if turn != nil && turn.Output.Error != "" {
			return tasks.Failure(turn.Output.Error, time.Since(start).Milliseconds())
		}
		return tasks.Success(turn, time.Since(start).Milliseconds())
	}
}

func cmdInit() {
	// Parse init flags
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Directory to initialize (default: ~/.oubliette)")
	_ = fs.Parse(os.Args[2:])

	var oublietteDir string
	if *dirFlag != "" {
		// Use specified directory
		absDir, err := filepath.Abs(*dirFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid directory: %v\n", err)
			os.Exit(1)
		}
		oublietteDir = absDir
	} else {
		// Default to ~/.oubliette
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not determine home directory: %v\n", err)
			os.Exit(1)
		}
		oublietteDir = filepath.Join(homeDir, ".oubliette")
	}

	configDir := filepath.Join(oublietteDir, "config")
	dataDir := filepath.Join(oublietteDir, "data")

	// Check if already initialized (look for config file, not just directory)
	configFile := filepath.Join(configDir, "oubliette.jsonc")
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("⚠️  %s is already initialized.\n", oublietteDir)
		fmt.Print("Overwrite? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	fmt.Println("🗝️  Initializing Oubliette")
	fmt.Println("")

	// Create directory structure
	dirs := []string{
		configDir,
		filepath.Join(dataDir, "projects"),
		filepath.Join(dataDir, "logs"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
		fmt.Printf("   Created %s\n", dir)
	}

	// Create unified oubliette.jsonc config
	unifiedConfig := `{
  // Oubliette Configuration

  "server": {
    "address": ":8080"
  },

  "credentials": {
    "github": {
      "credentials": {
        "default": {
          "token": "",
          "description": "GitHub token"
        }
      },
      "default": "default"
    },
    "providers": {
      "credentials": {},
      "default": ""
    }
  },

  "defaults": {
    "limits": {
      "max_recursion_depth": 3,
      "max_agents_per_session": 50,
      "max_cost_usd": 10.0
    },
    "agent": {
      "model": "sonnet",
      "autonomy": "off",
      "reasoning": "medium"
    },
    "container": {
      "type": "dev"
    }
  },

  "containers": {
    "base": "ghcr.io/hyphagroup/oubliette-base:latest",
    "dev": "ghcr.io/hyphagroup/oubliette-dev:latest"
  },

  "models": {
    "models": {
      "sonnet": {
        "model": "claude-sonnet-4-5",
        "displayName": "Sonnet 4.5",
        "baseUrl": "https://api.anthropic.com",
        "maxOutputTokens": 64000,
        "provider": "anthropic"
      },
      "opus": {
        "model": "claude-opus-4-5",
        "displayName": "Opus 4.5",
        "baseUrl": "https://api.anthropic.com",
        "maxOutputTokens": 64000,
        "provider": "anthropic"
      }
    },
    "defaults": {
      "included_models": ["sonnet", "opus"],
      "session_model": "sonnet",
      "autonomy_mode": "auto-high",
      "reasoning_effort": "medium"
    }
  }
}
`
	configPath := filepath.Join(configDir, "oubliette.jsonc")
	if err := os.WriteFile(configPath, []byte(unifiedConfig), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating oubliette.jsonc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Created %s\n", configPath)

	// Create admin token
	fmt.Println("")
	fmt.Println("Creating admin token...")
	authStore, err := auth.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing auth store: %v\n", err)
		os.Exit(1)
	}

	_, tokenID, err := authStore.CreateToken("admin", "admin", nil)
	if err != nil {
		_ = authStore.Close()
		fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
		os.Exit(1)
	}
	_ = authStore.Close()

	fmt.Println("")
	fmt.Println("Admin token (save this - it cannot be retrieved later):")
	fmt.Printf("   %s\n", tokenID)

	// Pre-pull container images (skip in dev mode)
	if os.Getenv("OUBLIETTE_DEV") != "1" {
		fmt.Println("")
		fmt.Println("Pulling container images...")

		cfg, err := config.LoadAll(configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load config for image pull: %v\n", err)
		} else {
			containerRT, err := initContainerRuntime()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not initialize container runtime: %v\n", err)
			} else {
				defer func() { _ = containerRT.Close() }()

				ctx := context.Background()
				for typeName, imageName := range cfg.Containers {
					fmt.Printf("   Pulling %s (%s)...\n", typeName, imageName)
					if err := containerRT.Pull(ctx, imageName); err != nil {
						fmt.Fprintf(os.Stderr, "   Warning: failed to pull %s: %v\n", imageName, err)
					} else {
						fmt.Printf("   ✅ %s ready\n", typeName)
					}
				}
			}
		}
	} else {
		fmt.Println("")
		fmt.Println("Dev mode: skipping image pull (use ./build.sh to build local images)")
	}

	fmt.Println("")
	fmt.Println("✅ Oubliette initialized!")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("   1. Edit %s with your API keys\n", configPath)
	fmt.Println("   2. Run 'oubliette' to start the server")
}

func cmdUpgrade(args []string) {
	checkOnly := false
	for _, arg := range args {
		if arg == "--check" || arg == "-c" {
			checkOnly = true
		}
	}

	fmt.Printf("Current version: %s\n", Version)
	fmt.Println("Checking for updates...")

	// Query GitHub API for latest release
	resp, err := http.Get("https://api.github.com/repos/HyphaGroup/oubliette/releases/latest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking for updates: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode == 404 {
		_ = resp.Body.Close()
		fmt.Println("No releases found yet.")
		return
	}

	if resp.StatusCode != 200 {
		_ = resp.Body.Close()
		fmt.Fprintf(os.Stderr, "Error: GitHub API returned status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	var release struct {
		TagName string `json:"tag_name"`
		Assets  []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		_ = resp.Body.Close()
		fmt.Fprintf(os.Stderr, "Error parsing release info: %v\n", err)
		os.Exit(1)
	}
	_ = resp.Body.Close()

	latestVersion := release.TagName
	fmt.Printf("Latest version: %s\n", latestVersion)

	// Compare versions (simple string comparison, assumes semver format)
	currentVersion := Version
	if !strings.HasPrefix(currentVersion, "v") {
		currentVersion = "v" + currentVersion
	}

	if currentVersion == latestVersion {
		fmt.Println("")
		fmt.Println("✅ You are already on the latest version.")
		return
	}

	if checkOnly {
		fmt.Println("")
		fmt.Printf("Upgrade available: %s -> %s\n", Version, latestVersion)
		fmt.Println("Run 'oubliette upgrade' to install.")
		return
	}

	// Determine platform
	goos := runtime.GOOS
	goarch := runtime.GOARCH
	binaryName := fmt.Sprintf("oubliette-%s-%s", goos, goarch)

	// Find download URLs
	var binaryURL, checksumsURL string
	for _, asset := range release.Assets {
		if asset.Name == binaryName {
			binaryURL = asset.BrowserDownloadURL
		}
		if asset.Name == "checksums.txt" {
			checksumsURL = asset.BrowserDownloadURL
		}
	}

	if binaryURL == "" {
		fmt.Fprintf(os.Stderr, "Error: No binary found for %s/%s\n", goos, goarch)
		os.Exit(1)
	}

	fmt.Println("")
	fmt.Printf("Downloading %s...\n", binaryName)

	// Download binary to temp file
	tmpFile, err := os.CreateTemp("", "oubliette-upgrade-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating temp file: %v\n", err)
		os.Exit(1)
	}

	binaryResp, err := http.Get(binaryURL)
	if err != nil {
		_ = os.Remove(tmpFile.Name())
		fmt.Fprintf(os.Stderr, "Error downloading binary: %v\n", err)
		os.Exit(1)
	}

	if _, err := io.Copy(tmpFile, binaryResp.Body); err != nil {
		_ = binaryResp.Body.Close()
		_ = os.Remove(tmpFile.Name())
		fmt.Fprintf(os.Stderr, "Error saving binary: %v\n", err)
		os.Exit(1)
	}
	_ = binaryResp.Body.Close()
	_ = tmpFile.Close()

	// Verify checksum if available
	if checksumsURL != "" {
		fmt.Println("Verifying checksum...")
		checksumsResp, err := http.Get(checksumsURL)
		if err == nil {
			checksumsData, _ := io.ReadAll(checksumsResp.Body)
			_ = checksumsResp.Body.Close()

			// Find expected checksum
			var expectedChecksum string
			for _, line := range strings.Split(string(checksumsData), "\n") {
				if strings.Contains(line, binaryName) {
					parts := strings.Fields(line)
					if len(parts) >= 1 {
						expectedChecksum = parts[0]
						break
					}
				}
			}

			if expectedChecksum != "" {
				// Calculate actual checksum
				f, _ := os.Open(tmpFile.Name())
				h := sha256.New()
				_, _ = io.Copy(h, f)
				_ = f.Close()
				actualChecksum := fmt.Sprintf("%x", h.Sum(nil))

				if actualChecksum != expectedChecksum {
					_ = os.Remove(tmpFile.Name())
					fmt.Fprintf(os.Stderr, "Error: Checksum mismatch!\n")
					fmt.Fprintf(os.Stderr, "  Expected: %s\n", expectedChecksum)
					fmt.Fprintf(os.Stderr, "  Actual:   %s\n", actualChecksum)
					os.Exit(1)
				}
				fmt.Println("Checksum verified ✓")
			}
		}
	}

	// Get path to current binary
	currentBinary, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding current binary: %v\n", err)
		os.Exit(1)
	}
	currentBinary, _ = filepath.EvalSymlinks(currentBinary)

	// Replace binary
	fmt.Printf("Replacing %s...\n", currentBinary)

	// Make temp file executable
	_ = os.Chmod(tmpFile.Name(), 0o755)

	// Move temp file to replace current binary
	// First try rename (same filesystem)
	if err := os.Rename(tmpFile.Name(), currentBinary); err != nil {
		// Cross-filesystem, need to copy
		src, err := os.Open(tmpFile.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening temp file: %v\n", err)
			os.Exit(1)
		}

		dst, err := os.OpenFile(currentBinary, os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			_ = src.Close()
			fmt.Fprintf(os.Stderr, "Error opening binary for writing: %v\n", err)
			fmt.Fprintf(os.Stderr, "You may need to run with sudo or adjust permissions.\n")
			os.Exit(1)
		}

		if _, err := io.Copy(dst, src); err != nil {
			_ = src.Close()
			_ = dst.Close()
			fmt.Fprintf(os.Stderr, "Error writing binary: %v\n", err)
			os.Exit(1)
		}
		_ = src.Close()
		_ = dst.Close()
	}

	fmt.Println("")
	fmt.Printf("✅ Upgraded from %s to %s\n", Version, latestVersion)
}

// cmdToken handles the 'token' subcommand for managing authentication tokens
func cmdToken(args []string) {
	if len(args) < 1 {
		printTokenUsage()
		os.Exit(1)
	}

	oublietteDir := resolveOublietteDir("")
	dataDir := filepath.Join(oublietteDir, "data")

	// Initialize auth store
	store, err := auth.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing auth store: %v\n", err)
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "create":
		tokenCreate(store, cmdArgs)
	case "list":
		tokenList(store)
	case "revoke":
		tokenRevoke(store, cmdArgs)
	case "info":
		tokenInfo(store, cmdArgs)
	case "help", "-h", "--help":
		_ = store.Close()
		printTokenUsage()
		return
	default:
		_ = store.Close()
		fmt.Fprintf(os.Stderr, "Unknown token command: %s\n", cmd)
		printTokenUsage()
		os.Exit(1)
	}
	_ = store.Close()
}

func printTokenUsage() {
	fmt.Println(`Token Management

Usage: oubliette token <command> [options]

Commands:
  create    Create a new API token
  list      List all tokens
  revoke    Revoke a token
  info      Get token details
  help      Show this help

Scope Formats:
  admin              Full access to all tools and projects
  admin:ro           Read-only access to all tools and projects
  project:<uuid>     Full access to one project
  project:<uuid>:ro  Read-only access to one project

Examples:
  oubliette token create --name "Local Dev" --scope admin
  oubliette token create --name "Project Alpha" --scope project:abc-123-def
  oubliette token list
  oubliette token revoke oub_xxxx...
  oubliette token info oub_xxxx...`)
}

func tokenCreate(store *auth.Store, args []string) {
	fs := flag.NewFlagSet("token create", flag.ExitOnError)
	name := fs.String("name", "", "Human-readable token name (required)")
	scope := fs.String("scope", "", "Token scope: admin, admin:ro, project:<uuid>, or project:<uuid>:ro (required)")
	_ = fs.Parse(args)

	if *name == "" || *scope == "" {
		fmt.Fprintln(os.Stderr, "Error: --name and --scope are required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	// Validate scope
	if !isValidTokenScope(*scope) {
		fmt.Fprintf(os.Stderr, "Error: invalid scope '%s'\n", *scope)
		fmt.Fprintln(os.Stderr, "Valid scopes: admin, admin:ro, project:<uuid>, project:<uuid>:ro")
		os.Exit(1)
	}

	token, tokenID, err := store.CreateToken(*name, *scope, nil)
	if err != nil {
		audit.LogFailure(audit.OpTokenCreate, "", *scope, "", err)
		fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
		os.Exit(1)
	}
	audit.LogSuccess(audit.OpTokenCreate, tokenID, token.Scope, "")

	fmt.Println("Token created successfully!")
	fmt.Println()
	fmt.Printf("Token ID: %s\n", tokenID)
	fmt.Printf("Name:     %s\n", token.Name)
	fmt.Printf("Scope:    %s\n", token.Scope)
	fmt.Println()
	fmt.Println("IMPORTANT: Save this token now. It cannot be retrieved later.")
}

func tokenList(store *auth.Store) {
	tokens, err := store.ListTokens()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tokens: %v\n", err)
		os.Exit(1)
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens found.")
		fmt.Println()
		fmt.Println("Create one with: oubliette token create --name \"My Token\" --scope admin")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSCOPE\tCREATED\tLAST USED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-------\t---------")

	for _, t := range tokens {
		lastUsed := "never"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.Format("2006-01-02 15:04")
		}
		maskedID := maskTokenID(t.ID)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			maskedID,
			t.Name,
			t.Scope,
			t.CreatedAt.Format("2006-01-02 15:04"),
			lastUsed,
		)
	}
	_ = w.Flush()
}

func tokenRevoke(store *auth.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: token ID required")
		fmt.Fprintln(os.Stderr, "Usage: oubliette token revoke <token_id>")
		os.Exit(1)
	}

	tokenID := args[0]
	err := store.RevokeToken(tokenID)
	if err != nil {
		audit.LogFailure(audit.OpTokenRevoke, tokenID, "", "", err)
		fmt.Fprintf(os.Stderr, "Error revoking token: %v\n", err)
		os.Exit(1)
	}
	audit.LogSuccess(audit.OpTokenRevoke, tokenID, "", "")

	fmt.Printf("Token %s revoked successfully.\n", maskTokenID(tokenID))
}

func tokenInfo(store *auth.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: token ID required")
		fmt.Fprintln(os.Stderr, "Usage: oubliette token info <token_id>")
		os.Exit(1)
	}

	tokenID := args[0]
	token, err := store.GetToken(tokenID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token ID:    %s\n", maskTokenID(token.ID))
	fmt.Printf("Name:        %s\n", token.Name)
	fmt.Printf("Scope:       %s\n", token.Scope)
	fmt.Printf("Created:     %s\n", token.CreatedAt.Format("2006-01-02 15:04:05"))
	if token.LastUsedAt != nil {
		fmt.Printf("Last Used:   %s\n", token.LastUsedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Last Used:   never\n")
	}
	if token.ExpiresAt != nil {
		fmt.Printf("Expires:     %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Expires:     never\n")
	}
}

func isValidTokenScope(scope string) bool {
	// Admin scopes
	if scope == auth.ScopeAdmin || scope == auth.ScopeAdminRO {
		return true
	}
	// Project scopes: project:<uuid> or project:<uuid>:ro
	if strings.HasPrefix(scope, "project:") {
		rest := scope[8:]
		if rest == "" {
			return false
		}
		if strings.HasSuffix(rest, ":ro") {
			return len(rest) > 3
		}
		return true
	}
	return false
}

func maskTokenID(tokenID string) string {
	if len(tokenID) <= 12 {
		return "***"
	}
	return tokenID[:8] + "..." + tokenID[len(tokenID)-4:]
}

// cmdProvider handles the 'provider' subcommand: a thin HTTP client against
// the running kernel's hostapi /api/providers surface.
func cmdProvider(args []string) {
	if len(args) < 1 {
		printProviderUsage()
		os.Exit(1)
	}
	base := apiBaseURL()
	switch args[0] {
	case "list":
		httpGetAndPrint(base + "/api/providers")
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: provider id required")
			os.Exit(1)
		}
		httpDelete(base + "/api/providers/" + args[1])
	case "help", "-h", "--help":
		printProviderUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider command: %s\n", args[0])
		printProviderUsage()
		os.Exit(1)
	}
}

func printProviderUsage() {
	fmt.Println(`Provider Management (RTP)

Usage: oubliette provider <command> [options]

Commands:
  list              List registered providers
  remove <id>       Unregister a provider

Providers are registered via POST /api/providers on the running server.`)
}

// cmdSkill handles the 'skill' subcommand against the hostapi /api/skills surface.
func cmdSkill(args []string) {
	if len(args) < 1 {
		printSkillUsage()
		os.Exit(1)
	}
	base := apiBaseURL()
	switch args[0] {
	case "list":
		httpGetAndPrint(base + "/api/skills")
	case "execute":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: skill id required")
			os.Exit(1)
		}
		httpPostAndPrint(base+"/api/skills/"+args[1]+"/execute", nil)
	case "help", "-h", "--help":
		printSkillUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown skill command: %s\n", args[0])
		printSkillUsage()
		os.Exit(1)
	}
}

func printSkillUsage() {
	fmt.Println(`Skill Management (Extension Plane)

Usage: oubliette skill <command> [options]

Commands:
  list              List installed skills
  execute <id>      Execute a skill with no arguments

Skills are created/imported via POST /api/skills and /api/skills/import.`)
}

// cmdTask handles the 'task' subcommand against the hostapi /api/tasks surface.
func cmdTask(args []string) {
	if len(args) < 1 {
		printTaskUsage()
		os.Exit(1)
	}
	base := apiBaseURL()
	switch args[0] {
	case "list":
		httpGetAndPrint(base + "/api/tasks")
	case "get":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: task id required")
			os.Exit(1)
		}
		httpGetAndPrint(base + "/api/tasks/" + args[1])
	case "cancel":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: task id required")
			os.Exit(1)
		}
		httpPostAndPrint(base+"/api/tasks/"+args[1]+"/cancel", nil)
	case "clear":
		httpDelete(base + "/api/tasks")
	case "help", "-h", "--help":
		printTaskUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown task command: %s\n", args[0])
		printTaskUsage()
		os.Exit(1)
	}
}

func printTaskUsage() {
	fmt.Println(`Task Manager

Usage: oubliette task <command> [options]

Commands:
  list              List all tasks
  get <id>          Show task details
  cancel <id>       Cancel a cancellable task
  clear             Clear completed task history`)
}

func apiBaseURL() string {
	oublietteDir := resolveOublietteDir("")
	configDir := filepath.Join(oublietteDir, "config")
	cfg, err := config.LoadAll(configDir)
	addr := ":8080"
	if err == nil && cfg.Server.Address != "" {
		addr = cfg.Server.Address
	}
	return fmt.Sprintf("http://localhost%s", addr)
}

func httpGetAndPrint(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	printResponse(resp)
}

func httpPostAndPrint(url string, body io.Reader) {
	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	printResponse(resp)
}

func httpDelete(url string) {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "Error (%d): %s\n", resp.StatusCode, data)
		os.Exit(1)
	}
	if len(data) == 0 {
		return
	}
	var pretty interface{}
	if json.Unmarshal(data, &pretty) == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(data))
}

func initContainerRuntime() (container.Runtime, error) {
	runtimePref := container.GetRuntimePreference()

	switch runtimePref {
	case "docker":
		return docker.NewRuntime()
	case "apple-container":
		return applecontainer.NewRuntime()
	default:
		// Auto-detect
		if r, err := applecontainer.NewRuntime(); err == nil && r.IsAvailable() {
			return r, nil
		}
		return docker.NewRuntime()
	}
}

// resolveOublietteDir determines the oubliette home directory with precedence:
// 1. Explicit flag (if provided)
// 2. OUBLIETTE_HOME env var
// 3. ./.oubliette (current directory, if initialized)
// 4. ~/.oubliette (default)
func resolveOublietteDir(flagDir string) string {
	// 1. Explicit flag takes highest precedence
	if flagDir != "" {
		absDir, err := filepath.Abs(flagDir)
		if err != nil {
			log.Fatalf("Invalid directory: %v", err)
		}
		return absDir
	}

	// 2. OUBLIETTE_HOME env var
	if envDir := os.Getenv("OUBLIETTE_HOME"); envDir != "" {
		absDir, err := filepath.Abs(envDir)
		if err != nil {
			log.Fatalf("Invalid OUBLIETTE_HOME: %v", err)
		}
		return absDir
	}

	// 3. Check current directory for config/oubliette.jsonc (direct) or .oubliette/config/oubliette.jsonc
	cwd, err := os.Getwd()
	if err == nil {
		// Check for config directly in cwd (e.g., /path/to/oubliette_test/config/oubliette.jsonc)
		directConfig := filepath.Join(cwd, "config", "oubliette.jsonc")
		if _, err := os.Stat(directConfig); err == nil {
			return cwd
		}
		// Check for .oubliette subdirectory
		localDir := filepath.Join(cwd, ".oubliette")
		configFile := filepath.Join(localDir, "config", "oubliette.jsonc")
		if _, err := os.Stat(configFile); err == nil {
			return localDir
		}
	}

	// 4. Default to ~/.oubliette
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	return filepath.Join(homeDir, ".oubliette")
}

// runDaemon starts the server in background and waits for it to be ready
func runDaemon(dirFlag string) {
	// Get the path to this executable
	executable, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding executable: %v\n", err)
		os.Exit(1)
	}

	// Resolve config to get the server address for health check
	oublietteDir := resolveOublietteDir(dirFlag)
	configDir := filepath.Join(oublietteDir, "config")
	cfg, err := config.LoadAll(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	serverAddr := cfg.Server.Address
	if serverAddr == "" {
		serverAddr = ":8080"
	}
	// Extract port
	port := serverAddr
	if idx := strings.LastIndex(serverAddr, ":"); idx >= 0 {
		port = serverAddr[idx+1:]
	}
	healthURL := fmt.Sprintf("http://localhost:%s/healthz", port)

	// Check if already running
	resp, err := http.Get(healthURL)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			fmt.Printf("✅ Oubliette already running on port %s\n", port)
			os.Exit(0)
		}
	}

	// Build command string for nohup
	logFile := filepath.Join(oublietteDir, "data", "logs", "daemon.log")
	cmdStr := fmt.Sprintf("nohup %s", executable)
	if dirFlag != "" {
		cmdStr += fmt.Sprintf(" --dir %s", dirFlag)
	}
	cmdStr += fmt.Sprintf(" > %s 2>&1 &", logFile)

	// Start via shell with nohup
	cmd := exec.Command("sh", "-c", cmdStr)
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting oubliette on port %s...\n", port)

	// Wait for health check to pass
	maxWait := 30 * time.Second
	checkInterval := 500 * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		resp, err := http.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Printf("✅ Oubliette running on port %s\n", port)
				os.Exit(0)
			}
		}
		time.Sleep(checkInterval)
	}

	fmt.Fprintf(os.Stderr, "Error: server failed to start within %v\n", maxWait)
	fmt.Fprintf(os.Stderr, "Check logs at: %s\n", logFile)
	os.Exit(1)
}
