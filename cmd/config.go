package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"failpass.dev/pkg/failpass/internal/domain"
	m "failpass.dev/pkg/failpass/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "failpass"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."
	dotenvFileName   = ".env"

	outputFlagName      = "output"
	runParallelFlagName = "parallel"
	backendFlagName     = "backend"
	maxAttemptsFlagName = "max-attempts"
	coverageFlagName    = "coverage"
	verboseFlagName     = "verbose"

	runMaxAttemptsKey      = "run.max_attempts"
	runMaxPatchFailuresKey = "run.max_patch_failures"
	runParallelConfigKey   = "run.parallel"
	runBackendsKey         = "run.backends"
	runCoverageKey         = "run.coverage"

	sandboxEngineKey          = "sandbox.engine"
	sandboxDockerfileDirKey   = "sandbox.dockerfile_dir"
	sandboxContextDirKey      = "sandbox.context_dir"
	sandboxWorkdirKey         = "sandbox.workdir"
	sandboxTestCommandKey     = "sandbox.test_command"
	sandboxLintCommandKey     = "sandbox.lint_command"
	sandboxCoverageCommandKey = "sandbox.coverage_command"
	sandboxCoverageReportKey  = "sandbox.coverage_report"
	sandboxTimeoutKey         = "sandbox.timeout"

	llmTemperatureKey  = "llm.temperature"
	llmRPSKey          = "llm.rps"
	llmMockResponseKey = "llm.mock_response"

	defaultReportsDir       = ".failpass-reports"
	defaultRunParallel      = 1
	defaultEngine           = "docker"
	defaultDockerfileDir    = "dockerfiles"
	defaultContextDir       = "."
	defaultWorkdir          = "/app/testbed"
	defaultTestCommand      = "cargo test --no-fail-fast --all-features --"
	defaultLintCommand      = "cargo check --tests --all-features"
	defaultCoverageCommand  = "cargo llvm-cov --json --summary-only --output-path /tmp/coverage.json --"
	defaultCoverageReport   = "/tmp/coverage.json"
	defaultSandboxTimeout   = 30 * time.Minute
	defaultLLMTemperature   = 0.0
	defaultLLMRPS           = 0.5
	defaultMetricsFileName  = "metrics.prom"
	defaultLogLevelFallback = slog.LevelInfo

	envPrefix = "FAILPASS"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".failpass.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// apiKeyEnv names the environment variable holding each provider's secret.
var apiKeyEnv = map[m.Provider]string{
	m.ProviderOpenAI: "OPENAI_API_KEY",
	m.ProviderGroq:   "GROQ_API_KEY",
	m.ProviderGemini: "GEMINI_API_KEY",
}

var defaultBackends = []string{
	string(m.BackendLlama),
	string(m.BackendQwen),
	string(m.BackendGemini),
	string(m.BackendGPT4o),
}

var globalLogger *slog.Logger

func init() {
	// Secrets are optional; a missing .env leaves the environment untouched.
	_ = godotenv.Load(filepath.Join(configFolderPath, dotenvFileName))

	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)

	viper.SetDefault(runMaxAttemptsKey, domain.DefaultMaxAttempts)
	viper.SetDefault(runMaxPatchFailuresKey, domain.DefaultMaxPatchFailures)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(runBackendsKey, defaultBackends)
	viper.SetDefault(runCoverageKey, false)

	viper.SetDefault(sandboxEngineKey, defaultEngine)
	viper.SetDefault(sandboxDockerfileDirKey, defaultDockerfileDir)
	viper.SetDefault(sandboxContextDirKey, defaultContextDir)
	viper.SetDefault(sandboxWorkdirKey, defaultWorkdir)
	viper.SetDefault(sandboxTestCommandKey, defaultTestCommand)
	viper.SetDefault(sandboxLintCommandKey, defaultLintCommand)
	viper.SetDefault(sandboxCoverageCommandKey, defaultCoverageCommand)
	viper.SetDefault(sandboxCoverageReportKey, defaultCoverageReport)
	viper.SetDefault(sandboxTimeoutKey, defaultSandboxTimeout.String())

	viper.SetDefault(llmTemperatureKey, defaultLLMTemperature)
	viper.SetDefault(llmRPSKey, defaultLLMRPS)
	viper.SetDefault(llmMockResponseKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// loadConfig resolves the batch configuration from viper and validates it.
func loadConfig() (domain.Config, error) {
	backends, err := parseBackends(viper.GetStringSlice(runBackendsKey))
	if err != nil {
		return domain.Config{}, err
	}

	parallel := viper.GetInt(runParallelConfigKey)
	if parallel < 0 {
		parallel = 0
	}

	cfg := domain.Config{
		Output:         viper.GetString(outputFlagName),
		Backends:       backends,
		Parallel:       uint(parallel),
		Engine:         viper.GetString(sandboxEngineKey),
		CommandTimeout: viper.GetDuration(sandboxTimeoutKey),
		Orchestrator: domain.OrchestratorConfig{
			MaxAttempts:      viper.GetInt(runMaxAttemptsKey),
			MaxPatchFailures: viper.GetInt(runMaxPatchFailuresKey),
			Coverage:         viper.GetBool(runCoverageKey),
		},
		Sandbox: domain.SandboxConfig{
			DockerfileDir:   viper.GetString(sandboxDockerfileDirKey),
			ContextDir:      viper.GetString(sandboxContextDirKey),
			Workdir:         viper.GetString(sandboxWorkdirKey),
			TestCommand:     viper.GetString(sandboxTestCommandKey),
			LintCommand:     viper.GetString(sandboxLintCommandKey),
			CoverageCommand: viper.GetString(sandboxCoverageCommandKey),
			CoverageReport:  viper.GetString(sandboxCoverageReportKey),
		},
		LLM: domain.LLMConfig{
			Temperature:  float32(viper.GetFloat64(llmTemperatureKey)),
			RPS:          viper.GetFloat64(llmRPSKey),
			MockResponse: viper.GetString(llmMockResponseKey),
		},
	}

	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}

	return cfg, nil
}

func parseBackends(values []string) ([]m.Backend, error) {
	backends := make([]m.Backend, 0, len(values))

	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}

			b, err := m.ParseBackend(part)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", runBackendsKey, err)
			}

			backends = append(backends, b)
		}
	}

	return backends, nil
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger installs a slog logger writing to a rotating file.
// Verbose forces the debug level.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	logLevel := parseSlogLevel(viper.GetString(logLevelKey), defaultLogLevelFallback)
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
