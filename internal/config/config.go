package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading pipeline.
// It is constructed once per run and read-only thereafter.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	AssignmentsDir string
	SubmissionsDir string
	OutputDir      string
	DatabasePath   string

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIMaxTokens  int
	GradingMode      string
	EnableImages     bool
	EnableCodeTests  bool
	DockerHost       string
	ExecutionTimeout time.Duration
	SandboxMemoryMB  int
	SandboxCPUShares int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADELENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grade Lens")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("assignments.dir", "assignments")
	v.SetDefault("submissions.dir", "submissions")
	v.SetDefault("output.dir", "output")
	v.SetDefault("database.path", "gradelens.db")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("grading.mode", "full")
	v.SetDefault("enable_image_processing", true)
	v.SetDefault("enable_code_execution", false)
	v.SetDefault("execution_timeout_ms", 5000)
	v.SetDefault("sandbox_memory_mb", 256)
	v.SetDefault("sandbox_cpu_shares", 512)

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		AssignmentsDir:   v.GetString("assignments.dir"),
		SubmissionsDir:   v.GetString("submissions.dir"),
		OutputDir:        v.GetString("output.dir"),
		DatabasePath:     v.GetString("database.path"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai.model"),
		OpenAIMaxTokens:  v.GetInt("openai.max_tokens"),
		GradingMode:      strings.ToLower(v.GetString("grading.mode")),
		EnableImages:     v.GetBool("enable_image_processing"),
		EnableCodeTests:  v.GetBool("enable_code_execution"),
		DockerHost:       v.GetString("docker_host"),
		ExecutionTimeout: time.Duration(timeoutMs) * time.Millisecond,
		SandboxMemoryMB:  v.GetInt("sandbox_memory_mb"),
		SandboxCPUShares: v.GetInt("sandbox_cpu_shares"),
	}

	if cfg.SandboxMemoryMB <= 0 {
		cfg.SandboxMemoryMB = 256
	}

	if cfg.SandboxCPUShares <= 0 {
		cfg.SandboxCPUShares = 512
	}

	return cfg, nil
}
