package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "fbchat"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage fbchat configuration.

Running bare 'fbchat config' is the same as 'fbchat config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# fbchat configuration
# See: fbchat config show (for effective values and sources)

# Survey server
server:
  # Websocket endpoint (ws:// or wss://)
  url: "{{ .ServerURL }}"

# Authentication
auth:
  # Bearer token sent when connecting (or set FBCHAT_AUTH_TOKEN)
  token: "{{ .AuthToken }}"

# Connection retries
connection:
  # Attempts per connect cycle before giving up (default: 5)
  max_attempts: {{ .MaxAttempts }}
  # Fixed delay between attempts (default: 1s)
  retry_delay: {{ .RetryDelay }}
  # Handshake timeout per attempt (default: 10s)
  dial_timeout: {{ .DialTimeout }}

# Session behaviour
session:
  # "conditional": low ratings (1-2) open a feedback step when the server asks
  # "inline": answer any question with free text instead of a rating
  feedback_mode: "{{ .FeedbackMode }}"
  # Clear the conversation when starting a new session (default: true)
  clear_transcript: {{ .ClearTranscript }}

# Terminal UI
ui:
  # Use the alternate screen buffer (default: true)
  alt_screen: {{ .AltScreen }}

# Logging (the terminal UI owns stdout, so logs go to a file)
log:
  file: "{{ .LogFile }}"
  # debug, info, warn or error (default: info)
  level: "{{ .LogLevel }}"
`

type configTemplateData struct {
	ServerURL       string
	AuthToken       string
	MaxAttempts     int
	RetryDelay      string
	DialTimeout     string
	FeedbackMode    string
	ClearTranscript bool
	AltScreen       bool
	LogFile         string
	LogLevel        string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		ServerURL:       viper.GetString("server.url"),
		AuthToken:       viper.GetString("auth.token"),
		MaxAttempts:     viper.GetInt("connection.max_attempts"),
		RetryDelay:      viper.GetDuration("connection.retry_delay").String(),
		DialTimeout:     viper.GetDuration("connection.dial_timeout").String(),
		FeedbackMode:    viper.GetString("session.feedback_mode"),
		ClearTranscript: viper.GetBool("session.clear_transcript"),
		AltScreen:       viper.GetBool("ui.alt_screen"),
		LogFile:         viper.GetString("log.file"),
		LogLevel:        viper.GetString("log.level"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "server.url", EnvVar: "FBCHAT_SERVER_URL"},
	{Key: "auth.token", EnvVar: "FBCHAT_AUTH_TOKEN", Secret: true},
	{Key: "connection.max_attempts", EnvVar: "FBCHAT_CONNECTION_MAX_ATTEMPTS"},
	{Key: "connection.retry_delay", EnvVar: "FBCHAT_CONNECTION_RETRY_DELAY"},
	{Key: "connection.dial_timeout", EnvVar: "FBCHAT_CONNECTION_DIAL_TIMEOUT"},
	{Key: "session.feedback_mode", EnvVar: "FBCHAT_SESSION_FEEDBACK_MODE"},
	{Key: "session.clear_transcript", EnvVar: "FBCHAT_SESSION_CLEAR_TRANSCRIPT"},
	{Key: "ui.alt_screen", EnvVar: "FBCHAT_UI_ALT_SCREEN"},
	{Key: "log.file", EnvVar: "FBCHAT_LOG_FILE"},
	{Key: "log.level", EnvVar: "FBCHAT_LOG_LEVEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, k := range configKeys {
		val := fmt.Sprint(viper.Get(k.Key))
		if k.Secret && val != "" {
			val = maskSecret(val)
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		if err := table.Append([]string{k.Key, val, source}); err != nil {
			return err
		}
	}
	return table.Render()
}

// maskSecret keeps only the last four characters of a credential.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'fbchat config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
