package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/revlearn/internal/export"
	"github.com/abhisek/revlearn/internal/logging"
	"github.com/abhisek/revlearn/internal/practice"
	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/session"
)

// Config is the top-level configuration structure.
type Config struct {
	Task      TaskConfig      `mapstructure:"task"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       logging.Config  `mapstructure:"log"`
	Export    ExportConfig    `mapstructure:"export"`
	Collector CollectorConfig `mapstructure:"collector"`
}

// TaskConfig holds the experiment parameters.
type TaskConfig struct {
	// Keys are the response keys; their order defines key indexes.
	Keys []string `mapstructure:"keys"`

	TrialDuration    time.Duration `mapstructure:"trial_duration"`
	FeedbackDuration time.Duration `mapstructure:"feedback_duration"`
	FixationDuration time.Duration `mapstructure:"fixation_duration"`
	PracticeGateWait time.Duration `mapstructure:"practice_gate_wait"`
	SummaryWait      time.Duration `mapstructure:"summary_wait"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`

	// ForceCorrect keeps the feedback screen up until the correct key is
	// pressed.
	ForceCorrect bool `mapstructure:"force_correct"`

	RunPractice           bool `mapstructure:"run_practice"`
	RunMain               bool `mapstructure:"run_main"`
	FixedPracticeBlock    int  `mapstructure:"fixed_practice_block"`
	ReversalPracticeBlock int  `mapstructure:"reversal_practice_block"`
	FirstMainBlock        int  `mapstructure:"first_main_block"`
	NumBlocks             int  `mapstructure:"num_blocks"`

	FullRange                reversal.Range `mapstructure:"full_range"`
	PracticeFirstRange       reversal.Range `mapstructure:"practice_first_range"`
	PracticeSecondRange      reversal.Range `mapstructure:"practice_second_range"`
	PracticeInitialThreshold int            `mapstructure:"practice_initial_threshold"`

	MasteryWindow     int `mapstructure:"mastery_window"`
	MasteryMinCorrect int `mapstructure:"mastery_min_correct"`
	ReversalGateMin   int `mapstructure:"reversal_gate_min"`
	StimOffset        int `mapstructure:"stim_offset"`

	ImageRoot string `mapstructure:"image_root"`
	EndLink   string `mapstructure:"end_link"`

	// Seed fixes the random source; 0 is unseeded.
	Seed uint64 `mapstructure:"seed"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig selects the export format and sinks.
type ExportConfig struct {
	Format string `mapstructure:"format"`

	// Dir enables the local directory sink.
	Dir string `mapstructure:"dir"`

	// Store keeps a copy of every export in the session database.
	Store bool `mapstructure:"store"`

	HTTP  HTTPExportConfig   `mapstructure:"http"`
	GCS   GCSExportConfig    `mapstructure:"gcs"`
	Retry export.RetryConfig `mapstructure:"retry"`
}

// HTTPExportConfig points at a collector.
type HTTPExportConfig struct {
	SaveURL   string        `mapstructure:"save_url"`
	UploadURL string        `mapstructure:"upload_url"`
	MailURL   string        `mapstructure:"mail_url"`
	DataDir   string        `mapstructure:"data_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// GCSExportConfig enables the Cloud Storage sink.
type GCSExportConfig struct {
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	Credentials string `mapstructure:"credentials"`
	Emulator    string `mapstructure:"emulator"`
}

// CollectorConfig configures the collect server.
type CollectorConfig struct {
	Addr         string `mapstructure:"addr"`
	Root         string `mapstructure:"root"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`

	// MailForwardURL receives /mail notifications; empty only queues them.
	MailForwardURL string `mapstructure:"mail_forward_url"`

	// Upload sends /upload files to the export.gcs bucket.
	Upload bool `mapstructure:"upload"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("task.keys", []string{"j", "k", "l"})
	v.SetDefault("task.trial_duration", 2*time.Second)
	v.SetDefault("task.feedback_duration", time.Second)
	v.SetDefault("task.fixation_duration", 500*time.Millisecond)
	v.SetDefault("task.practice_gate_wait", 30*time.Second)
	v.SetDefault("task.summary_wait", 60*time.Second)
	v.SetDefault("task.settle_delay", 5*time.Second)
	v.SetDefault("task.force_correct", false)
	v.SetDefault("task.run_practice", true)
	v.SetDefault("task.run_main", true)
	v.SetDefault("task.fixed_practice_block", 1)
	v.SetDefault("task.reversal_practice_block", 2)
	v.SetDefault("task.first_main_block", 3)
	v.SetDefault("task.num_blocks", 23)
	v.SetDefault("task.full_range.low", reversal.FullBlockRange.Low)
	v.SetDefault("task.full_range.high", reversal.FullBlockRange.High)
	v.SetDefault("task.practice_first_range.low", reversal.PracticeFirstRange.Low)
	v.SetDefault("task.practice_first_range.high", reversal.PracticeFirstRange.High)
	v.SetDefault("task.practice_second_range.low", reversal.FullBlockRange.Low)
	v.SetDefault("task.practice_second_range.high", reversal.FullBlockRange.High)
	v.SetDefault("task.practice_initial_threshold", 5)
	v.SetDefault("task.mastery_window", 10)
	v.SetDefault("task.mastery_min_correct", 8)
	v.SetDefault("task.reversal_gate_min", 2)
	v.SetDefault("task.stim_offset", 2)
	v.SetDefault("task.image_root", "images")
	v.SetDefault("task.end_link", "")
	v.SetDefault("task.seed", 0)

	v.SetDefault("store.path", "")

	lc := logging.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.console", lc.Console)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", lc.MaxSize)
	v.SetDefault("log.max_backups", lc.MaxBackups)
	v.SetDefault("log.max_age", lc.MaxAge)
	v.SetDefault("log.compress", lc.Compress)

	rc := export.DefaultRetryConfig()
	v.SetDefault("export.format", string(export.FormatCSV))
	v.SetDefault("export.dir", "data")
	v.SetDefault("export.store", true)
	v.SetDefault("export.http.save_url", "")
	v.SetDefault("export.http.upload_url", "")
	v.SetDefault("export.http.mail_url", "")
	v.SetDefault("export.http.data_dir", "data")
	v.SetDefault("export.http.timeout", 30*time.Second)
	v.SetDefault("export.gcs.bucket", "")
	v.SetDefault("export.gcs.prefix", "")
	v.SetDefault("export.gcs.credentials", "")
	v.SetDefault("export.gcs.emulator", "")
	v.SetDefault("export.retry.max_attempts", rc.MaxAttempts)
	v.SetDefault("export.retry.initial_wait", rc.InitialWait)
	v.SetDefault("export.retry.max_wait", rc.MaxWait)
	v.SetDefault("export.retry.multiplier", rc.Multiplier)

	v.SetDefault("collector.addr", ":8080")
	v.SetDefault("collector.root", "collected")
	v.SetDefault("collector.max_body_bytes", 32<<20)
	v.SetDefault("collector.mail_forward_url", "")
	v.SetDefault("collector.upload", false)
}

// Load reads configuration from defaults, an optional YAML file and
// REVLEARN_* environment variables, in increasing priority. An empty path
// searches ./revlearn.yaml and $XDG_CONFIG_HOME/revlearn/revlearn.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("revlearn")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "revlearn"))
		}
	}

	v.SetEnvPrefix("REVLEARN") // e.g., REVLEARN_TASK_NUM_BLOCKS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be checked per field.
func (c *Config) Validate() error {
	if len(c.Task.Keys) < 2 {
		return fmt.Errorf("task.keys: need at least 2 response keys, got %d", len(c.Task.Keys))
	}
	seen := make(map[string]bool)
	for _, k := range c.Task.Keys {
		if k == "" || seen[k] {
			return fmt.Errorf("task.keys: empty or duplicate key %q", k)
		}
		seen[k] = true
	}
	if c.Task.TrialDuration <= 0 {
		return fmt.Errorf("task.trial_duration must be positive")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if err := c.Session().Validate(); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	return nil
}

// Session maps the task settings onto the engine configuration.
func (c *Config) Session() session.Config {
	t := c.Task
	return session.Config{
		Schedule: schedule.Options{
			StimOffset:            t.StimOffset,
			GateWait:              t.PracticeGateWait,
			SummaryWait:           t.SummaryWait,
			SettleDelay:           t.SettleDelay,
			FixedPracticeBlock:    t.FixedPracticeBlock,
			ReversalPracticeBlock: t.ReversalPracticeBlock,
			FirstMainBlock:        t.FirstMainBlock,
			NumBlocks:             t.NumBlocks,
			RunPractice:           t.RunPractice,
			RunMain:               t.RunMain,
		},
		FullRange:                t.FullRange,
		PracticeFirstRange:       t.PracticeFirstRange,
		PracticeSecondRange:      t.PracticeSecondRange,
		PracticeInitialThreshold: t.PracticeInitialThreshold,
		MasteryGate:              practice.MasteryGate{Window: t.MasteryWindow, MinCorrect: t.MasteryMinCorrect},
		ReversalGate:             practice.ReversalGate{MinReversals: t.ReversalGateMin},
		ImageRoot:                t.ImageRoot,
		EndLink:                  t.EndLink,
	}
}
