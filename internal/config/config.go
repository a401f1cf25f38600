package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	JWTSecret   string
	// SystemKeyHash is the bcrypt hash of the key automation callers send
	// to act as SYSTEM.
	SystemKeyHash string
	RedisURL      string
	LockTimeout   time.Duration

	// KafkaBrokers, when set, adds a Kafka topic to event delivery.
	KafkaBrokers []string
	KafkaTopic   string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	Policy ProcessPolicy
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getenv("PORT", "3000"),
		Env:                getenv("APP_ENV", "production"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SystemKeyHash:      os.Getenv("SYSTEM_KEY_HASH"),
		RedisURL:           os.Getenv("REDIS_URL"),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     os.Getenv("SUPABASE_BUCKET"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         os.Getenv("KAFKA_TOPIC"),
		LockTimeout:        5 * time.Second,
		Policy:             DefaultPolicy(),
	}

	if raw := os.Getenv("LOCK_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, errors.Newf("LOCK_TIMEOUT must be a positive duration, got %q", raw)
		}
		cfg.LockTimeout = d
	}

	if path := os.Getenv("PROCESS_POLICY_FILE"); path != "" {
		p, err := LoadPolicy(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = p
	}

	if cfg.JWTSecret == "" && cfg.Env != "dev" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func (c Config) IsDev() bool { return c.Env == "dev" }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

/* ============================ Process policy ============================= */

// ProcessPolicy says, per process type, whether a lawyer must collect
// documents before work starts. Unknown types fall back to Default.
type ProcessPolicy struct {
	Default   bool            `yaml:"documents_required_by_default"`
	Processes map[string]bool `yaml:"processes"`
}

// DefaultPolicy requires documents for every process type.
func DefaultPolicy() ProcessPolicy {
	return ProcessPolicy{Default: true, Processes: map[string]bool{}}
}

func (p ProcessPolicy) DocumentsRequired(processType string) bool {
	if v, ok := p.Processes[strings.ToLower(strings.TrimSpace(processType))]; ok {
		return v
	}
	return p.Default
}

// LoadPolicy reads a YAML policy file:
//
//	documents_required_by_default: true
//	processes:
//	  consultation: false
//	  labor: true
func LoadPolicy(path string) (ProcessPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ProcessPolicy{}, errors.Wrapf(err, "read process policy %s", path)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (ProcessPolicy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return ProcessPolicy{}, errors.Wrap(err, "parse process policy")
	}
	normalized := make(map[string]bool, len(p.Processes))
	for k, v := range p.Processes {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	p.Processes = normalized
	return p, nil
}
