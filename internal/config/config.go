package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	APIAddr       string `env:"API_ADDR" envDefault:":8080"`
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	QueueKey      string `env:"QUEUE_KEY" envDefault:"queue:jobs"`

	GenAIAPIKey   string `env:"GENAI_API_KEY,notEmpty"`
	GenAIProject  string `env:"GENAI_PROJECT,notEmpty"`
	GenAILocation string `env:"GENAI_LOCATION" envDefault:"us-central1"`
	GenAIModel    string `env:"GENAI_MODEL" envDefault:"gemini-1.5-flash"`

	// WorkerToken guards the worker trigger when set.
	WorkerToken       string        `env:"WORKER_TOKEN"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"10s"`
	SchedulerBatch    int           `env:"SCHEDULER_BATCH" envDefault:"1"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if c.SchedulerBatch < 1 {
		return Config{}, errors.Errorf("SCHEDULER_BATCH must be >= 1, got %d", c.SchedulerBatch)
	}
	return c, nil
}

func (c Config) Development() bool { return c.AppEnv == "development" }
