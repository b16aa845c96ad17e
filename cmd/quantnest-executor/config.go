package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantnest/executor/pkg/actions/gmail"
	cli "github.com/urfave/cli/v3"
)

type Config struct {
	DatabaseURL  string        `validate:"required"`
	EventBus     string        `validate:"oneof=gochannel kafka"`
	KafkaBrokers string        `validate:"required_if=EventBus kafka"`
	RedisURL     string        `validate:"omitempty,url"`
	PollInterval time.Duration `validate:"gte=100ms"`
	Cooldown     time.Duration `validate:"gte=0"`
	HTTPPort     int           `validate:"gte=0,lte=65535"`
	OtelEnabled  bool
	SMTP         gmail.SMTPConfig `validate:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func configFromCommand(command *cli.Command) (*Config, error) {
	config := &Config{
		DatabaseURL:  command.String("database-url"),
		EventBus:     command.String("event-bus"),
		KafkaBrokers: command.String("kafka-brokers"),
		RedisURL:     command.String("redis-url"),
		PollInterval: command.Duration("poll-interval"),
		Cooldown:     command.Duration("cooldown"),
		HTTPPort:     command.Int("http-port"),
		OtelEnabled:  command.Bool("otel-enabled"),
		SMTP: gmail.SMTPConfig{
			Host:     command.String("smtp-host"),
			Port:     command.Int("smtp-port"),
			Username: command.String("smtp-username"),
			Password: command.String("smtp-password"),
			From:     command.String("smtp-from"),
		},
	}

	if config.SMTP.From == "" {
		config.SMTP.From = config.SMTP.Username
	}

	err := config.Validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the assembled configuration. SMTP is only checked once a host is set.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.SMTP.Host != "" {
		err = validate.Struct(c.SMTP)
		if err != nil {
			return fmt.Errorf("invalid SMTP configuration: %w", err)
		}
	}

	return nil
}
