package cmd

import (
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

// LoadDotEnv reads .env (or the file named by CHANMIRROR_ENV_FILE) into the
// environment. Variables already set win.
func LoadDotEnv() {
	path := os.Getenv("CHANMIRROR_ENV_FILE")
	if path == "" {
		path = ".env"
	}

	_ = godotenv.Load(path)
}

func LogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

func DatabaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Database connection URL (file://, pebble://, postgres://)",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}

func EventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}

func TracingFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "otel-enabled",
		Usage:   "Export traces over OTLP/HTTP",
		Sources: cli.EnvVars("OTEL_ENABLED"),
	}
}

// AdapterFlags configure the Slack source and the Notion target.
func AdapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "slack-token",
			Usage:   "Slack bot token",
			Sources: cli.EnvVars("SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "slack-base-url",
			Usage:   "Slack Web API base URL",
			Value:   "https://slack.com/api",
			Sources: cli.EnvVars("SLACK_BASE_URL"),
		},
		&cli.FloatFlag{
			Name:    "slack-rps",
			Usage:   "Slack requests per second",
			Value:   1,
			Sources: cli.EnvVars("SLACK_RPS"),
		},
		&cli.StringFlag{
			Name:    "notion-token",
			Usage:   "Notion integration token",
			Sources: cli.EnvVars("NOTION_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "notion-base-url",
			Usage:   "Notion API base URL",
			Value:   "https://api.notion.com",
			Sources: cli.EnvVars("NOTION_BASE_URL"),
		},
		&cli.FloatFlag{
			Name:    "notion-rps",
			Usage:   "Notion requests per second",
			Value:   3,
			Sources: cli.EnvVars("NOTION_RPS"),
		},
		&cli.IntFlag{
			Name:    "fetch-limit",
			Usage:   "Most recent messages read per channel and run",
			Value:   200,
			Sources: cli.EnvVars("FETCH_LIMIT"),
		},
	}
}

// Join concatenates flag groups.
func Join(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag

	for _, group := range groups {
		flags = append(flags, group...)
	}

	return flags
}
