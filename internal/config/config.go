package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIURL            string
	RealtimeURL       string
	SessionToken      string
	Transports        []string
	Reconnect         bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HTTPTimeout       time.Duration
	BusinessID        string
	QueueID           string
	UserID            string
	AlertProvider     string
	MetricsAddr       string
	Tracing           Tracing
}

// Tracing mirrors the standard OTLP exporter variables.
type Tracing struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Version     string
}

func Load() Config {
	return Config{
		APIURL:            baseURL("BOOKING_API_URL", "http://localhost:8080"),
		RealtimeURL:       baseURL("REALTIME_URL", "http://localhost:8085/realtime"),
		SessionToken:      os.Getenv("SESSION_TOKEN"),
		Transports:        readEnv("REALTIME_TRANSPORTS", []string{"websocket", "xhr-polling"}, parseList),
		Reconnect:         readEnv("REALTIME_RECONNECT", true, strconv.ParseBool),
		ReconnectAttempts: readEnv("REALTIME_RECONNECT_ATTEMPTS", 5, strconv.Atoi),
		ReconnectDelay:    readEnv("REALTIME_RECONNECT_DELAY_SECONDS", time.Second, parseSeconds),
		HTTPTimeout:       readEnv("HTTP_TIMEOUT_SECONDS", 10*time.Second, parseSeconds),
		BusinessID:        strings.TrimSpace(os.Getenv("BUSINESS_ID")),
		QueueID:           strings.TrimSpace(os.Getenv("QUEUE_ID")),
		UserID:            strings.TrimSpace(os.Getenv("USER_ID")),
		AlertProvider:     os.Getenv("ALERT_PROVIDER"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		Tracing: Tracing{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    readEnv("OTEL_EXPORTER_OTLP_INSECURE", false, strconv.ParseBool),
			SampleRatio: readEnv("OTEL_TRACES_SAMPLER_ARG", 1.0, parseRatio),
			Version:     readEnv("BOOKING_CLIENT_VERSION", "dev", parseString),
		},
	}
}

// readEnv returns fallback when key is unset or does not parse.
func readEnv[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		return fallback
	}
	return value
}

func baseURL(key, fallback string) string {
	return strings.TrimRight(readEnv(key, fallback, parseString), "/")
}

func parseString(raw string) (string, error) {
	return raw, nil
}

// parseSeconds reads whole seconds; zero or negative disables the delay.
func parseSeconds(raw string) (time.Duration, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}
	return time.Duration(n) * time.Second, nil
}

func parseRatio(raw string) (float64, error) {
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if ratio < 0 || ratio > 1 {
		return 0, strconv.ErrRange
	}
	return ratio, nil
}

func parseList(raw string) ([]string, error) {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return nil, strconv.ErrSyntax
	}
	return values, nil
}
