package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	DefaultTimeout   time.Duration
	Runtime          Runtime
	Metrics          Metrics
	Admin            Admin
	Logs             Logs
	Upstream         Upstream
	Gateway          Gateway
	Health           Health
	Activity         Activity
	Polling          Polling
	EventBus         EventBus
	Sink             Sink
	DeadLetterQueue  S3
	Archive          S3
	Kafka            Kafka
	MQTT             MQTT
	Valkey           Valkey
}

// Runtime tunes the go scheduler and GC from the container limits.
type Runtime struct {
	MemLimitRatio float64
}

type Metrics struct {
	Port int
}

type Admin struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

type Upstream struct {
	URL             string
	Timeout         time.Duration
	RateLimitStatus int
	AuthStatuses    []int
	Creds           UpstreamCreds
}

type UpstreamCreds struct {
	Account  string
	Password string
}

func (c UpstreamCreds) String() string {
	if c.Account != "" && c.Password != "" {
		return "creds set"
	}

	return "no creds"
}

type Gateway struct {
	MinSpacing       time.Duration
	MaxRetries       uint
	BackoffBase      time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	LiveTTL          time.Duration
	ReferenceTTL     time.Duration
	CacheSize        int
}

type Health struct {
	Window            int
	HistorySize       int
	LatencyWeight     float64
	RateLimitCooldown time.Duration
	FallbackThreshold int
	SuccessRateFloor  float64
	LatencyCeiling    time.Duration
}

type Activity struct {
	ActiveWindow        time.Duration
	IdleWindow          time.Duration
	MovingSpeed         float64
	FastInterval        time.Duration
	MediumInterval      time.Duration
	SlowInterval        time.Duration
	HighActivityRatio   float64
	MediumActivityRatio float64
}

type Polling struct {
	SessionID          string
	EntityIDs          []string
	Interval           time.Duration
	FetchTimeout       time.Duration
	Topic              string
	FallbackRetryEvery int
}

type EventBus struct {
	TickInterval          time.Duration
	HistorySize           int
	MaxQueueSize          int
	MaxConcurrentHandlers int
	HandlerTimeout        time.Duration
}

// Sink configures the downstream telemetry pipeline.
type Sink struct {
	Timeout    time.Duration
	MaxAttempt uint
	RetryDelay time.Duration
	// StaleAfter is the age above which a written position is counted as stale.
	StaleAfter time.Duration
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker   KafkaBroker
	Producer KafkaProducer
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

type KafkaCreds struct {
	User      string
	Password  string
	Mechanism string
}

func (c KafkaCreds) String() string {
	if c.User != "" && c.Password != "" {
		return "creds set (" + c.Mechanism + ")"
	}

	return "no creds"
}

type KafkaProducer struct {
	Topic    string
	RetryMax int
}

type MQTT struct {
	URL           string
	ClientID      string
	TopicTemplate string
	QoS           byte
	Retained      bool
	Creds         MQTTCreds
}

type MQTTCreds struct {
	Username string
	Password string
}

func (c MQTTCreds) String() string {
	if c.Username != "" && c.Password != "" {
		return "creds set"
	}

	return "no creds"
}

type Valkey struct {
	URL        string
	Key        string
	Expiration time.Duration
	Creds      ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}
