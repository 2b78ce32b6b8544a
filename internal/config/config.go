package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	WebRTC  WebRTCConfig  `yaml:"webrtc"`
	Session SessionConfig `yaml:"session"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	PublicURL       string        `yaml:"public_url" env:"PUBLIC_URL" env-default:""`
	StaticPath      string        `yaml:"static_path" env:"STATIC_PATH" env-default:""`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env:"STUN_SERVERS" env-default:""`
}

// SessionConfig groups the timing and sizing knobs of the realtime layer.
// Zero values are filled with the defaults the web client is tuned for.
type SessionConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval" env-default:"10s"`
	HealthSweepInterval time.Duration `yaml:"health_sweep_interval" env-default:"20s"`
	HeartbeatTimeout    time.Duration `yaml:"heartbeat_timeout" env-default:"40s"`
	RoomGracePeriod     time.Duration `yaml:"room_grace_period" env-default:"10m"`
	RoomSweepInterval   time.Duration `yaml:"room_sweep_interval" env-default:"1h"`
	EmptyRoomTTL        time.Duration `yaml:"empty_room_ttl" env-default:"1h"`
	ShareRequestTTL     time.Duration `yaml:"share_request_ttl" env-default:"5m"`
	ShareSweepInterval  time.Duration `yaml:"share_sweep_interval" env-default:"1m"`
	HistoryLimit        int           `yaml:"history_limit" env-default:"100"`
	ResyncLimit         int           `yaml:"resync_limit" env-default:"50"`
	EventsPerSecond     int           `yaml:"events_per_second" env-default:"25"`
	EventBurst          int           `yaml:"event_burst" env-default:"50"`
	ProbeWorkers        int           `yaml:"probe_workers" env-default:"8"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.PublicURL == "" {
		c.HTTP.PublicURL = "http://localhost:8080"
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
}
