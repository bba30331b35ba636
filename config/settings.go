package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Settings holds everything read from the environment at startup.
type Settings struct {
	Env               string
	DatabaseURL       string
	SecretKey         string
	Port              string
	TokenTTL          time.Duration
	SchedulerInterval time.Duration
	Location          *time.Location
	CORSOrigins       []string

	GPIOEnabled bool

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	HLSDir        string
	CameraDevice  string
	FFmpegBin     string
	ViewerTimeout time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (Settings, error) {
	godotenv.Load()

	s := Settings{
		Env:             getenv("APP_ENV", "production"),
		DatabaseURL:     getenv("DATABASE_URL", "sqlite://greenhouse.db"),
		SecretKey:       os.Getenv("SECRET_KEY"),
		Port:            getenv("PORT", "5000"),
		CORSOrigins:     splitList(getenv("CORS_ORIGINS", "http://localhost:5000")),
		GPIOEnabled:     getenvBool("GPIO_ENABLED", false),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getenv("MQTT_CLIENT_ID", "greenhouse"),
		MQTTTopicPrefix: getenv("MQTT_TOPIC_PREFIX", "greenhouse"),
		InfluxURL:       os.Getenv("INFLUX_URL"),
		InfluxToken:     os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:       getenv("INFLUX_ORG", "greenhouse"),
		InfluxBucket:    getenv("INFLUX_BUCKET", "greenhouse"),
		HLSDir:          getenv("HLS_DIR", "/tmp/hls"),
		CameraDevice:    getenv("CAMERA_DEVICE", "/dev/video0"),
		FFmpegBin:       getenv("FFMPEG_BIN", "ffmpeg"),
	}
	if s.SecretKey == "" {
		return s, errors.New("no SECRET_KEY set; refusing to start without a token signing key")
	}

	var err error
	if s.TokenTTL, err = getenvDuration("TOKEN_TTL", time.Hour); err != nil {
		return s, err
	}
	if s.SchedulerInterval, err = getenvDuration("SCHEDULER_INTERVAL", 60*time.Second); err != nil {
		return s, err
	}
	if s.ViewerTimeout, err = getenvDuration("VIEWER_TIMEOUT", 30*time.Second); err != nil {
		return s, err
	}
	tz := getenv("TIMEZONE", "America/Chicago")
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return s, errors.Wrapf(err, "loading timezone %q", tz)
	}
	return s, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
