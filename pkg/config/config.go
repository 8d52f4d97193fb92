package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Views     ViewsConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig describes the working week and the allocator preferences.
// Clock values are naive local "HH:MM" strings; break windows use "HH:MM-HH:MM".
type TimetableConfig struct {
	ActiveDays                 []int
	DayStart                   string
	DayEnd                     string
	BlockMinutes               int
	BreakWindows               []string
	TeacherWeeklyHourCap       int
	PreferSingleTeacher        bool
	PreferredConsecutiveBlocks int
	MaxConsecutiveBlocks       int
}

// ViewsConfig tunes the read-side projections.
type ViewsConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig governs timetable export rendering.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		ActiveDays:                 parseDayList(v.GetString("TIMETABLE_ACTIVE_DAYS")),
		DayStart:                   v.GetString("TIMETABLE_DAY_START"),
		DayEnd:                     v.GetString("TIMETABLE_DAY_END"),
		BlockMinutes:               v.GetInt("TIMETABLE_BLOCK_MINUTES"),
		BreakWindows:               splitAndTrim(v.GetString("TIMETABLE_BREAK_WINDOWS")),
		TeacherWeeklyHourCap:       v.GetInt("TIMETABLE_TEACHER_WEEKLY_HOUR_CAP"),
		PreferSingleTeacher:        v.GetBool("TIMETABLE_PREFER_SINGLE_TEACHER"),
		PreferredConsecutiveBlocks: v.GetInt("TIMETABLE_PREFERRED_CONSECUTIVE_BLOCKS"),
		MaxConsecutiveBlocks:       v.GetInt("TIMETABLE_MAX_CONSECUTIVE_BLOCKS"),
	}

	cfg.Views = ViewsConfig{
		CacheTTL: parseDuration(v.GetString("VIEWS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "emploi")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Monday through Saturday; Sunday is never generated.
	v.SetDefault("TIMETABLE_ACTIVE_DAYS", "1,2,3,4,5,6")
	v.SetDefault("TIMETABLE_DAY_START", "08:00")
	v.SetDefault("TIMETABLE_DAY_END", "16:00")
	v.SetDefault("TIMETABLE_BLOCK_MINUTES", 60)
	v.SetDefault("TIMETABLE_BREAK_WINDOWS", "12:00-13:00")
	v.SetDefault("TIMETABLE_TEACHER_WEEKLY_HOUR_CAP", 20)
	v.SetDefault("TIMETABLE_PREFER_SINGLE_TEACHER", true)
	v.SetDefault("TIMETABLE_PREFERRED_CONSECUTIVE_BLOCKS", 2)
	v.SetDefault("TIMETABLE_MAX_CONSECUTIVE_BLOCKS", 3)

	v.SetDefault("VIEWS_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func parseDayList(raw string) []int {
	days := make([]int, 0, 6)
	for _, part := range splitAndTrim(raw) {
		switch part {
		case "1", "2", "3", "4", "5", "6":
			days = append(days, int(part[0]-'0'))
		}
	}
	return days
}
