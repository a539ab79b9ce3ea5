package db

type Config struct {
	// Dialect selects the driver. Only sqlite is wired today; the field stays
	// so the DSN shape is explicit in config files.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`
	DSN     string `conf:"dsn" yaml:"dsn" json:"dsn"`
	Debug   bool   `conf:"debug" yaml:"debug" json:"debug"`
}
