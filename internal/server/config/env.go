package config

import (
	"github.com/dmitrijs2005/todoapi/internal/flagx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// parseEnv overlays Config with process environment variables named by the
// `env` struct tags. Variables that are not set leave the field unchanged.
//
// When -env-file is given, that dotenv file is loaded into the process
// environment first and must exist; otherwise a ./.env file is loaded if
// present. Variables already set in the environment win over the file.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}
