package discovergrants

import "time"

type Config struct {
	Timeout        time.Duration
	CandidateLimit int
	DefaultLimit   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        60 * time.Second,
		CandidateLimit: 500,
		DefaultLimit:   20,
	}
}
