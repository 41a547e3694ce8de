package main

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:9998"`
	Colours       bool   `env:"CHAT_COLOURS,default=true"`
}
