package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Completion API.
	viper.SetDefault("llm.endpoint", "https://api.openai.com")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.request_timeout", 90*time.Second)

	// Telegram transport.
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 10*time.Minute)
	viper.SetDefault("telegram.max_concurrency", 3)
	viper.SetDefault("telegram.allowed_chat_ids", []string{})
	viper.SetDefault("telegram.typing_interval", 4*time.Second)
	// Zero edits the streamed message on every fragment.
	viper.SetDefault("telegram.stream_edit_interval", 0*time.Second)

	// Conversation state.
	viper.SetDefault("session.idle_timeout", 10*time.Minute)
}
