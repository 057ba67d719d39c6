package config

// Chat definition chat_service YAML structure
type Chat struct {
	Port string `mapstructure:"port"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`

	Channel    ChannelConfig    `mapstructure:"channel"`
	Message    MessageConfig    `mapstructure:"message"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

// ChannelConfig definition realtime channel setting
type ChannelConfig struct {
	// Prefix topic prefix, conversation channel {prefix}.{id} and
	// personal channel {prefix}.user.{id}
	Prefix string `mapstructure:"prefix"`
	// SubscriberBuffer outbound event buffer per connection
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// MessageConfig definition message setting
type MessageConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

// PaginationConfig definition page sizes
type PaginationConfig struct {
	MessagesPerPage      int `mapstructure:"messages_per_page"`
	ConversationsPerPage int `mapstructure:"conversations_per_page"`
}

// RetentionConfig definition cleanup job setting
type RetentionConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// defaults when the YAML omits a section
const (
	DefaultChannelPrefix        = "chat"
	DefaultSubscriberBuffer     = 64
	DefaultMessageMaxLength     = 5000
	DefaultMessagesPerPage      = 50
	DefaultConversationsPerPage = 20
)

// ApplyDefaults fill zero values with package defaults
func (c *Chat) ApplyDefaults() {
	if c.Channel.Prefix == "" {
		c.Channel.Prefix = DefaultChannelPrefix
	}
	if c.Channel.SubscriberBuffer <= 0 {
		c.Channel.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if c.Message.MaxLength <= 0 {
		c.Message.MaxLength = DefaultMessageMaxLength
	}
	if c.Pagination.MessagesPerPage <= 0 {
		c.Pagination.MessagesPerPage = DefaultMessagesPerPage
	}
	if c.Pagination.ConversationsPerPage <= 0 {
		c.Pagination.ConversationsPerPage = DefaultConversationsPerPage
	}
}
