package discord

// Gateway intents (https://discord.com/developers/docs/topics/gateway#gateway-intents)
const (
	IntentGuilds           = 1 << 0
	IntentGuildVoiceStates = 1 << 7
	IntentGuildMessages    = 1 << 9
	IntentDirectMessages   = 1 << 12
	IntentMessageContent   = 1 << 15
)

// DefaultIntents covers voice presence plus the admin command surface.
const DefaultIntents = IntentGuilds | IntentGuildVoiceStates | IntentGuildMessages | IntentDirectMessages | IntentMessageContent

// Discord API constants
const (
	APIBaseURL = "https://discord.com/api/v10"

	OpcodeDispatch  = 0
	OpcodeHeartbeat = 1
	OpcodeIdentify  = 2
	OpcodeResume    = 6
	OpcodeHello     = 10

	// Close codes 4000-4009 are resumable; 4014 means a bad token.
	CloseCodeUnknownError   = 4000
	CloseCodeSessionTimeout = 4009
	CloseCodeInvalidToken   = 4014
)

// GatewayEvent is one frame from the gateway.
type GatewayEvent struct {
	Op int         `json:"op"`
	D  interface{} `json:"d"`
	S  *int        `json:"s"`
	T  *string     `json:"t"`
}

// Heartbeat keeps the gateway connection alive.
type Heartbeat struct {
	Op int  `json:"op"`
	D  *int `json:"d"`
}

// Identify authenticates a fresh gateway connection.
type Identify struct {
	Op int          `json:"op"`
	D  IdentifyData `json:"d"`
}

// IdentifyData contains the identify payload.
type IdentifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

// Resume re-attaches to an existing gateway session.
type Resume struct {
	Op int        `json:"op"`
	D  ResumeData `json:"d"`
}

// ResumeData contains the resume payload.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
}

// Hello carries the heartbeat interval.
type Hello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// User is a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Member is a guild member.
type Member struct {
	User User   `json:"user"`
	Nick string `json:"nick,omitempty"`
}

// VoiceState is the VOICE_STATE_UPDATE event payload. An empty ChannelID
// means the user left voice entirely.
type VoiceState struct {
	GuildID   string  `json:"guild_id,omitempty"`
	ChannelID string  `json:"channel_id"`
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
	Member    *Member `json:"member,omitempty"`
}

// MessageCreate is the MESSAGE_CREATE event payload.
type MessageCreate struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
}

// Message is a Discord message as returned by the REST API.
type Message struct {
	ID        string `json:"id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Channel is the subset of channel fields the bridge reads.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Ready is the READY event payload.
type Ready struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
}
