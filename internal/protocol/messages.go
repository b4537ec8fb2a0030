package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Grid            GridParams `json:"grid"`
	Seed            int64      `json:"seed"`
}

type GridParams struct {
	Rows   int `json:"rows"`
	Cols   int `json:"cols"`
	TickMs int `json:"tick_ms"`
}

// Intent names carried by INTENT messages.
const (
	IntentLeft   = "LEFT"
	IntentRight  = "RIGHT"
	IntentRotate = "ROTATE"
	IntentDrop   = "DROP"
)

// INTENT (client -> server)
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Intent          string `json:"intent"`
}

// RESTART (client -> server) discards the current game and starts a new one.
type RestartMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// STATE (server -> client), pushed after every change.
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Tick            uint64     `json:"tick"`
	Lines           int        `json:"lines"`
	Over            bool       `json:"over"`
	Settled         []CellJSON `json:"settled"`
	Falling         *PieceJSON `json:"falling,omitempty"`
	Next            *PieceJSON `json:"next,omitempty"`
}

type CellJSON struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Color string `json:"color"`
}

type PieceJSON struct {
	Shape       string   `json:"shape"`
	Orientation string   `json:"orientation"`
	Color       string   `json:"color"`
	Cells       [][2]int `json:"cells"`
}

// GAMEOVER (server -> client)
type GameOverMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	Lines           int    `json:"lines"`
	Ticks           uint64 `json:"ticks"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
