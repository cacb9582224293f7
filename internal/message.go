package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

const (
	MessageRoomSnapshot = "room_snapshot"
	MessageTimerUpdate  = "timer_update"
	MessageRoomClosed   = "room_closed"
	MessageError        = "error"
)

type TimerUpdateData struct {
	TimeRemaining int64     `json:"time_remaining_ms"`
	Phase         GamePhase `json:"phase"`
	IsActive      bool      `json:"is_active"`
	Revealing     bool      `json:"revealing"`
}

type RoomSnapshotData struct {
	Room          *Room  `json:"room"`
	Me            string `json:"me,omitempty"`
	IsHost        bool   `json:"is_host"`
	TimeRemaining int64  `json:"time_remaining_ms"`
	Revealing     bool   `json:"revealing"`
	Notice        string `json:"notice,omitempty"`
}

type RoomClosedData struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
