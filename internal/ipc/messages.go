package ipc

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

type handshakeRequest struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type commandRequest struct {
	Cmd   string          `json:"cmd"`
	Args  setActivityArgs `json:"args"`
	Nonce string          `json:"nonce"`
}

type setActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

// response covers DISPATCH/READY, command replies and close payloads.
type response struct {
	Cmd     string          `json:"cmd"`
	Evt     string          `json:"evt"`
	Nonce   string          `json:"nonce"`
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
}

type readyData struct {
	V    int `json:"v"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

func newNonce() string {
	return uuid.NewString()
}
