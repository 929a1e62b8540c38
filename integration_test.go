package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, data interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(Envelope{T: msgType, Data: data}); err != nil {
		c.t.Fatalf("send %s: %v", msgType, err)
	}
}

type rawEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

// readUntil skips messages until one of the given type arrives. Binary
// frames (msgpack state snapshots) are skipped; use readBinary for those.
func (c *wsClient) readUntil(msgType string) json.RawMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if kind == websocket.BinaryMessage {
			continue
		}
		var env rawEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.t.Fatalf("bad frame: %v", err)
		}
		if env.T == msgType {
			return env.D
		}
	}
}

// readBinary skips text messages until a binary frame arrives and decodes
// it as a state snapshot.
func (c *wsClient) readBinary() StateSnapshot {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for binary frame: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		var snap StateSnapshot
		if err := msgpack.Unmarshal(data, &snap); err != nil {
			c.t.Fatalf("msgpack decode: %v", err)
		}
		return snap
	}
}

// resumeUntilOK retries a token resume until the server accepts it. Needed
// because the previous session's offline marking races the reconnect.
func (c *wsClient) resumeUntilOK(token string) AuthOKMsg {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.send(MsgAuth, AuthMsg{Token: token})
		c.conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for resume: %v", err)
		}
		var env rawEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.t.Fatalf("bad frame: %v", err)
		}
		switch env.T {
		case MsgAuthOK:
			var ok AuthOKMsg
			if err := json.Unmarshal(env.D, &ok); err != nil {
				c.t.Fatal(err)
			}
			return ok
		case MsgError:
			time.Sleep(50 * time.Millisecond)
		}
	}
	c.t.Fatal("token resume never accepted")
	return AuthOKMsg{}
}

func newTestServer(t *testing.T, db *DB) *httptest.Server {
	t.Helper()
	hub := NewHub(db)
	go hub.Run()
	srv := httptest.NewServer(SetupRoutes(hub, t.TempDir()))
	t.Cleanup(srv.Close)
	return srv
}

func TestFullGameFlow(t *testing.T) {
	shortenBombTimer(t, 150*time.Millisecond)
	srv := newTestServer(t, nil)

	host := dialWS(t, srv)
	host.readUntil(MsgRoomsList)

	// Create a room and capture our player id.
	host.send(MsgCreateRoom, CreateRoomMsg{PlayerName: "Alice"})
	var joined RoomJoinedMsg
	if err := json.Unmarshal(host.readUntil(MsgRoomJoined), &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Room == nil || joined.PlayerID == "" {
		t.Fatalf("incomplete roomJoined: %+v", joined)
	}
	hostID := joined.PlayerID
	roomID := joined.Room.ID

	// Second player joins.
	guest := dialWS(t, srv)
	guest.readUntil(MsgRoomsList)
	guest.send(MsgJoinRoom, JoinRoomMsg{RoomID: roomID, PlayerName: "Bob"})
	var guestJoined RoomJoinedMsg
	if err := json.Unmarshal(guest.readUntil(MsgRoomJoined), &guestJoined); err != nil {
		t.Fatal(err)
	}
	if len(guestJoined.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(guestJoined.Players))
	}
	guestID := guestJoined.PlayerID

	// Host starts the game; both sides receive the initial state.
	host.send(MsgStartGame, nil)
	var started GameStartedMsg
	if err := json.Unmarshal(host.readUntil(MsgGameStarted), &started); err != nil {
		t.Fatal(err)
	}
	if len(started.Map) != MapSize || len(started.Map[0]) != MapSize {
		t.Fatalf("map is %dx%d", len(started.Map), len(started.Map[0]))
	}
	if len(started.Players) != 2 {
		t.Fatalf("expected 2 players in game, got %d", len(started.Players))
	}
	guest.readUntil(MsgGameStarted)

	// Host moves right from (0,0).
	host.send(MsgMoveRequest, MoveRequestMsg{PlayerID: hostID, Direction: "right"})
	var moved PlayerMovedMsg
	if err := json.Unmarshal(guest.readUntil(MsgPlayerMoved), &moved); err != nil {
		t.Fatal(err)
	}
	if moved.PlayerID != hostID || moved.Position != (Position{X: 1, Y: 0}) {
		t.Fatalf("unexpected move broadcast: %+v", moved)
	}

	// Bomb away from everyone: explosion then a binary resync frame.
	host.send(MsgBombRequest, BombRequestMsg{X: 9, Y: 9})
	guest.readUntil(MsgBombPlaced)
	var boom ExplosionMsg
	if err := json.Unmarshal(guest.readUntil(MsgExplosion), &boom); err != nil {
		t.Fatal(err)
	}
	if boom.OwnerID != hostID || len(boom.Explosions) == 0 {
		t.Fatalf("unexpected explosion: owner=%s cells=%d", boom.OwnerID, len(boom.Explosions))
	}
	snap := guest.readBinary()
	if len(snap.Map) != MapSize || len(snap.Players) != 2 {
		t.Fatalf("bad snapshot: map=%d players=%d", len(snap.Map), len(snap.Players))
	}

	// Host bombs their own tile and dies; the guest wins.
	host.send(MsgBombRequest, BombRequestMsg{X: 1, Y: 0})
	var killed PlayerKilledMsg
	if err := json.Unmarshal(guest.readUntil(MsgPlayerKilled), &killed); err != nil {
		t.Fatal(err)
	}
	if killed.PlayerID != hostID {
		t.Fatalf("expected %s killed, got %s", hostID, killed.PlayerID)
	}
	var ended GameEndedMsg
	if err := json.Unmarshal(guest.readUntil(MsgGameEnded), &ended); err != nil {
		t.Fatal(err)
	}
	if ended.Winner == nil || ended.Winner.ID != guestID {
		t.Fatalf("expected %s to win, got %+v", guestID, ended.Winner)
	}
	if ended.GameTimeMs < 0 {
		t.Fatalf("negative game time %d", ended.GameTimeMs)
	}
}

func TestJoinErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	c := dialWS(t, srv)
	c.readUntil(MsgRoomsList)
	c.send(MsgJoinRoom, JoinRoomMsg{RoomID: "nope", PlayerName: "X"})
	var roomErr RoomErrorMsg
	if err := json.Unmarshal(c.readUntil(MsgRoomError), &roomErr); err != nil {
		t.Fatal(err)
	}
	if roomErr.Message == "" {
		t.Error("expected an error message")
	}

	// Starting alone is rejected.
	c.send(MsgCreateRoom, CreateRoomMsg{PlayerName: "X"})
	c.readUntil(MsgRoomJoined)
	c.send(MsgStartGame, nil)
	c.readUntil(MsgRoomError)
}

func TestHostLeaveClosesRoom(t *testing.T) {
	srv := newTestServer(t, nil)

	host := dialWS(t, srv)
	host.readUntil(MsgRoomsList)
	host.send(MsgCreateRoom, CreateRoomMsg{PlayerName: "Alice"})
	var joined RoomJoinedMsg
	json.Unmarshal(host.readUntil(MsgRoomJoined), &joined)

	guest := dialWS(t, srv)
	guest.readUntil(MsgRoomsList)
	guest.send(MsgJoinRoom, JoinRoomMsg{RoomID: joined.Room.ID, PlayerName: "Bob"})
	guest.readUntil(MsgRoomJoined)

	host.send(MsgLeaveRoom, nil)
	guest.readUntil(MsgRoomLeft)

	// The room is gone from the lobby.
	guest.send(MsgGetRooms, nil)
	var rooms []RoomInfo
	if err := json.Unmarshal(guest.readUntil(MsgRoomsList), &rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %d", len(rooms))
	}
}

func TestAuthAndProfileFlow(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	srv := newTestServer(t, db)

	c := dialWS(t, srv)
	c.readUntil(MsgRoomsList)

	c.send(MsgRegister, RegisterMsg{Username: "alice", Password: "secret123"})
	var ok AuthOKMsg
	if err := json.Unmarshal(c.readUntil(MsgAuthOK), &ok); err != nil {
		t.Fatal(err)
	}
	if ok.Token == "" || ok.PlayerID == 0 {
		t.Fatalf("incomplete authOK: %+v", ok)
	}

	c.send(MsgProfile, nil)
	var profile ProfileDataMsg
	if err := json.Unmarshal(c.readUntil(MsgProfileData), &profile); err != nil {
		t.Fatal(err)
	}
	if profile.Username != "alice" || profile.Games != 0 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// A second login for an account that is still online is rejected.
	c2 := dialWS(t, srv)
	c2.readUntil(MsgRoomsList)
	c2.send(MsgAuth, AuthMsg{Token: ok.Token})
	var dup ErrorMsg
	if err := json.Unmarshal(c2.readUntil(MsgError), &dup); err != nil {
		t.Fatal(err)
	}
	if dup.Msg != "account already online" {
		t.Fatalf("unexpected rejection: %q", dup.Msg)
	}

	// After the first connection drops, the token resumes the session.
	c.conn.Close()
	resumed := c2.resumeUntilOK(ok.Token)
	if resumed.PlayerID != ok.PlayerID {
		t.Fatalf("token resolved to %d, want %d", resumed.PlayerID, ok.PlayerID)
	}

	// Duplicate registration is rejected.
	c2.send(MsgRegister, RegisterMsg{Username: "alice", Password: "secret123"})
	c2.readUntil(MsgError)
}

func TestAccountsUnavailableWithoutDB(t *testing.T) {
	srv := newTestServer(t, nil)

	c := dialWS(t, srv)
	c.readUntil(MsgRoomsList)

	for _, msg := range []Envelope{
		{T: MsgRegister, Data: RegisterMsg{Username: "alice", Password: "secret123"}},
		{T: MsgLogin, Data: LoginMsg{Username: "alice", Password: "secret123"}},
		{T: MsgAuth, Data: AuthMsg{Token: "whatever"}},
	} {
		c.send(msg.T, msg.Data)
		var errMsg ErrorMsg
		if err := json.Unmarshal(c.readUntil(MsgError), &errMsg); err != nil {
			t.Fatal(err)
		}
		if errMsg.Msg != "accounts unavailable" {
			t.Errorf("%s: unexpected error %q", msg.T, errMsg.Msg)
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	c := dialWS(t, srv)
	c.readUntil(MsgRoomsList)
	c.send(MsgCreateRoom, CreateRoomMsg{PlayerName: "Alice"})
	c.readUntil(MsgRoomJoined)

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats["connections"] != 1 || stats["rooms"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestQRInviteEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	c := dialWS(t, srv)
	c.readUntil(MsgRoomsList)
	c.send(MsgCreateRoom, CreateRoomMsg{PlayerName: "Alice"})
	var joined RoomJoinedMsg
	json.Unmarshal(c.readUntil(MsgRoomJoined), &joined)

	resp, err := http.Get(srv.URL + "/qr/" + joined.Room.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	png, _ := io.ReadAll(resp.Body)
	if len(png) == 0 {
		t.Error("empty png body")
	}

	resp2, err := http.Get(srv.URL + "/qr/unknown-room")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room status %d", resp2.StatusCode)
	}
}
