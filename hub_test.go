package main

import (
	"sync"
	"testing"
)

func addHubClient(h *Hub, roomID string) *Client {
	c := NewClient(h, nil, "127.0.0.1")
	c.setRoom(roomID)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

// A room teardown runs on the leaver's goroutine while the other members
// keep reading their room association from their own read pumps.
func TestClearRoomConcurrentWithReads(t *testing.T) {
	h := NewHub(nil)
	c := addHubClient(h, "room1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.setRoom("room1")
			h.ClearRoom("room1")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if r := c.room(); r != "" && r != "room1" {
				t.Errorf("unexpected room %q", r)
				return
			}
		}
	}()
	wg.Wait()

	if c.room() != "" {
		t.Errorf("client still attached to %q", c.room())
	}
}

func TestTakeRoomDetachesOnce(t *testing.T) {
	h := NewHub(nil)
	c := addHubClient(h, "room1")

	if got := c.takeRoom(); got != "room1" {
		t.Fatalf("first take returned %q", got)
	}
	if got := c.takeRoom(); got != "" {
		t.Errorf("second take returned %q, client was already detached", got)
	}
}

func TestRoomClientsFiltersByRoom(t *testing.T) {
	h := NewHub(nil)
	a := addHubClient(h, "room1")
	addHubClient(h, "room2")
	addHubClient(h, "")

	list := h.RoomClients("room1")
	if len(list) != 1 || list[0] != a {
		t.Fatalf("expected only the room1 client, got %d", len(list))
	}

	h.ClearRoom("room1")
	if len(h.RoomClients("room1")) != 0 {
		t.Error("cleared room should have no clients")
	}
	if len(h.RoomClients("room2")) != 1 {
		t.Error("other rooms must be untouched")
	}
}
