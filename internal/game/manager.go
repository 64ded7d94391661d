package game

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const codeLength = 6
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomManager is the registry of live rooms, keyed by room code. It guards
// only the map itself; each Room carries its own lock.
type RoomManager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	maxMembers int
}

func NewRoomManager(maxMembers int) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), maxMembers: maxMembers}
}

// CreateRoom allocates a fresh room under a collision-free code.
func (rm *RoomManager) CreateRoom(settings Settings) (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		if rm.rooms[c] == nil {
			code = c
			break
		}
	}
	r := newRoom(code, settings, rm.maxMembers)
	rm.rooms[code] = r
	return r, nil
}

func (rm *RoomManager) Get(code string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r := rm.rooms[code]
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (rm *RoomManager) Remove(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, code)
}

func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Reap removes rooms that are empty or finished-and-idle longer than ttl.
// Returns how many rooms were collected.
func (rm *RoomManager) Reap(ttl time.Duration) int {
	now := time.Now().UTC()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	n := 0
	for code, r := range rm.rooms {
		if r.reapable(ttl, now) {
			delete(rm.rooms, code)
			n++
		}
	}
	return n
}

// StartReaper runs Reap on an interval until done is closed.
func (rm *RoomManager) StartReaper(done <-chan struct{}, interval, ttl time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if n := rm.Reap(ttl); n > 0 {
					log.Info().Int("reaped", n).Msg("collected idle rooms")
				}
			}
		}
	}()
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
