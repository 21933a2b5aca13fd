package main

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// uploadWaiter hands the next message from a user in a channel to whoever is
// waiting for it. At most one waiter per (channel, user); a newer wait replaces
// the older one.
type uploadWaiter struct {
	mu      sync.Mutex
	waiting map[string]chan *discordgo.Message
}

func newUploadWaiter() *uploadWaiter {
	return &uploadWaiter{waiting: make(map[string]chan *discordgo.Message)}
}

func waitKey(channelID, userID string) string { return channelID + "/" + userID }

// wait blocks until a matching message arrives or ctx ends.
func (w *uploadWaiter) wait(ctx context.Context, channelID, userID string) (*discordgo.Message, bool) {
	key := waitKey(channelID, userID)
	ch := make(chan *discordgo.Message, 1)

	w.mu.Lock()
	w.waiting[key] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.waiting[key] == ch {
			delete(w.waiting, key)
		}
		w.mu.Unlock()
	}()

	select {
	case m := <-ch:
		return m, true
	case <-ctx.Done():
		return nil, false
	}
}

// deliver passes m to a waiter and reports whether one was waiting.
func (w *uploadWaiter) deliver(m *discordgo.Message) bool {
	if m == nil || m.Author == nil {
		return false
	}
	key := waitKey(m.ChannelID, m.Author.ID)

	w.mu.Lock()
	ch, ok := w.waiting[key]
	if ok {
		delete(w.waiting, key)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	ch <- m
	return true
}
