package mediagroup

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// File is one upload inside a Telegram album.
type File struct {
	ID       string
	MimeType string
	Name     string
}

type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MediaGroupID string
	File         File
}

// Group is a complete album, in arrival order.
type Group struct {
	ChatID   int64
	UserID   int64
	Username string
	Files    []File
}

// Last returns the most recently received file of the album.
func (g Group) Last() (File, bool) {
	if len(g.Files) == 0 {
		return File{}, false
	}
	return g.Files[len(g.Files)-1], true
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
	Logger   *slog.Logger
}

// Aggregator collects album items that Telegram delivers as separate
// updates and flushes each album once no new item arrived for Debounce.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	logger   *slog.Logger
	groups   map[string]*pendingGroup
	stopped  bool
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		logger:   logger,
		groups:   make(map[string]*pendingGroup),
	}
}

// Add records an album item. Items without a media group or file id, and
// items arriving after Stop, are ignored.
func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.File.ID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{group: Group{
			ChatID:   item.ChatID,
			UserID:   item.UserID,
			Username: item.Username,
		}}
		a.groups[key] = pg
	}
	pg.group.Files = append(pg.group.Files, item.File)

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Stop cancels every pending flush. Albums still collecting are dropped.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		delete(a.groups, key)
		a.logger.Debug("album dropped", "chat_id", pg.group.ChatID, "files", len(pg.group.Files))
	}
}

// Pending reports how many albums are still collecting items.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	a.logger.Debug("album complete", "chat_id", group.ChatID, "user_id", group.UserID, "files", len(group.Files))

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
