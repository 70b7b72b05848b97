package bot

import (
	"sync"
	"time"
)

// DebounceDelay is how long the bot waits for follow-up messages before
// answering, so rapid-fire customer messages merge into one turn.
const DebounceDelay = time.Second

// batch accumulates a chat's messages until its timer fires.
type batch struct {
	texts  []string
	images []string
}

// debouncer groups incoming messages per chat. The first message of a
// burst arms a timer; everything arriving before it fires joins the same
// batch.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[int64]*batch
	timers  map[int64]*time.Timer
	flush   func(chatID int64, b batch)
}

func newDebouncer(delay time.Duration, flush func(chatID int64, b batch)) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[int64]*batch),
		timers:  make(map[int64]*time.Timer),
		flush:   flush,
	}
}

func (d *debouncer) add(chatID int64, text, imageURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.pending[chatID]
	if !ok {
		b = &batch{}
		d.pending[chatID] = b
	}
	if imageURL != "" {
		b.images = append(b.images, imageURL)
	} else if text != "" {
		b.texts = append(b.texts, text)
	}

	if _, armed := d.timers[chatID]; !armed {
		d.timers[chatID] = time.AfterFunc(d.delay, func() { d.fire(chatID) })
		log.Debug("Debounce timer armed for chat %d", chatID)
	}
}

func (d *debouncer) fire(chatID int64) {
	d.mu.Lock()
	b := d.pending[chatID]
	delete(d.pending, chatID)
	delete(d.timers, chatID)
	d.mu.Unlock()

	if b == nil || (len(b.texts) == 0 && len(b.images) == 0) {
		return
	}
	log.Info("Processing %d texts and %d images for chat %d", len(b.texts), len(b.images), chatID)
	d.flush(chatID, *b)
}

// stop cancels all armed timers; pending batches are dropped.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for chatID, t := range d.timers {
		t.Stop()
		delete(d.timers, chatID)
		delete(d.pending, chatID)
	}
}
