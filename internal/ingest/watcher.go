package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/storage"
	"github.com/snarg/clip-engine/internal/transcribe"
)

// DurationProber reads the media container duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, source string) (float64, error)
}

// TranscribeQueue accepts transcription jobs.
type TranscribeQueue interface {
	Enqueue(transcribe.Job) bool
}

// mediaExtensions are the file types the watcher picks up from the inbox.
var mediaExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true,
	".mp3": true, ".wav": true, ".m4a": true,
}

// InboxWatcher monitors a drop directory for new media files. Dropped files
// become upload media sources and are queued for transcription, an
// alternative to the HTTP upload endpoint for bulk imports.
type InboxWatcher struct {
	db       *database.DB
	store    storage.ObjectStore
	prober   DurationProber
	queue    TranscribeQueue
	bus      *EventBus
	inboxDir string
	owner    string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesIngested atomic.Int64
	filesSkipped  atomic.Int64
	status        atomic.Value // string: "starting", "scanning", "watching", "stopped"
}

// NewInboxWatcher creates a watcher over inboxDir.
func NewInboxWatcher(db *database.DB, store storage.ObjectStore, prober DurationProber, queue TranscribeQueue, bus *EventBus, inboxDir string, log zerolog.Logger) *InboxWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	iw := &InboxWatcher{
		db:             db,
		store:          store,
		prober:         prober,
		queue:          queue,
		bus:            bus,
		inboxDir:       inboxDir,
		owner:          "inbox",
		log:            log.With().Str("component", "inbox-watcher").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		debounceTimers: make(map[string]*time.Timer),
	}
	iw.status.Store("starting")
	return iw
}

// Start initializes the fsnotify watcher and processes files already sitting
// in the inbox in a background goroutine.
func (iw *InboxWatcher) Start() error {
	if err := os.MkdirAll(iw.inboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(iw.inboxDir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", iw.inboxDir, err)
	}
	iw.watcher = w

	iw.log.Info().Str("inbox_dir", iw.inboxDir).Msg("inbox watcher initialized")

	go iw.watchLoop()
	go iw.scanExisting()

	return nil
}

// Stop closes the fsnotify watcher and cancels in-flight processing.
func (iw *InboxWatcher) Stop() {
	iw.status.Store("stopped")
	iw.cancel()
	if iw.watcher != nil {
		iw.watcher.Close()
	}
	iw.log.Info().
		Int64("files_ingested", iw.filesIngested.Load()).
		Int64("files_skipped", iw.filesSkipped.Load()).
		Msg("inbox watcher stopped")
}

// WatcherStatus is reported by the health endpoint.
type WatcherStatus struct {
	Status        string `json:"status"`
	InboxDir      string `json:"inbox_dir"`
	FilesIngested int64  `json:"files_ingested"`
	FilesSkipped  int64  `json:"files_skipped"`
}

// Status returns the current watcher state.
func (iw *InboxWatcher) Status() WatcherStatus {
	s, _ := iw.status.Load().(string)
	return WatcherStatus{
		Status:        s,
		InboxDir:      iw.inboxDir,
		FilesIngested: iw.filesIngested.Load(),
		FilesSkipped:  iw.filesSkipped.Load(),
	}
}

func (iw *InboxWatcher) watchLoop() {
	for {
		select {
		case <-iw.ctx.Done():
			return

		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			if !mediaExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			iw.scheduleIngest(event.Name)

		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleIngest debounces ingestion by 500ms so the file is fully written
// before it is read.
func (iw *InboxWatcher) scheduleIngest(path string) {
	iw.debounceMu.Lock()
	defer iw.debounceMu.Unlock()

	if t, ok := iw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	iw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		iw.debounceMu.Lock()
		delete(iw.debounceTimers, path)
		iw.debounceMu.Unlock()

		if err := iw.ingestFile(path); err != nil {
			iw.filesSkipped.Add(1)
			iw.log.Warn().Err(err).Str("path", path).Msg("inbox ingest failed")
		}
	})
}

// scanExisting picks up files already present at startup.
func (iw *InboxWatcher) scanExisting() {
	iw.status.Store("scanning")

	_ = filepath.WalkDir(iw.inboxDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if iw.ctx.Err() != nil {
			return iw.ctx.Err()
		}
		if !mediaExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := iw.ingestFile(path); err != nil {
			iw.filesSkipped.Add(1)
			iw.log.Warn().Err(err).Str("path", path).Msg("inbox ingest failed")
		}
		return nil
	})

	if iw.ctx.Err() == nil {
		iw.status.Store("watching")
	}
}

// ingestFile turns one dropped file into an ingested media source and queues
// it for transcription. The inbox copy is removed once stored.
func (iw *InboxWatcher) ingestFile(path string) error {
	id := uuid.NewString()
	key := fmt.Sprintf("uploads/%s/%s%s", time.Now().UTC().Format("2006-01-02"), id, strings.ToLower(filepath.Ext(path)))

	duration, err := iw.prober.ProbeDuration(iw.ctx, path)
	if err != nil {
		return fmt.Errorf("probe duration: %w", err)
	}

	if _, err := iw.store.Put(iw.ctx, path, key, "video/mp4"); err != nil {
		return fmt.Errorf("store media: %w", err)
	}

	src := &database.MediaSource{
		ID:       id,
		Owner:    iw.owner,
		Origin:   database.OriginUpload,
		Locator:  key,
		Duration: &duration,
		Status:   database.SourceIngested,
	}
	if err := iw.db.InsertMediaSource(iw.ctx, src); err != nil {
		return fmt.Errorf("insert media source: %w", err)
	}

	if err := os.Remove(path); err != nil {
		iw.log.Warn().Err(err).Str("path", path).Msg("failed to remove inbox file")
	}

	iw.filesIngested.Add(1)
	if iw.bus != nil {
		iw.bus.Publish(EventData{
			Type:     "source.ingested",
			SourceID: id,
			Payload:  map[string]any{"origin": src.Origin, "duration": duration},
		})
	}

	if !iw.queue.Enqueue(transcribe.Job{SourceID: id, Origin: src.Origin, Locator: key}) {
		iw.log.Warn().Str("source_id", id).Msg("transcription queue full, source stays ingested")
		return nil
	}

	iw.log.Info().
		Str("source_id", id).
		Str("key", key).
		Float64("duration", duration).
		Msg("inbox file ingested")
	return nil
}
