package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/coretask/internal/clock"
	"github.com/viant/coretask/internal/idgen"
	"github.com/viant/coretask/service/messaging"
)

const journalExt = ".json"

// Message implements messaging.Message for the journal queue
type Message[T any] struct {
	Key       string    `json:"key"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// ID returns the journal key of the message
func (m *Message[T]) ID() string {
	return m.Key
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the journal
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	return m.queue.complete(context.Background(), m)
}

// Nack returns the message to pending under its original key, or to the dead
// letter directory once MaxRetries is exceeded
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	return m.queue.fail(context.Background(), m)
}

// Config holds configuration for the journal queue
type Config struct {
	// BasePath is the journal root URL (file path, file://, mem://)
	BasePath   string
	MaxRetries int
	// Capacity bounds pending messages; zero means unbounded
	Capacity int
	// PollInterval is used while waiting for messages or free capacity
	PollInterval time.Duration
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:     "/tmp/coretask/queue",
		MaxRetries:   3,
		Capacity:     5,
		PollInterval: 10 * time.Millisecond,
	}
}

// Queue implements messaging.Queue on top of an afs storage. Messages are
// journaled as one file each; file names sort in publish order.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	dlqDir        string
	seq           atomic.Uint64
	mu            sync.Mutex
}

// NewQueue creates a journal queue, creating its directories when missing
func NewQueue[T any](ctx context.Context, fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	q.seq.Store(uint64(clock.Now().UnixNano()))
	for _, dir := range []string{q.pendingDir, q.processingDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := q.recover(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// recover moves messages left in processing by a previous run back to pending
func (q *Queue[T]) recover(ctx context.Context) error {
	objects, err := q.list(ctx, q.processingDir)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := q.fs.Move(ctx, obj.URL(), path.Join(q.pendingDir, obj.Name())); err != nil {
			return fmt.Errorf("failed to recover %s: %w", obj.Name(), err)
		}
	}
	return nil
}

// Publish journals a message; while the queue is at capacity it polls until
// space frees up or ctx is done
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		Key:       idgen.Ordered(q.seq.Add(1)),
		Data:      *t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := sonnet.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	for {
		ok, err := q.tryPublish(ctx, message.Key, data)
		if err != nil || ok {
			return err
		}
		if err := q.pause(ctx); err != nil {
			return err
		}
	}
}

func (q *Queue[T]) tryPublish(ctx context.Context, key string, data []byte) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.config.Capacity > 0 {
		pending, err := q.list(ctx, q.pendingDir)
		if err != nil {
			return false, err
		}
		if len(pending) >= q.config.Capacity {
			return false, nil
		}
	}
	if err := q.upload(ctx, path.Join(q.pendingDir, key+journalExt), data); err != nil {
		return false, fmt.Errorf("failed to journal message %s: %w", key, err)
	}
	return true, nil
}

// Consume takes the oldest pending message, polling until one is available
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.take(ctx)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
		if err := q.pause(ctx); err != nil {
			return nil, err
		}
	}
}

func (q *Queue[T]) take(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	obj := pending[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
		return nil, err
	}
	if err := q.fs.Move(ctx, obj.URL(), path.Join(q.processingDir, obj.Name())); err != nil {
		return nil, fmt.Errorf("failed to move message %s to processing: %w", obj.Name(), err)
	}
	message.queue = q
	return message, nil
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processingPath := path.Join(q.processingDir, m.Key+journalExt)
	if err := q.fs.Delete(ctx, processingPath); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", m.Key, err)
	}
	return nil
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, err := sonnet.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal failed message: %w", err)
	}
	filename := m.Key + journalExt
	dest := path.Join(q.pendingDir, filename)
	if m.Retries > q.config.MaxRetries {
		dest = path.Join(q.dlqDir, filename)
	}
	if err := q.upload(ctx, dest, data); err != nil {
		return fmt.Errorf("failed to write message %s: %w", m.Key, err)
	}
	if err := q.fs.Delete(ctx, path.Join(q.processingDir, filename)); err != nil {
		return fmt.Errorf("failed to delete message %s from processing: %w", m.Key, err)
	}
	return nil
}

// Size returns the number of pending messages
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.list(context.Background(), q.pendingDir)
	if err != nil {
		return 0
	}
	return len(pending)
}

// DLQSize returns the number of dead letter messages
func (q *Queue[T]) DLQSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dead, err := q.list(context.Background(), q.dlqDir)
	if err != nil {
		return 0
	}
	return len(dead)
}

func (q *Queue[T]) pause(ctx context.Context) error {
	timer := time.NewTimer(q.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// list returns journal files under dir sorted by name
func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), journalExt) {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) upload(ctx context.Context, URL string, data []byte) error {
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	var message Message[T]
	if err := sonnet.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return &message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
