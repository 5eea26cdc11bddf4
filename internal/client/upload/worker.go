// Package upload runs the asset handoff: messages with attachments are
// created as unconfirmed placeholder topics, their files streamed up by a
// background worker, and the topic confirmed only once every asset landed.
// A placeholder whose upload ultimately fails is removed so no half-built
// message ever becomes visible to other members.
package upload

import (
	"context"
	"errors"
	"sort"
	gosync "sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/driftsync/driftsync/internal/logging"
)

// ErrQueueFull is returned by Enqueue when the handoff queue is saturated.
var ErrQueueFull = errors.New("upload queue full")

const (
	queueSize    = 32
	assetRetries = 3
	retryBase    = time.Second
)

// Status is the lifecycle state of one handoff task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Asset is one local file to attach.
type Asset struct {
	Path  string
	Kind  string // image, video, audio or binary
	Label string
}

// AssetIDs are the transform ids the node assigned to one uploaded asset.
type AssetIDs struct {
	Thumb string
	Full  string
}

// Sink is the per-destination topic surface the worker writes through. The
// session binds it to the home node or to a contact node when handing a
// task off.
type Sink interface {
	AddAsset(ctx context.Context, channelID, topicID string, asset Asset, progress func(sent, size int64)) (AssetIDs, error)
	Confirm(ctx context.Context, channelID, topicID string, msg *models.Message) error
	Abort(ctx context.Context, channelID, topicID string) error
}

// Task is one placeholder topic waiting for its assets. CardID is empty for
// hosted channels.
type Task struct {
	Sink      Sink
	CardID    string
	ChannelID string
	TopicID   string
	Message   *models.Message
	Assets    []Asset
}

// Progress is the externally visible state of one task.
type Progress struct {
	CardID    string
	ChannelID string
	TopicID   string
	Status    Status
	Asset     int
	Total     int
	Sent      int64
	Size      int64
	Error     string
}

// Worker drains the handoff queue one task at a time. Asset uploads retry
// with exponential backoff; authorization and not-found failures are
// permanent and abort the task.
type Worker struct {
	log   logging.Logger
	queue chan Task

	mu         gosync.Mutex
	status     map[string]Progress
	onProgress func(Progress)
	cancel     context.CancelFunc
	wg         gosync.WaitGroup
}

func NewWorker(log logging.Logger) *Worker {
	return &Worker{
		log:    log,
		queue:  make(chan Task, queueSize),
		status: make(map[string]Progress),
	}
}

// SetOnProgress registers the progress callback. Must be set before Start.
func (w *Worker) SetOnProgress(fn func(Progress)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onProgress = fn
}

// Start launches the drain loop.
func (w *Worker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	w.wg.Add(1)
	go w.run(runCtx)
}

// Stop cancels the drain loop and waits for the in-flight task to settle.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Enqueue hands a task off to the worker without blocking.
func (w *Worker) Enqueue(task Task) error {
	select {
	case w.queue <- task:
	default:
		return ErrQueueFull
	}
	w.report(Progress{
		CardID:    task.CardID,
		ChannelID: task.ChannelID,
		TopicID:   task.TopicID,
		Status:    StatusPending,
		Total:     len(task.Assets),
	})
	return nil
}

// Progress returns the last reported state of one task.
func (w *Worker) Progress(topicID string) (Progress, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.status[topicID]
	return p, ok
}

// ChannelProgress returns the state of every known task of one channel,
// ordered by topic id.
func (w *Worker) ChannelProgress(cardID, channelID string) []Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Progress
	for _, p := range w.status {
		if p.CardID == cardID && p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	p := Progress{
		CardID:    task.CardID,
		ChannelID: task.ChannelID,
		TopicID:   task.TopicID,
		Status:    StatusUploading,
		Total:     len(task.Assets),
	}
	w.report(p)

	refs := make([]models.AssetRef, 0, len(task.Assets))
	for i, asset := range task.Assets {
		p.Asset = i
		ids, err := w.uploadAsset(ctx, task, asset, &p)
		if err != nil {
			w.log.Warn(ctx, "asset upload failed", "topicId", task.TopicID, "path", asset.Path, "error", err)
			w.abort(ctx, task, &p, err)
			return
		}
		refs = append(refs, models.AssetRef{
			Type:  asset.Kind,
			Thumb: ids.Thumb,
			Full:  ids.Full,
			Label: asset.Label,
		})
	}

	msg := *task.Message
	msg.Assets = refs
	if err := task.Sink.Confirm(ctx, task.ChannelID, task.TopicID, &msg); err != nil {
		w.log.Warn(ctx, "topic confirm failed", "topicId", task.TopicID, "error", err)
		w.abort(ctx, task, &p, err)
		return
	}

	p.Status = StatusComplete
	w.report(p)
}

func (w *Worker) uploadAsset(ctx context.Context, task Task, asset Asset, p *Progress) (AssetIDs, error) {
	var ids AssetIDs
	backoff := retry.WithMaxRetries(assetRetries, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		got, err := task.Sink.AddAsset(ctx, task.ChannelID, task.TopicID, asset, func(sent, size int64) {
			p.Sent = sent
			p.Size = size
			w.report(*p)
		})
		if err != nil {
			if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrNotFound) {
				return err
			}
			return retry.RetryableError(err)
		}
		ids = got
		return nil
	})
	return ids, err
}

// abort removes the placeholder so no dangling unconfirmed topic survives
// the failure. The removal itself is best effort.
func (w *Worker) abort(ctx context.Context, task Task, p *Progress, cause error) {
	if err := task.Sink.Abort(ctx, task.ChannelID, task.TopicID); err != nil {
		w.log.Warn(ctx, "placeholder removal failed", "topicId", task.TopicID, "error", err)
	}
	p.Status = StatusFailed
	p.Error = cause.Error()
	w.report(*p)
}

func (w *Worker) report(p Progress) {
	w.mu.Lock()
	w.status[p.TopicID] = p
	fn := w.onProgress
	w.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}
