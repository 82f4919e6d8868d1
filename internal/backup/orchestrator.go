package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"snapvault/internal/client"
	"snapvault/internal/model"
	"snapvault/internal/source"
	"snapvault/internal/store"
)

// Locals is the slice of local persistence the orchestrator touches.
// *store.Store satisfies it.
type Locals interface {
	DeviceToken() (string, error)
	SetDeviceToken(token string) error
	ActiveSession() (string, error)
	SetActiveSession(id string) error
	ClearActiveSession() error
	SetLastBackupTime(t time.Time) error
	RecordRun(run store.BackupRun) error
}

type Deps struct {
	Client   *client.Client
	Contacts source.ContactSource
	Media    source.MediaSource
	Locals   Locals
	Identity model.DeviceIdentity

	BatchSize  int
	MediaCap   int
	BatchDelay time.Duration
}

// Orchestrator sequences one full backup run: registration, local counts,
// session start, contact and media phases, completion. A run is sequential
// across phases; concurrency exists only inside the count phase and inside
// each media batch.
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	if deps.BatchSize <= 0 {
		deps.BatchSize = 10
	}
	if deps.MediaCap <= 0 {
		deps.MediaCap = 10000
	}
	if deps.BatchDelay < 0 {
		deps.BatchDelay = 0
	}
	return &Orchestrator{deps: deps}
}

// Run performs a full backup, emitting status and progress events as it
// goes. On a phase failure the session is marked failed on the server
// (best effort) and the original error is returned.
func (o *Orchestrator) Run(ctx context.Context, emit Sink) (*model.BackupResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	emit(Event{Status: StatusInitializing})
	if err := o.initialize(ctx); err != nil {
		emit(Event{Status: StatusFailed})
		return nil, err
	}
	o.repairStaleSession(ctx)

	totals, err := o.countLocals(ctx)
	if err != nil {
		emit(Event{Status: StatusFailed})
		return nil, err
	}

	emit(Event{Status: StatusStarting})
	sessionID, err := o.deps.Client.StartSession(ctx, totals)
	if err != nil {
		emit(Event{Status: StatusFailed})
		return nil, err
	}
	if err := o.deps.Locals.SetActiveSession(sessionID); err != nil {
		log.Printf("persist active session: %v", err)
	}
	startedAt := time.Now()

	run := store.BackupRun{SessionID: sessionID, StartedAt: startedAt}
	if err := o.runPhases(ctx, sessionID, totals, emit, &run); err != nil {
		emit(Event{Status: StatusFailed})
		o.failSession(ctx, sessionID, err)
		o.recordRun(run, "failed", err)
		return nil, err
	}

	emit(Event{Status: StatusCompleting})
	result, err := o.deps.Client.Complete(ctx, sessionID, "completed", "")
	if err != nil {
		emit(Event{Status: StatusFailed})
		o.recordRun(run, "failed", err)
		return nil, err
	}
	if err := o.deps.Locals.ClearActiveSession(); err != nil {
		log.Printf("clear active session: %v", err)
	}
	if err := o.deps.Locals.SetLastBackupTime(time.Now()); err != nil {
		log.Printf("persist last backup time: %v", err)
	}
	o.recordRun(run, "completed", nil)

	emit(Event{Status: StatusCompleted})
	return result, nil
}

func (o *Orchestrator) runPhases(ctx context.Context, sessionID string, totals model.SessionTotals, emit Sink, run *store.BackupRun) error {
	emit(Event{Status: StatusContacts})
	n, err := o.backupContacts(ctx, sessionID, emit)
	run.Contacts = n
	if err != nil {
		return err
	}

	if totals.Photos > 0 {
		emit(Event{Status: StatusPhotos})
		n, err = o.backupMedia(ctx, sessionID, model.MediaPhoto, emit)
		run.Photos = n
		if err != nil {
			return err
		}
	}

	if totals.Videos > 0 {
		emit(Event{Status: StatusVideos})
		n, err = o.backupMedia(ctx, sessionID, model.MediaVideo, emit)
		run.Videos = n
		if err != nil {
			return err
		}
	}

	return nil
}

// initialize makes sure the client carries a device token, registering the
// device on first run.
func (o *Orchestrator) initialize(ctx context.Context) error {
	if o.deps.Client.Token != "" {
		return nil
	}
	token, err := o.deps.Locals.DeviceToken()
	if err != nil {
		return err
	}
	if token == "" {
		token, err = o.deps.Client.Register(ctx, o.deps.Identity)
		if err != nil {
			return err
		}
		if err := o.deps.Locals.SetDeviceToken(token); err != nil {
			return err
		}
	}
	o.deps.Client.Token = token
	return nil
}

// repairStaleSession closes out a session left active by an interrupted run.
// Best effort: on failure the id stays persisted and the next run retries.
func (o *Orchestrator) repairStaleSession(ctx context.Context) {
	id, err := o.deps.Locals.ActiveSession()
	if err != nil || id == "" {
		return
	}
	if _, err := o.deps.Client.Complete(ctx, id, "failed", "abandoned by interrupted run"); err != nil {
		log.Printf("mark stale session %s failed: %v", id, err)
		return
	}
	if err := o.deps.Locals.ClearActiveSession(); err != nil {
		log.Printf("clear stale session: %v", err)
	}
}

func (o *Orchestrator) countLocals(ctx context.Context) (model.SessionTotals, error) {
	var totals model.SessionTotals
	var errContacts, errPhotos, errVideos error

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		totals.Contacts, errContacts = o.LocalContactsCount(ctx)
	}()
	go func() {
		defer wg.Done()
		totals.Photos, errPhotos = o.LocalMediaCount(ctx, model.MediaPhoto)
	}()
	go func() {
		defer wg.Done()
		totals.Videos, errVideos = o.LocalMediaCount(ctx, model.MediaVideo)
	}()
	wg.Wait()

	for _, err := range []error{errContacts, errPhotos, errVideos} {
		if err != nil {
			return totals, err
		}
	}
	return totals, nil
}

// LocalContactsCount counts device contacts. A permission denial is absorbed
// as zero so one denied scope cannot abort the count phase.
func (o *Orchestrator) LocalContactsCount(ctx context.Context) (int, error) {
	n, err := o.deps.Contacts.Count(ctx)
	if isPermissionDenied(err) {
		return 0, nil
	}
	return n, err
}

// LocalMediaCount counts device media of one kind, absorbing permission
// denials as zero.
func (o *Orchestrator) LocalMediaCount(ctx context.Context, kind model.MediaType) (int, error) {
	n, err := o.deps.Media.Count(ctx, kind)
	if isPermissionDenied(err) {
		return 0, nil
	}
	return n, err
}

func isPermissionDenied(err error) bool {
	var pe *source.PermissionError
	return errors.As(err, &pe)
}

// backupContacts sends the full contact set as one request. Contact payloads
// are small text records, so there is no batching; an empty set still makes
// exactly one request.
func (o *Orchestrator) backupContacts(ctx context.Context, sessionID string, emit Sink) (int, error) {
	contacts, err := o.deps.Contacts.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := o.deps.Client.UploadContacts(ctx, sessionID, contacts); err != nil {
		return 0, err
	}
	emit(Event{Progress: &model.Progress{Type: "contacts", Processed: len(contacts), Total: len(contacts)}})
	return len(contacts), nil
}

// backupMedia uploads assets of one kind in batches. All members of a batch
// go up concurrently; a member failure is logged and dropped from the
// processed count without aborting the batch or the run. Between batches the
// loop pauses for BatchDelay to avoid saturating the server.
func (o *Orchestrator) backupMedia(ctx context.Context, sessionID string, kind model.MediaType, emit Sink) (int, error) {
	label := mediaLabel(kind)
	assets, err := o.deps.Media.List(ctx, kind, o.deps.MediaCap)
	if err != nil {
		return 0, err
	}

	total := len(assets)
	if total == 0 {
		emit(Event{Progress: &model.Progress{Type: label, Processed: 0, Total: 0}})
		return 0, nil
	}

	processed := 0
	for start := 0; start < total; start += o.deps.BatchSize {
		end := start + o.deps.BatchSize
		if end > total {
			end = total
		}
		batch := assets[start:end]

		uploaded := make([]bool, len(batch))
		var wg sync.WaitGroup
		for i, asset := range batch {
			wg.Add(1)
			go func(i int, asset model.MediaAsset) {
				defer wg.Done()
				if err := o.uploadAsset(ctx, sessionID, asset); err != nil {
					log.Printf("media upload %s: %v", asset.ID, err)
					return
				}
				uploaded[i] = true
			}(i, asset)
		}
		wg.Wait()

		for _, ok := range uploaded {
			if ok {
				processed++
			}
		}
		emit(Event{Progress: &model.Progress{Type: label, Processed: processed, Total: total}})

		if end < total && o.deps.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(o.deps.BatchDelay):
			}
		}
	}
	return processed, nil
}

func (o *Orchestrator) uploadAsset(ctx context.Context, sessionID string, asset model.MediaAsset) error {
	r, err := o.deps.Media.Open(asset)
	if err != nil {
		return fmt.Errorf("open %s: %w", asset.URI, err)
	}
	defer r.Close()
	return o.deps.Client.UploadMedia(ctx, sessionID, asset, r)
}

// failSession notifies the server that the run failed. The notification is
// best effort: its own failure is logged, never propagated, so the caller
// always sees the original error. The run context may already be canceled,
// so the call is detached from it.
func (o *Orchestrator) failSession(ctx context.Context, sessionID string, cause error) {
	if _, err := o.deps.Client.Complete(context.WithoutCancel(ctx), sessionID, "failed", cause.Error()); err != nil {
		log.Printf("mark session %s failed: %v", sessionID, err)
		return
	}
	if err := o.deps.Locals.ClearActiveSession(); err != nil {
		log.Printf("clear active session: %v", err)
	}
}

func (o *Orchestrator) recordRun(run store.BackupRun, status string, cause error) {
	run.Status = status
	run.FinishedAt = time.Now()
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := o.deps.Locals.RecordRun(run); err != nil {
		log.Printf("record run: %v", err)
	}
}

func mediaLabel(kind model.MediaType) string {
	switch kind {
	case model.MediaPhoto:
		return "photos"
	case model.MediaVideo:
		return "videos"
	default:
		return "media"
	}
}
