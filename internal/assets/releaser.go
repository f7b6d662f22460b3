package assets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/metrics"
)

// Releaser deletes assets in the background. Callers never wait for a
// release and never see its error; failures are logged and the file is left
// orphaned.
type Releaser struct {
	store   Store
	timeout time.Duration
	log     *logrus.Entry
	wg      sync.WaitGroup
}

func NewReleaser(store Store, timeout time.Duration, log logrus.FieldLogger) *Releaser {
	return &Releaser{
		store:   store,
		timeout: timeout,
		log:     log.WithField("component", "asset-releaser"),
	}
}

// Release schedules removal of path. It returns immediately. The removal runs
// with its own deadline so a finished request does not cancel it.
func (r *Releaser) Release(path string) {
	if path == "" {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		err := r.store.Remove(ctx, path)
		switch {
		case err == nil:
			metrics.RecordRelease("ok")
			r.log.WithField("path", path).Debug("asset released")
		case errors.Is(err, ErrNotExist):
			metrics.RecordRelease("missing")
			r.log.WithField("path", path).Debug("asset already gone")
		default:
			metrics.RecordRelease("error")
			r.log.WithError(err).WithField("path", path).Warn("asset release failed")
		}
	}()
}

// Wait blocks until every scheduled release has finished.
func (r *Releaser) Wait() {
	r.wg.Wait()
}
