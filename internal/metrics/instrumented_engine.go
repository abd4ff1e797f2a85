package metrics

import (
	"context"

	"github.com/edgecomet/pagepurge/internal/purge"
)

// InvalidationRecorder counts engine calls
type InvalidationRecorder interface {
	RecordInvalidation(operation, status string)
}

// InstrumentedEngine counts calls to a purge.CacheEngine
type InstrumentedEngine struct {
	next     purge.CacheEngine
	recorder InvalidationRecorder
}

func NewInstrumentedEngine(next purge.CacheEngine, recorder InvalidationRecorder) *InstrumentedEngine {
	return &InstrumentedEngine{next: next, recorder: recorder}
}

func (e *InstrumentedEngine) ClearAll(ctx context.Context) error {
	err := e.next.ClearAll(ctx)
	e.recorder.RecordInvalidation("clear_all", status(err))
	return err
}

func (e *InstrumentedEngine) ClearByURL(ctx context.Context, normalizedURL string, expire bool) error {
	err := e.next.ClearByURL(ctx, normalizedURL, expire)
	e.recorder.RecordInvalidation(urlOperation(expire), status(err))
	return err
}

// Purger is the operator-facing cache surface, where a full clear reports how
// many entries it removed
type Purger interface {
	Flush(ctx context.Context) (int64, error)
	ClearByURL(ctx context.Context, url string, expire bool) error
}

// InstrumentedPurger counts calls to a Purger under the same operation labels
// as InstrumentedEngine
type InstrumentedPurger struct {
	next     Purger
	recorder InvalidationRecorder
}

func NewInstrumentedPurger(next Purger, recorder InvalidationRecorder) *InstrumentedPurger {
	return &InstrumentedPurger{next: next, recorder: recorder}
}

func (p *InstrumentedPurger) Flush(ctx context.Context) (int64, error) {
	n, err := p.next.Flush(ctx)
	p.recorder.RecordInvalidation("clear_all", status(err))
	return n, err
}

func (p *InstrumentedPurger) ClearByURL(ctx context.Context, url string, expire bool) error {
	err := p.next.ClearByURL(ctx, url, expire)
	p.recorder.RecordInvalidation(urlOperation(expire), status(err))
	return err
}

func urlOperation(expire bool) string {
	if expire {
		return "expire_url"
	}
	return "delete_url"
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
