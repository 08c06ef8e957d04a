package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"press-clippings/internal/metrics"
	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types published after a commit changes a clipping
const (
	EventMetricsUpdated  = "metrics_updated"
	EventClippingDeleted = "clipping_deleted"
)

// Event describes a committed change to a clipping
type Event struct {
	Type       string                  `json:"type"`
	ClippingID uuid.UUID               `json:"clipping_id"`
	Metrics    *models.ClippingMetrics `json:"metrics,omitempty"`
}

// Publisher receives events once the transaction that produced them has committed
type Publisher interface {
	Publish(Event)
}

// Options configures the transactional services
type Options struct {
	// DefaultTopic names the topic exempt from crisis evaluation
	DefaultTopic string
	Now          func() time.Time
	Publisher    Publisher
}

// engine holds what every transactional service shares: the database, the
// crisis evaluator and the recomputation step run before each commit.
type engine struct {
	db        *gorm.DB
	crisis    *CrisisEvaluator
	now       func() time.Time
	publisher Publisher
}

func newEngine(db *gorm.DB, opts Options) *engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &engine{
		db:        db,
		crisis:    NewCrisisEvaluator(opts.DefaultTopic),
		now:       now,
		publisher: opts.Publisher,
	}
}

// changeSet accumulates the clippings a transaction touched and the events
// to publish after it commits
type changeSet struct {
	touched map[uuid.UUID]struct{}
	events  []Event
}

// touch marks clippings for recomputation before commit
func (cs *changeSet) touch(ids ...uuid.UUID) {
	if cs.touched == nil {
		cs.touched = make(map[uuid.UUID]struct{})
	}
	for _, id := range ids {
		cs.touched[id] = struct{}{}
	}
}

// transact runs fn in one transaction, recomputes every touched clipping in
// that same transaction, and publishes the resulting events after commit.
// Any failure, recomputation included, rolls the whole write back.
func (e *engine) transact(ctx context.Context, fn func(tx *gorm.DB, cs *changeSet) error) error {
	cs := &changeSet{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx, cs); err != nil {
			return err
		}
		return e.flush(tx, cs)
	})
	if err != nil {
		return translateError(err)
	}

	if e.publisher != nil {
		for _, ev := range cs.events {
			e.publisher.Publish(ev)
		}
	}
	return nil
}

// flush refreshes touched clippings in id order, so writers touching several
// clippings acquire their row locks in the same sequence
func (e *engine) flush(tx *gorm.DB, cs *changeSet) error {
	ids := make([]uuid.UUID, 0, len(cs.touched))
	for id := range cs.touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		ev, err := e.refreshClipping(tx, id)
		if err != nil {
			return err
		}
		if ev != nil {
			cs.events = append(cs.events, *ev)
		}
	}
	cs.touched = nil
	return nil
}

// refreshClipping brings one clipping in line with its membership: a
// clipping without members is destroyed, otherwise its metrics are rewritten.
func (e *engine) refreshClipping(tx *gorm.DB, clippingID uuid.UUID) (*Event, error) {
	clipping, err := lockClipping(tx, clippingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock clipping %s: %w", clippingID, err)
	}

	n, err := countMembers(tx, clippingID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if n == 0 {
		if err := tx.Delete(&models.Clipping{}, "id = ?", clippingID).Error; err != nil {
			return nil, fmt.Errorf("failed to delete empty clipping: %w", err)
		}
		slog.Info("deleted clipping without members", "clipping_id", clippingID)
		return &Event{Type: EventClippingDeleted, ClippingID: clippingID}, nil
	}

	m, err := e.computeMetrics(tx, clipping)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(clipping).Update("metrics", datatypes.NewJSONType(m)).Error; err != nil {
		return nil, fmt.Errorf("failed to store metrics: %w", err)
	}

	slog.Debug("recomputed clipping metrics", "clipping_id", clippingID, "news_count", m.NewsCount)
	return &Event{Type: EventMetricsUpdated, ClippingID: clippingID, Metrics: &m}, nil
}

// computeMetrics reads the full current membership and the topic's crisis flag
func (e *engine) computeMetrics(tx *gorm.DB, clipping *models.Clipping) (models.ClippingMetrics, error) {
	articles, err := memberArticles(tx, clipping.ID)
	if err != nil {
		return models.ClippingMetrics{}, fmt.Errorf("failed to load members: %w", err)
	}

	var topic models.Topic
	crisis := false
	err = tx.First(&topic, "id = ?", clipping.TopicID).Error
	switch {
	case err == nil:
		crisis = topic.Crisis
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.ClippingMetrics{}, fmt.Errorf("failed to load topic: %w", err)
	}

	return metrics.Compute(articles, crisis, e.now()), nil
}

// checkCrisis re-evaluates a topic and, when its flag flips, marks the
// topic's clippings so their crisis field is refreshed too
func (e *engine) checkCrisis(tx *gorm.DB, cs *changeSet, topicID *uuid.UUID) error {
	if topicID == nil {
		return nil
	}
	changed, err := e.crisis.CheckCrisis(tx, *topicID)
	if err != nil || !changed {
		return err
	}
	ids, err := clippingIDsForTopic(tx, *topicID)
	if err != nil {
		return fmt.Errorf("failed to list topic clippings: %w", err)
	}
	cs.touch(ids...)
	return nil
}
