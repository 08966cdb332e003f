package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/gruasmx/dispatch-bot/internal/domain"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultPendingWindow = 30 * time.Minute
	defaultTimingWindow  = 10 * time.Minute
)

// Config tunes record expiry and the matching windows.
type Config struct {
	// TTL is how long a record lives after its last Store.
	TTL time.Duration
	// PendingWindow bounds how far back FindPendingForOrigin matches.
	PendingWindow time.Duration
	// TimingWindow bounds the fallback match for observed timing reports.
	TimingWindow time.Duration
}

// ServiceCache is the in-memory store of in-flight service records. Records
// self-expire after the TTL; matching and mutation of a record happen under
// one lock acquisition so two concurrent events can never clobber each other
// half way through a read-modify-write.
type ServiceCache struct {
	mu            sync.Mutex
	records       *ttlcache.Cache[string, *domain.ServiceRecord]
	pendingWindow time.Duration
	timingWindow  time.Duration
	logger        *log.Logger
}

func NewServiceCache(config Config, logger *log.Logger) *ServiceCache {
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	if config.PendingWindow <= 0 {
		config.PendingWindow = defaultPendingWindow
	}
	if config.TimingWindow <= 0 {
		config.TimingWindow = defaultTimingWindow
	}

	c := &ServiceCache{
		records: ttlcache.New[string, *domain.ServiceRecord](
			ttlcache.WithTTL[string, *domain.ServiceRecord](config.TTL),
			ttlcache.WithDisableTouchOnHit[string, *domain.ServiceRecord](),
		),
		pendingWindow: config.PendingWindow,
		timingWindow:  config.TimingWindow,
		logger:        logger,
	}
	c.records.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *domain.ServiceRecord]) {
		if reason == ttlcache.EvictionReasonExpired {
			c.logf("service %s expired and was removed", item.Key())
		}
	})
	go c.records.Start()
	return c
}

// Stop halts the expiry loop. The cache stays usable but records stop
// expiring.
func (c *ServiceCache) Stop() {
	c.records.Stop()
}

// Store upserts the record and re-arms its expiry.
func (c *ServiceCache) Store(record *domain.ServiceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records.Set(record.ID, record, ttlcache.DefaultTTL)
	c.logf("service %s stored", record.ID)
}

func (c *ServiceCache) Get(id string) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.records.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value().Clone(), true
}

// Remove deletes the record; removing an unknown id is a no-op.
func (c *ServiceCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records.Delete(id)
}

func (c *ServiceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records.Len()
}

// MergeExtracted attaches the extracted field messages to the most recent
// pending record from the same origin, or creates a new record when no match
// exists. It returns a snapshot of the record and whether it was created.
func (c *ServiceCache) MergeExtracted(originChatID int64, messages []string) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findPendingLocked(originChatID)
	created := false
	if record == nil {
		record = &domain.ServiceRecord{
			ID:           domain.NewServiceID(originChatID, time.Now()),
			OriginChatID: originChatID,
			CreatedAt:    time.Now(),
		}
		created = true
	}
	record.Messages = append([]string(nil), messages...)
	c.records.Set(record.ID, record, ttlcache.DefaultTTL)
	c.logf("service %s extracted fields merged created=%t", record.ID, created)
	return record.Clone(), created
}

// MergeMapLink is the symmetric merge on the url+coordinates side.
func (c *ServiceCache) MergeMapLink(originChatID int64, url string, coordinates []string) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findPendingLocked(originChatID)
	created := false
	if record == nil {
		record = &domain.ServiceRecord{
			ID:           domain.NewServiceID(originChatID, time.Now()),
			OriginChatID: originChatID,
			CreatedAt:    time.Now(),
		}
		created = true
	}
	record.MapURL = url
	record.Coordinates = append([]string(nil), coordinates...)
	c.records.Set(record.ID, record, ttlcache.DefaultTTL)
	c.logf("service %s map link merged created=%t", record.ID, created)
	return record.Clone(), created
}

// FindPendingForOrigin returns the most recent record from the origin chat
// that is still missing one of its halves, inside the pending window.
func (c *ServiceCache) FindPendingForOrigin(originChatID int64) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findPendingLocked(originChatID)
	if record == nil {
		return nil, false
	}
	return record.Clone(), true
}

func (c *ServiceCache) findPendingLocked(originChatID int64) *domain.ServiceRecord {
	var best *domain.ServiceRecord
	now := time.Now()
	for _, item := range c.records.Items() {
		record := item.Value()
		if record.OriginChatID != originChatID || record.Decided() {
			continue
		}
		if now.Sub(record.CreatedAt) > c.pendingWindow {
			continue
		}
		if record.Complete() {
			continue
		}
		if best == nil || record.CreatedAt.After(best.CreatedAt) {
			best = record
		}
	}
	return best
}

// SetRenderedMessage records which chat message displays the record.
func (c *ServiceCache) SetRenderedMessage(id string, messageID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.records.Get(id)
	if item == nil {
		return false
	}
	item.Value().RenderedMessageID = messageID
	return true
}

// MarkWaitingForTiming flags the record as expecting a timing report.
func (c *ServiceCache) MarkWaitingForTiming(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.records.Get(id)
	if item == nil {
		return false
	}
	record := item.Value()
	if record.HasTimings {
		return false
	}
	record.WaitingForTiming = true
	return true
}

// ObserveTiming matches an observed timing report to a record and marks it
// timed. The primary heuristic is the most recent record explicitly waiting
// for timing; the fallback is the most recent record with a map link and no
// timing inside the timing window. There is no correlation id on the report,
// so this stays a documented best effort.
func (c *ServiceCache) ObserveTiming() (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findWaitingLocked()
	if record == nil {
		record = c.findRecentUnTimedLocked()
	}
	if record == nil {
		return nil, false
	}
	record.WaitingForTiming = false
	record.HasTimings = true
	c.logf("service %s matched to observed timing report", record.ID)
	return record.Clone(), true
}

// FindWaitingForTiming returns the most recent record explicitly waiting for
// a timing report.
func (c *ServiceCache) FindWaitingForTiming() (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findWaitingLocked()
	if record == nil {
		return nil, false
	}
	return record.Clone(), true
}

// FindRecentUnTimed returns the most recent record that has a map link but no
// timing yet, inside the timing window.
func (c *ServiceCache) FindRecentUnTimed() (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.findRecentUnTimedLocked()
	if record == nil {
		return nil, false
	}
	return record.Clone(), true
}

func (c *ServiceCache) findWaitingLocked() *domain.ServiceRecord {
	var best *domain.ServiceRecord
	for _, item := range c.records.Items() {
		record := item.Value()
		if !record.WaitingForTiming || record.HasTimings || record.Decided() {
			continue
		}
		if best == nil || record.CreatedAt.After(best.CreatedAt) {
			best = record
		}
	}
	return best
}

func (c *ServiceCache) findRecentUnTimedLocked() *domain.ServiceRecord {
	var best *domain.ServiceRecord
	now := time.Now()
	for _, item := range c.records.Items() {
		record := item.Value()
		if !record.HasURL() || record.HasTimings || record.Decided() {
			continue
		}
		if now.Sub(record.CreatedAt) > c.timingWindow {
			continue
		}
		if best == nil || record.CreatedAt.After(best.CreatedAt) {
			best = record
		}
	}
	return best
}

// BeginDurationSelection moves an undecided record into duration selection.
// It fails when the record is gone or already decided.
func (c *ServiceCache) BeginDurationSelection(id string) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.records.Get(id)
	if item == nil {
		return nil, false
	}
	record := item.Value()
	if record.Decided() {
		return nil, false
	}
	record.SelectingDuration = true
	return record.Clone(), true
}

// Decide applies the terminal operator decision. Whoever reaches the record
// first wins; the second caller gets ok=false. A rejected record leaves the
// cache immediately.
func (c *ServiceCache) Decide(id string, decision domain.Decision) (*domain.ServiceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.records.Get(id)
	if item == nil {
		return nil, false
	}
	record := item.Value()
	if record.Decided() {
		return nil, false
	}
	record.Decision = decision
	record.SelectingDuration = false
	snapshot := record.Clone()
	if decision.State == domain.DecisionRejected {
		c.records.Delete(id)
	}
	c.logf("service %s decided state=%s by=%s", id, decision.State, decision.By)
	return snapshot, true
}

func (c *ServiceCache) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
