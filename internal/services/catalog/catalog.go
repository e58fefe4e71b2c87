// Package catalog manages the event catalog: admin mutations, input
// validation, the in-memory snapshot served to visitors and change
// notifications.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
	ErrInvalidView   = errors.New("invalid view parameters")
)

const publishTimeout = 5 * time.Second

type EventStorage interface {
	Events(ctx context.Context) ([]events.Event, error)
	Event(ctx context.Context, id string) (events.Event, error)
	SaveEvent(ctx context.Context, event events.Event) error
	UpdateEvent(ctx context.Context, event events.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type ChangePublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Input is the admin-editable part of an event
type Input struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=5000"`
	Date        string          `json:"date" validate:"required,timestamp"`
	Location    string          `json:"location" validate:"required,max=200"`
	Category    events.Category `json:"category" validate:"required,category"`
}

// normalized trims surrounding whitespace so blank fields fail required
func (in Input) normalized() Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Location = strings.TrimSpace(in.Location)
	return in
}

type Catalog struct {
	log       *slog.Logger
	storage   EventStorage
	publisher ChangePublisher
	validate  *validator.Validate
	store     *events.Store
	now       func() time.Time

	// serializes storage reads with snapshot swaps
	refreshMu sync.Mutex
}

// New returns a catalog with an empty snapshot; call Refresh to load it.
// publisher may be nil.
func New(log *slog.Logger, storage EventStorage, publisher ChangePublisher) *Catalog {
	return &Catalog{
		log:       log,
		storage:   storage,
		publisher: publisher,
		validate:  newValidator(),
		store:     events.NewStore(nil),
		now:       time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "timestamp", func(fl validator.FieldLevel) bool {
		_, ok := events.ParseTimestamp(fl.Field().String())
		return ok
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return events.Category(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("catalog: register %q validation: %v", tag, err))
	}
}

// Validate checks input and returns an ErrInvalidEvent describing every
// failing field. Whitespace-only fields count as missing.
func (c *Catalog) Validate(input Input) error {
	err := c.validate.Struct(input.normalized())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "timestamp":
		return field + " is not a valid date"
	case "category":
		return fmt.Sprintf("%s %q is not a known category", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// Refresh reloads every event from storage and swaps the snapshot
func (c *Catalog) Refresh(ctx context.Context) error {
	const op = "catalog.Refresh"

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	list, err := c.storage.Events(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.store.Replace(list)

	c.log.Debug("catalog refreshed", slog.String("op", op), slog.Int("events", len(list)))
	return nil
}

// StartRefreshing reloads the snapshot every interval until ctx is done.
// Other instances may write to the same database.
func (c *Catalog) StartRefreshing(ctx context.Context, interval time.Duration) {
	const op = "catalog.StartRefreshing"
	log := c.log.With(slog.String("op", op))

	if interval <= 0 {
		return
	}

	log.Info("starting periodic refresh", slog.Duration("interval", interval))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping periodic refresh")
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					log.Error("failed to refresh catalog", sl.Err(err))
				}
			}
		}
	}()
}

// Create stores a new event built from input
func (c *Catalog) Create(ctx context.Context, input Input) (events.Event, error) {
	const op = "catalog.Create"
	log := c.log.With(slog.String("op", op))

	if err := c.Validate(input); err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	input = input.normalized()

	event := events.Event{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		Category:    input.Category,
		CreatedAt:   events.FormatTimestamp(c.now()),
	}

	if err := c.storage.SaveEvent(ctx, event); err != nil {
		log.Error("failed to save event", sl.Err(err))
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("event created", slog.String("id", event.ID))
	c.afterChange(ctx, models.ChangeEventCreated, event.ID, &event)

	return event, nil
}

// Update replaces the editable fields of an existing event. ID and
// CreatedAt never change.
func (c *Catalog) Update(ctx context.Context, id string, input Input) (events.Event, error) {
	const op = "catalog.Update"
	log := c.log.With(slog.String("op", op), slog.String("id", id))

	if err := c.Validate(input); err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	input = input.normalized()

	event, err := c.storage.Event(ctx, id)
	if err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	event.Title = input.Title
	event.Description = input.Description
	event.Date = input.Date
	event.Location = input.Location
	event.Category = input.Category

	if err := c.storage.UpdateEvent(ctx, event); err != nil {
		log.Error("failed to update event", sl.Err(err))
		return events.Event{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	log.Info("event updated")
	c.afterChange(ctx, models.ChangeEventUpdated, event.ID, &event)

	return event, nil
}

// Delete removes an event. Subscription lists keep the stale id; readers
// skip it.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	const op = "catalog.Delete"
	log := c.log.With(slog.String("op", op), slog.String("id", id))

	if err := c.storage.DeleteEvent(ctx, id); err != nil {
		if !errors.Is(err, storage.ErrEventNotFound) {
			log.Error("failed to delete event", sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	log.Info("event deleted")
	c.afterChange(ctx, models.ChangeEventDeleted, id, nil)

	return nil
}

// Event returns a single event straight from storage
func (c *Catalog) Event(ctx context.Context, id string) (events.Event, error) {
	const op = "catalog.Event"

	event, err := c.storage.Event(ctx, id)
	if err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}
	return event, nil
}

// Lookup finds an event in the current snapshot
func (c *Catalog) Lookup(id string) (events.Event, bool) {
	for _, e := range c.store.State().Events {
		if e.ID == id {
			return e, true
		}
	}
	return events.Event{}, false
}

// Snapshot returns the full cached collection
func (c *Catalog) Snapshot() []events.Event {
	return c.store.Events()
}

// View filters and sorts the snapshot for one request. Empty category and
// sort select the defaults. The shared snapshot is left untouched.
func (c *Catalog) View(search string, category events.Category, sort events.SortOption) (events.State, error) {
	const op = "catalog.View"

	if category == "" {
		category = events.CategoryAll
	}
	if sort == "" {
		sort = events.DefaultSort
	}
	if !category.ValidFilter() {
		return events.State{}, fmt.Errorf("%s: %w: unknown category %q", op, ErrInvalidView, category)
	}
	if !sort.Valid() {
		return events.State{}, fmt.Errorf("%s: %w: unknown sort option %q", op, ErrInvalidView, sort)
	}

	return events.Reduce(c.store.State(),
		events.SetSearchTerm(search),
		events.SetCategoryFilter(category),
		events.SetSortOption(sort),
	), nil
}

// afterChange reloads the snapshot and publishes the change. Neither step
// fails the mutation that already hit storage.
func (c *Catalog) afterChange(ctx context.Context, changeType, eventID string, event *events.Event) {
	const op = "catalog.afterChange"
	log := c.log.With(slog.String("op", op), slog.String("id", eventID))

	if err := c.Refresh(ctx); err != nil {
		log.Error("failed to refresh catalog", sl.Err(err))
	}

	if c.publisher == nil {
		return
	}

	data, err := json.Marshal(models.Change{
		ID:         uuid.NewString(),
		Type:       changeType,
		EventID:    eventID,
		Event:      event,
		OccurredAt: c.now().UTC(),
	})
	if err != nil {
		log.Error("failed to encode change", sl.Err(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := c.publisher.Publish(pubCtx, []byte(eventID), data); err != nil {
		log.Warn("failed to publish change", slog.String("type", changeType), sl.Err(err))
	}
}

func mapStorageErr(err error) error {
	if errors.Is(err, storage.ErrEventNotFound) {
		return ErrEventNotFound
	}
	return err
}
