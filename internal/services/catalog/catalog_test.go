package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/storage/jsonfile"
)

type publishedMessage struct {
	key    string
	change models.Change
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var change models.Change
	if err := json.Unmarshal(value, &change); err != nil {
		return err
	}
	p.messages = append(p.messages, publishedMessage{key: string(key), change: change})
	return nil
}

var fixedNow = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestCatalog(t *testing.T) (*Catalog, *jsonfile.Storage, *fakePublisher) {
	t.Helper()
	st, err := jsonfile.New(sl.Discard(), "")
	require.NoError(t, err)

	pub := &fakePublisher{}
	c := New(sl.Discard(), st, pub)
	c.now = func() time.Time { return fixedNow }
	require.NoError(t, c.Refresh(context.Background()))
	return c, st, pub
}

func validInput() Input {
	return Input{
		Title:       gofakeit.LetterN(10),
		Description: gofakeit.Sentence(8),
		Date:        "2025-06-01T18:00:00Z",
		Location:    gofakeit.City(),
		Category:    events.CategoryMeetup,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	c, st, pub := newTestCatalog(t)

	input := validInput()
	input.Title = "  Go Meetup  "
	input.Location = " Hamburg\n"
	event, err := c.Create(ctx, input)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Go Meetup", event.Title)
	assert.Equal(t, "Hamburg", event.Location)
	assert.Equal(t, "2025-04-01T08:00:00Z", event.CreatedAt)

	stored, err := st.Event(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event, stored)

	assert.Equal(t, []events.Event{event}, c.Snapshot())

	require.Len(t, pub.messages, 1)
	assert.Equal(t, event.ID, pub.messages[0].key)
	assert.Equal(t, models.ChangeEventCreated, pub.messages[0].change.Type)
	require.NotNil(t, pub.messages[0].change.Event)
	assert.Equal(t, event, *pub.messages[0].change.Event)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr string
	}{
		{name: "missing title", mutate: func(in *Input) { in.Title = "" }, wantErr: "title is required"},
		{name: "blank title", mutate: func(in *Input) { in.Title = "   " }, wantErr: "title is required"},
		{name: "missing description", mutate: func(in *Input) { in.Description = "" }, wantErr: "description is required"},
		{name: "missing location", mutate: func(in *Input) { in.Location = "\t " }, wantErr: "location is required"},
		{name: "long title", mutate: func(in *Input) { in.Title = strings.Repeat("a", 201) }, wantErr: "title must be at most 200"},
		{name: "long description", mutate: func(in *Input) { in.Description = strings.Repeat("d", 5001) }, wantErr: "description must be at most 5000"},
		{name: "long location", mutate: func(in *Input) { in.Location = strings.Repeat("l", 201) }, wantErr: "location must be at most 200"},
		{name: "missing date", mutate: func(in *Input) { in.Date = "" }, wantErr: "date is required"},
		{name: "bad date", mutate: func(in *Input) { in.Date = "next friday" }, wantErr: "date is not a valid date"},
		{name: "missing category", mutate: func(in *Input) { in.Category = "" }, wantErr: "category is required"},
		{name: "unknown category", mutate: func(in *Input) { in.Category = "party" }, wantErr: "not a known category"},
		{name: "all is not a category", mutate: func(in *Input) { in.Category = events.CategoryAll }, wantErr: "not a known category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, pub := newTestCatalog(t)
			input := validInput()
			tt.mutate(&input)

			_, err := c.Create(context.Background(), input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, c.Snapshot())
			assert.Empty(t, pub.messages)
		})
	}
}

func TestValidate_LengthCountsCharacters(t *testing.T) {
	c, _, _ := newTestCatalog(t)

	input := validInput()
	input.Title = strings.Repeat("ü", 200)
	assert.NoError(t, c.Validate(input))

	input.Title = strings.Repeat("ü", 201)
	assert.ErrorIs(t, c.Validate(input), ErrInvalidEvent)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	c, _, pub := newTestCatalog(t)

	created, err := c.Create(ctx, validInput())
	require.NoError(t, err)

	c.now = func() time.Time { return fixedNow.Add(time.Hour) }
	input := validInput()
	input.Title = "Renamed"
	input.Category = events.CategoryExhibition

	updated, err := c.Update(ctx, created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, events.CategoryExhibition, updated.Category)

	got, ok := c.Lookup(created.ID)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, models.ChangeEventUpdated, pub.messages[1].change.Type)

	_, err = c.Update(ctx, "missing", validInput())
	assert.ErrorIs(t, err, ErrEventNotFound)

	input.Title = ""
	_, err = c.Update(ctx, created.ID, input)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestCreate_ConcurrentMutationsAllVisible(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCatalog(t)

	const n = 20
	ids := make([]string, n)
	inputs := make([]Input, n)
	for i := range inputs {
		inputs[i] = validInput()
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event, err := c.Create(ctx, inputs[i])
			assert.NoError(t, err)
			ids[i] = event.ID
		}()
	}
	wg.Wait()

	snapshot := c.Snapshot()
	require.Len(t, snapshot, n)
	for _, id := range ids {
		_, ok := c.Lookup(id)
		assert.True(t, ok, id)
	}
}

func TestMustRegister_PanicsOnBadTag(t *testing.T) {
	v := newValidator()
	assert.Panics(t, func() {
		mustRegister(v, "", func(validator.FieldLevel) bool { return true })
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _, pub := newTestCatalog(t)

	created, err := c.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, created.ID))
	assert.Empty(t, c.Snapshot())
	_, ok := c.Lookup(created.ID)
	assert.False(t, ok)

	_, err = c.Event(ctx, created.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, models.ChangeEventDeleted, pub.messages[1].change.Type)
	assert.Nil(t, pub.messages[1].change.Event)

	assert.ErrorIs(t, c.Delete(ctx, created.ID), ErrEventNotFound)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	c, _, pub := newTestCatalog(t)
	pub.err = errors.New("broker unavailable")

	event, err := c.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, []events.Event{event}, c.Snapshot())
}

func TestNoPublisher(t *testing.T) {
	st, err := jsonfile.New(sl.Discard(), "")
	require.NoError(t, err)
	c := New(sl.Discard(), st, nil)

	_, err = c.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Len(t, c.Snapshot(), 1)
}

func TestView(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCatalog(t)

	for _, in := range []Input{
		{Title: "Beta Workshop", Description: "Hands-on", Location: "Paris", Date: "2025-03-01", Category: events.CategoryWorkshop},
		{Title: "Alpha Conference", Description: "Keynotes", Location: "Lyon", Date: "2025-01-01", Category: events.CategoryConference},
		{Title: "Gamma Workshop", Description: "Hands-on", Location: "Nice", Date: "2025-02-01", Category: events.CategoryWorkshop},
	} {
		_, err := c.Create(ctx, in)
		require.NoError(t, err)
	}

	titles := func(list []events.Event) []string {
		out := make([]string, len(list))
		for i, e := range list {
			out[i] = e.Title
		}
		return out
	}

	state, err := c.View("", "", "")
	require.NoError(t, err)
	assert.Equal(t, events.CategoryAll, state.Category)
	assert.Equal(t, events.DefaultSort, state.Sort)
	assert.Equal(t, []string{"Alpha Conference", "Gamma Workshop", "Beta Workshop"}, titles(state.Visible))

	state, err = c.View("workshop", events.CategoryWorkshop, events.SortTitleDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamma Workshop", "Beta Workshop"}, titles(state.Visible))

	// views are per request
	state, err = c.View("", events.CategoryAll, events.SortTitleAsc)
	require.NoError(t, err)
	assert.Len(t, state.Visible, 3)

	_, err = c.View("", "party", "")
	assert.ErrorIs(t, err, ErrInvalidView)
	_, err = c.View("", "", "popularity")
	assert.ErrorIs(t, err, ErrInvalidView)
}

func TestStartRefreshing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, st, _ := newTestCatalog(t)
	c.StartRefreshing(ctx, 10*time.Millisecond)

	// another instance writes directly to the shared storage
	require.NoError(t, st.SaveEvent(ctx, events.Event{ID: "external", Title: "External", Date: "2025-01-01", Category: events.CategoryOther}))

	assert.Eventually(t, func() bool {
		_, ok := c.Lookup("external")
		return ok
	}, time.Second, 10*time.Millisecond)
}
