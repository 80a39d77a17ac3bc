package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/geo"
)

type fakeExtractor struct {
	slots framework.Slots
	err   error
}

func (f fakeExtractor) ExtractSlots(ctx context.Context, history []framework.Message, current framework.Slots, userInput string) (framework.Slots, error) {
	return f.slots, f.err
}

type fakeGeocoder struct {
	locations map[string]*geo.Location
	err       error
}

func (f fakeGeocoder) Lookup(ctx context.Context, zip string) (*geo.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	if loc, ok := f.locations[zip]; ok {
		return loc, nil
	}
	return nil, fmt.Errorf("%w: %s", geo.ErrNotFound, zip)
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCollectMergesAndInfersCityState(t *testing.T) {
	c := &InfoCollector{
		Extractor: fakeExtractor{slots: framework.Slots{
			FirstName: strPtr("Ada"),
			Zip:       strPtr("30301"),
		}},
		Geocoder: fakeGeocoder{locations: map[string]*geo.Location{
			"30301": {City: "Atlanta", State: "GA"},
		}},
	}
	state := framework.NewConversationState("s1")
	state.LastUserInput = "I'm Ada, zip 30301"

	c.Collect(context.Background(), state)

	assert.Equal(t, "Ada", *state.Slots.FirstName)
	assert.Equal(t, "Atlanta", *state.Slots.City)
	assert.Equal(t, "GA", *state.Slots.State)

	last, _ := state.LastMessage()
	assert.Equal(t, framework.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Inferred City: Atlanta")
}

func TestCollectRederivesOnZipCorrection(t *testing.T) {
	c := &InfoCollector{
		Extractor: fakeExtractor{slots: framework.Slots{Zip: strPtr("94105")}},
		Geocoder: fakeGeocoder{locations: map[string]*geo.Location{
			"94105": {City: "San Francisco", State: "CA"},
		}},
	}
	state := framework.NewConversationState("s1")
	state.Slots.Zip = strPtr("30301")
	state.Slots.City = strPtr("Atlanta")
	state.Slots.State = strPtr("GA")
	state.LastUserInput = "actually my zip is 94105"

	c.Collect(context.Background(), state)

	assert.Equal(t, "94105", *state.Slots.Zip)
	assert.Equal(t, "San Francisco", *state.Slots.City)
	assert.Equal(t, "CA", *state.Slots.State)
}

func TestCollectNotesUnknownZip(t *testing.T) {
	c := &InfoCollector{
		Extractor: fakeExtractor{slots: framework.Slots{Zip: strPtr("00000")}},
		Geocoder:  fakeGeocoder{},
	}
	state := framework.NewConversationState("s1")
	state.LastUserInput = "zip is 00000"

	c.Collect(context.Background(), state)

	assert.Equal(t, "00000", *state.Slots.Zip)
	assert.Nil(t, state.Slots.City)
	last, _ := state.LastMessage()
	assert.Contains(t, last.Content, "Cannot infer city and state")
}

func TestCollectSwallowsExtractionFailures(t *testing.T) {
	c := &InfoCollector{Extractor: fakeExtractor{err: errors.New("model offline")}}
	state := framework.NewConversationState("s1")
	state.Slots.FirstName = strPtr("Ada")
	state.LastUserInput = "my email is ada@example.com"

	c.Collect(context.Background(), state)

	assert.Equal(t, "Ada", *state.Slots.FirstName)
	assert.Nil(t, state.Slots.Email)
}

func TestCollectNeverClearsKnownFields(t *testing.T) {
	c := &InfoCollector{
		Extractor: fakeExtractor{slots: framework.Slots{
			Email: strPtr("not-an-email"), // fails sanitization
		}},
	}
	state := framework.NewConversationState("s1")
	state.Slots.Email = strPtr("ada@example.com")
	state.Slots.Debt = floatPtr(9000)
	state.LastUserInput = "whatever"

	c.Collect(context.Background(), state)

	assert.Equal(t, "ada@example.com", *state.Slots.Email)
	assert.Equal(t, 9000.0, *state.Slots.Debt)
}
