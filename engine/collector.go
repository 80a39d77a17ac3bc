// Package engine runs conversation turns: it extracts customer fields from
// free text, lets the decision step pick the next move, executes tools
// against authoritative state, and suspends the turn whenever a consent
// question needs a human answer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/geo"
	"github.com/lexcodex/leadline/llm"
)

// InfoCollector turns freeform user text into slot updates and keeps the
// city/state pair consistent with the zip code. A nil Extractor disables
// extraction entirely, which the resume path uses for yes/no answers.
type InfoCollector struct {
	Extractor llm.Extractor
	Geocoder  geo.Geocoder
	Logger    *log.Logger
}

// Collect runs one extraction pass over the latest user input and merges the
// sanitized candidate into state. Extraction failures are logged and
// swallowed: a field the model could not read is simply still unknown.
func (c *InfoCollector) Collect(ctx context.Context, state *framework.ConversationState) {
	if c == nil || c.Extractor == nil || state.LastUserInput == "" {
		return
	}
	candidate, err := c.Extractor.ExtractSlots(ctx, state.Messages, state.Slots, state.LastUserInput)
	if err != nil {
		c.logf("slot extraction failed for session %s: %v", state.SessionID, err)
		return
	}
	candidate = candidate.Sanitize()

	prevZip := state.Slots.Zip
	merged := framework.MergeSlots(state.Slots, candidate)

	zipChanged := merged.Zip != nil && (prevZip == nil || *prevZip != *merged.Zip)
	if merged.Zip != nil && (zipChanged || merged.City == nil || merged.State == nil) {
		c.inferCityState(ctx, state, &merged, zipChanged)
	}
	state.Slots = merged
}

// inferCityState derives City/State from the zip. A changed zip overwrites
// the previous pair; a lookup failure leaves whatever was there and notes the
// problem in the transcript so the assistant can ask the customer to check.
func (c *InfoCollector) inferCityState(ctx context.Context, state *framework.ConversationState, slots *framework.Slots, zipChanged bool) {
	if c.Geocoder == nil {
		return
	}
	loc, err := c.Geocoder.Lookup(ctx, *slots.Zip)
	switch {
	case err == nil:
		if zipChanged || slots.City == nil {
			slots.City = &loc.City
		}
		if zipChanged || slots.State == nil {
			slots.State = &loc.State
		}
		state.Append(framework.SystemNote(fmt.Sprintf("Inferred City: %s, Inferred State: %s", loc.City, loc.State)))
	case errors.Is(err, geo.ErrNotFound), errors.Is(err, geo.ErrInvalidZip):
		state.Append(framework.SystemNote(fmt.Sprintf("Cannot infer city and state from this zip code (%s), please check again.", *slots.Zip)))
	default:
		c.logf("zip lookup failed for session %s: %v", state.SessionID, err)
	}
}

func (c *InfoCollector) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
