package blocks

import (
	"context"
)

// updater is the per-block part of the common polling loop.
type updater struct {
	every   Interval
	formats *Formats
	// update reads the block's source and queues the new state.
	update func(ctx context.Context, api *API) error
	// handle, when set, reacts to an event before the next update.
	handle func(ctx context.Context, api *API, ev Event) error
}

// run updates the block now, after every interval, and after every event,
// until ctx is done or update fails. A left click switches between format
// and format_alt.
func (u updater) run(ctx context.Context, api *API, events <-chan Event) error {
	if u.formats != nil {
		api.SetFormat(u.formats.Current())
	}
	for {
		if err := u.update(ctx, api); err != nil {
			return err
		}
		if err := api.Flush(ctx); err != nil {
			return nil
		}

		ev, got, err := Wait(ctx, u.every, events)
		if err != nil {
			return nil
		}
		if !got {
			continue
		}
		if u.formats != nil && u.formats.HandleClick(ev) {
			api.SetFormat(u.formats.Current())
		}
		if u.handle != nil {
			if err := u.handle(ctx, api, ev); err != nil {
				return err
			}
		}
	}
}
