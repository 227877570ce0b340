package monitor

import (
	"context"
	"log"
	"time"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
	"nasfaqv2/brokerbot/ytmonitor/internal/youtube"
)

// API is the slice of the YouTube client the monitor needs.
type API interface {
	SearchEvents(ctx context.Context, channelID string, eventType youtube.EventType, maxResults int) ([]youtube.SearchHit, error)
	LiveDetails(ctx context.Context, videoIDs []string) (map[string]youtube.LiveDetails, error)
}

// FetchResult is the outcome of a full fetch. Errs holds one entry per
// failed API call; a call that failed contributed no events.
type FetchResult struct {
	Events         []events.Event
	Errs           []error
	Searches       int
	FailedSearches int
}

// SearchFailed reports whether every search call failed, in which case an
// empty Events says nothing about the channel.
func (r FetchResult) SearchFailed() bool {
	return r.Searches > 0 && r.FailedSearches == r.Searches
}

// CallError records which API call failed.
type CallError struct {
	Call string
	Arg  string
	Err  error
}

func (e *CallError) Error() string { return e.Call + " " + e.Arg + ": " + e.Err.Error() }
func (e *CallError) Unwrap() error { return e.Err }

type Fetcher struct {
	API         API
	MaxResults  int
	CallTimeout time.Duration
}

var searchTypes = []youtube.EventType{youtube.EventLive, youtube.EventUpcoming}

// Fetch discovers the channel's live and upcoming broadcasts and fills in
// their timing from videos.list.
func (f *Fetcher) Fetch(ctx context.Context, ch Registered) FetchResult {
	var res FetchResult
	seen := make(map[string]struct{})

	for _, et := range searchTypes {
		res.Searches++
		cctx, cancel := f.callContext(ctx)
		hits, err := f.API.SearchEvents(cctx, ch.ID, et, f.MaxResults)
		cancel()
		if err != nil {
			log.Printf("fetch: channel=%s %s search error: %v", ch.ID, et, err)
			res.FailedSearches++
			res.Errs = append(res.Errs, &CallError{Call: "search", Arg: string(et), Err: err})
			continue
		}
		for _, h := range hits {
			if _, dup := seen[h.VideoID]; dup {
				continue
			}
			seen[h.VideoID] = struct{}{}
			res.Events = append(res.Events, events.Event{
				VideoID: h.VideoID,
				Title:   h.Title,
				URL:     events.WatchURL(h.VideoID),
			})
		}
	}

	if len(res.Events) == 0 {
		return res
	}

	details, errs := f.Details(ctx, videoIDs(res.Events))
	res.Errs = append(res.Errs, errs...)
	for i := range res.Events {
		d := details[res.Events[i].VideoID]
		res.Events[i].ApplyTiming(timing(d))
	}
	return res
}

// Details looks up live timing for ids in batches of youtube.MaxIDsPerCall.
// A failed batch is logged and skipped; the others still count.
func (f *Fetcher) Details(ctx context.Context, ids []string) (map[string]youtube.LiveDetails, []error) {
	out := make(map[string]youtube.LiveDetails, len(ids))
	var errs []error
	for start := 0; start < len(ids); start += youtube.MaxIDsPerCall {
		end := start + youtube.MaxIDsPerCall
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		cctx, cancel := f.callContext(ctx)
		got, err := f.API.LiveDetails(cctx, batch)
		cancel()
		if err != nil {
			log.Printf("fetch: videos batch %d-%d of %d error: %v", start+1, end, len(ids), err)
			errs = append(errs, &CallError{Call: "videos", Arg: batch[0], Err: err})
			continue
		}
		for id, d := range got {
			out[id] = d
		}
	}
	return out, errs
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.CallTimeout)
}

func timing(d youtube.LiveDetails) events.Timing {
	return events.Timing{
		ActualStartTime:    d.ActualStartTime,
		ScheduledStartTime: d.ScheduledStartTime,
		ActualEndTime:      d.ActualEndTime,
	}
}

func videoIDs(evs []events.Event) []string {
	ids := make([]string, 0, len(evs))
	for _, ev := range evs {
		if ev.VideoID != "" {
			ids = append(ids, ev.VideoID)
		}
	}
	return ids
}
