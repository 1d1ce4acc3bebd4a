package gallery

import "time"

// Upsert replaces any entry sharing e's id, puts e first and stamps the feed.
// Untouched entries keep their relative order.
func (f *Feed) Upsert(e *Entry, now time.Time) {
	kept := make([]*Entry, 0, len(f.Entries)+1)
	kept = append(kept, e)
	for _, existing := range f.Entries {
		if existing.ID == e.ID {
			continue
		}
		kept = append(kept, existing)
	}
	f.Entries = kept
	f.Updated = formatTime(now)
}
