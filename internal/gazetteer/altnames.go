package gazetteer

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/fetcher"
)

// preferredFlag marks a preferred alternate name.
const preferredFlag = "1"

// localizedName is the current choice for one place while the
// alternate-names stream is folded.
type localizedName struct {
	Name      string
	Preferred bool
}

// mergeCandidate returns the entry to keep after seeing cand. A preferred
// entry is only displaced by another preferred candidate; otherwise the
// later candidate wins.
func mergeCandidate(existing localizedName, ok bool, cand localizedName) localizedName {
	if ok && existing.Preferred && !cand.Preferred {
		return existing
	}
	return cand
}

// ResolveStats counts what the resolver did with the stream.
type ResolveStats struct {
	Lines    int // rows read
	Matched  int // rows folded into the mapping
	Filtered int // rows for unknown places or other locales
	Skipped  int // malformed rows
}

// NameResolver folds alternate-name rows into one localized name per known
// place.
type NameResolver struct {
	known  IDSet
	locale string
	cols   AltNameColumns
	split  int

	names map[string]localizedName
	stats ResolveStats
}

// NewNameResolver creates a resolver keeping rows whose identifier is in
// known and whose language equals locale.
func NewNameResolver(known IDSet, locale string, cols AltNameColumns) *NameResolver {
	return &NameResolver{
		known:  known,
		locale: locale,
		cols:   cols,
		split:  cols.maxIndex() + 2,
		names:  make(map[string]localizedName),
	}
}

// Add folds one tab-separated row. It returns false when the row was dropped.
func (r *NameResolver) Add(line string) bool {
	r.stats.Lines++

	fields := strings.SplitN(line, "\t", r.split)
	if len(fields) <= r.cols.maxRequired() {
		r.stats.Skipped++
		return false
	}

	id := strings.TrimSpace(fields[r.cols.ID])
	if !r.known.Contains(id) {
		r.stats.Filtered++
		return false
	}
	if strings.TrimSpace(fields[r.cols.Lang]) != r.locale {
		r.stats.Filtered++
		return false
	}
	name := strings.TrimSpace(fields[r.cols.Name])
	if name == "" {
		r.stats.Skipped++
		return false
	}

	cand := localizedName{Name: name}
	if len(fields) > r.cols.Preferred {
		cand.Preferred = strings.TrimSpace(fields[r.cols.Preferred]) == preferredFlag
	}

	existing, ok := r.names[id]
	r.names[id] = mergeCandidate(existing, ok, cand)
	r.stats.Matched++
	return true
}

// Names returns identifier → chosen localized name.
func (r *NameResolver) Names() map[string]string {
	out := make(map[string]string, len(r.names))
	for id, ln := range r.names {
		out[id] = ln.Name
	}
	return out
}

// Stats returns the counters collected so far.
func (r *NameResolver) Stats() ResolveStats {
	return r.stats
}

// ResolveLocalizedNames streams the alternate-names dump from r once and
// returns the chosen name for each place in known that has one in locale.
func ResolveLocalizedNames(ctx context.Context, r io.Reader, known IDSet, locale string, cols AltNameColumns) (map[string]string, ResolveStats, error) {
	res := NewNameResolver(known, locale, cols)
	dropped, err := fetcher.ScanLines(ctx, r, func(line string) { res.Add(line) })
	if err != nil {
		return nil, res.Stats(), eris.Wrap(err, "gazetteer: read alternate names")
	}

	stats := res.Stats()
	stats.Lines += dropped
	stats.Skipped += dropped
	names := res.Names()
	zap.L().Debug("gazetteer: localized names resolved",
		zap.String("locale", locale),
		zap.Int("lines", stats.Lines),
		zap.Int("matched", stats.Matched),
		zap.Int("filtered", stats.Filtered),
		zap.Int("skipped", stats.Skipped),
		zap.Int("places_named", len(names)),
	)
	return names, stats, nil
}
