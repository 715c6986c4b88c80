package chain

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/erikbryant/optionchain/date"
)

// Normalizer flattens raw strike entries into tables.
type Normalizer struct {
	Log logrus.FieldLogger
}

func (n Normalizer) skip(err error, entry Entry) {
	if n.Log == nil {
		return
	}
	n.Log.WithError(err).WithField("strike", entry[KeyStrike]).Warn("Skipping malformed option chain entry")
}

// record converts one entry into a StrikeRecord.
func record(entry Entry, expiry date.Expiry) (StrikeRecord, error) {
	var r StrikeRecord
	var err error

	r.Expiry = expiry

	r.Strike, err = entry.Strike()
	if err != nil {
		return r, err
	}

	r.Call, err = quoteSide(entry[KeyCall])
	if err != nil {
		return r, fmt.Errorf("%s: %w", KeyCall, err)
	}

	r.Put, err = quoteSide(entry[KeyPut])
	if err != nil {
		return r, fmt.Errorf("%s: %w", KeyPut, err)
	}

	return r, nil
}

// Normalize returns one table per wanted expiry that matched at least one entry, in the order of wanted.
// Rows keep the order of entries. Entries for other expiries are dropped, malformed entries are logged and
// skipped. If nothing matched at all, ErrEmptyTable is returned.
func (n Normalizer) Normalize(symbol string, entries []Entry, wanted []date.Expiry) ([]Table, error) {
	index := make(map[date.Expiry]int)
	var tables []Table

	for _, w := range wanted {
		if _, ok := index[w]; ok {
			continue
		}
		index[w] = len(tables)
		tables = append(tables, Table{Symbol: symbol, Expiry: w})
	}

	type key struct {
		strike string
		expiry date.Expiry
	}
	seen := make(map[key]bool)
	matched := 0

	for _, entry := range entries {
		if len(index) == 0 {
			break
		}

		expiry, err := date.ParseExpiry(entry.ExpiryString())
		if err != nil {
			n.skip(&ParseError{Field: KeyExpiry, Value: entry[KeyExpiry], Err: err}, entry)
			continue
		}

		i, ok := index[expiry]
		if !ok {
			continue
		}

		r, err := record(entry, expiry)
		if err != nil {
			n.skip(err, entry)
			continue
		}

		k := key{strike: r.Strike.String(), expiry: expiry}
		if seen[k] {
			n.skip(fmt.Errorf("duplicate strike %s for %s", r.Strike, expiry), entry)
			continue
		}
		seen[k] = true

		tables[i].Records = append(tables[i].Records, r)
		matched++
	}

	if matched == 0 {
		return nil, fmt.Errorf("%w for %s expiries %v", ErrEmptyTable, symbol, wanted)
	}

	// Drop expiries that matched nothing; callers look tables up by expiry.
	result := tables[:0]
	for _, t := range tables {
		if len(t.Records) > 0 {
			result = append(result, t)
		}
	}

	return result, nil
}

// Normalize is Normalizer.Normalize without logging.
func Normalize(symbol string, entries []Entry, wanted []date.Expiry) ([]Table, error) {
	return Normalizer{}.Normalize(symbol, entries, wanted)
}

// Find returns the table for expiry, if present.
func Find(tables []Table, expiry date.Expiry) (Table, bool) {
	for _, t := range tables {
		if t.Expiry.Equal(expiry) {
			return t, true
		}
	}
	return Table{}, false
}
