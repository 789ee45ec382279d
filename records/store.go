package records

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"chatdash/core"

	"github.com/sirupsen/logrus"
)

// Status is the structured outcome of a mutating record operation.
type Status int

const (
	StatusCreated Status = iota + 1
	StatusUpdated
	StatusDeleted
	StatusConflict
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusUpdated:
		return "updated"
	case StatusDeleted:
		return "deleted"
	case StatusConflict:
		return "conflict"
	case StatusNotFound:
		return "not_found"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome reports what a mutation did. Matched counts the records selected by the
// filter of an update or delete; it is zero for a no-op that still reports success.
type Outcome struct {
	Status  Status
	Matched int
}

// Filter selects records whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Cardinality tags how many records a filtered read matched.
type Cardinality int

const (
	None Cardinality = iota
	One
	Many
)

// ReadResult carries the records returned by Read together with an explicit
// cardinality tag.
type ReadResult struct {
	Cardinality Cardinality
	Records     []core.Record
}

// One returns the single matched record when the read collapsed to exactly one.
func (r ReadResult) One() (core.Record, bool) {
	if r.Cardinality != One {
		return nil, false
	}
	return r.Records[0], true
}

// All returns every record in the result, never nil.
func (r ReadResult) All() []core.Record {
	if r.Records == nil {
		return []core.Record{}
	}
	return r.Records
}

// Store implements create/read/update/delete over named collections kept in a
// core.Backend. Each collection is persisted as one JSON array and every mutation
// rewrites the whole array.
type Store struct {
	mu      sync.Mutex
	backend core.Backend
}

// NewStore creates a record store on top of backend.
func NewStore(backend core.Backend) *Store {
	return &Store{backend: backend}
}

// Create appends record to collection unless a record with the same value for field
// already exists.
func (s *Store) Create(ctx context.Context, collection string, record core.Record, field string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"collection": collection, "field": field})

	records, _, err := s.load(ctx, collection)
	if err != nil {
		return Outcome{}, err
	}

	if record == nil {
		return Outcome{}, fmt.Errorf("%w: record is nil", core.ErrValidation)
	}
	normalized, err := normalizeRecord(record)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: record is not encodable: %v", core.ErrValidation, err)
	}

	// Two records that both lack the field share the same (absent) identifier.
	want, present := normalized[field]
	for _, existing := range records {
		have, ok := existing[field]
		if ok == present && (!ok || reflect.DeepEqual(have, want)) {
			log.WithField("value", want).Warn("Record with identifier already exists")
			return Outcome{Status: StatusConflict}, nil
		}
	}

	records = append(records, normalized)
	if err := s.save(ctx, collection, records); err != nil {
		return Outcome{}, err
	}

	log.WithField("size", len(records)).Debug("Record created")
	return Outcome{Status: StatusCreated, Matched: 1}, nil
}

// Read returns the whole collection when filter is nil. With a filter, it returns
// every record whose field equals the filter value, tagged by cardinality.
// A missing collection reads as empty.
func (s *Store) Read(ctx context.Context, collection string, filter *Filter) (ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, collection)
	if err != nil {
		return ReadResult{}, err
	}

	if filter == nil {
		if len(records) == 0 {
			return ReadResult{Cardinality: None, Records: []core.Record{}}, nil
		}
		return ReadResult{Cardinality: Many, Records: records}, nil
	}

	value, err := normalizeValue(filter.Value)
	if err != nil {
		return ReadResult{}, fmt.Errorf("%w: filter value is not encodable: %v", core.ErrValidation, err)
	}

	matches := []core.Record{}
	for _, record := range records {
		if matchField(record, filter.Field, value) {
			matches = append(matches, record)
		}
	}

	switch len(matches) {
	case 0:
		return ReadResult{Cardinality: None, Records: matches}, nil
	case 1:
		return ReadResult{Cardinality: One, Records: matches}, nil
	default:
		return ReadResult{Cardinality: Many, Records: matches}, nil
	}
}

// Update shallow-merges patch onto every record whose field equals value. A missing
// collection reports StatusNotFound; zero matches still reports StatusUpdated.
func (s *Store) Update(ctx context.Context, collection, field string, value any, patch core.Record) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"collection": collection, "field": field})

	records, exists, err := s.load(ctx, collection)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		log.Warn("Update on missing collection")
		return Outcome{Status: StatusNotFound}, nil
	}

	want, err := normalizeValue(value)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: filter value is not encodable: %v", core.ErrValidation, err)
	}
	fields, err := normalizeRecord(patch)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: patch is not encodable: %v", core.ErrValidation, err)
	}

	matched := 0
	for i, record := range records {
		if !matchField(record, field, want) {
			continue
		}
		merged := make(core.Record, len(record)+len(fields))
		for k, v := range record {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		records[i] = merged
		matched++
	}

	if err := s.save(ctx, collection, records); err != nil {
		return Outcome{}, err
	}

	log.WithField("matched", matched).Debug("Records updated")
	return Outcome{Status: StatusUpdated, Matched: matched}, nil
}

// Delete removes every record whose field equals value. A missing collection reports
// StatusNotFound; zero matches still reports StatusDeleted.
func (s *Store) Delete(ctx context.Context, collection, field string, value any) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"collection": collection, "field": field})

	records, exists, err := s.load(ctx, collection)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		log.Warn("Delete on missing collection")
		return Outcome{Status: StatusNotFound}, nil
	}

	want, err := normalizeValue(value)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: filter value is not encodable: %v", core.ErrValidation, err)
	}

	kept := make([]core.Record, 0, len(records))
	for _, record := range records {
		if !matchField(record, field, want) {
			kept = append(kept, record)
		}
	}

	if err := s.save(ctx, collection, kept); err != nil {
		return Outcome{}, err
	}

	matched := len(records) - len(kept)
	log.WithField("matched", matched).Debug("Records deleted")
	return Outcome{Status: StatusDeleted, Matched: matched}, nil
}

func (s *Store) load(ctx context.Context, collection string) ([]core.Record, bool, error) {
	data, ok, err := s.backend.Load(ctx, collection)
	if err != nil {
		logrus.WithError(err).WithField("collection", collection).Error("Failed to load collection")
		return nil, false, fmt.Errorf("%w: load %s: %v", core.ErrStorageUnavailable, collection, err)
	}
	if !ok {
		return []core.Record{}, false, nil
	}

	records := []core.Record{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			logrus.WithError(err).WithField("collection", collection).Error("Failed to decode collection")
			return nil, true, fmt.Errorf("%w: decode %s: %v", core.ErrStorageUnavailable, collection, err)
		}
	}
	return records, true, nil
}

func (s *Store) save(ctx context.Context, collection string, records []core.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrStorageUnavailable, collection, err)
	}
	if err := s.backend.Save(ctx, collection, data); err != nil {
		logrus.WithError(err).WithField("collection", collection).Error("Failed to save collection")
		return fmt.Errorf("%w: save %s: %v", core.ErrStorageUnavailable, collection, err)
	}
	return nil
}

func matchField(record core.Record, field string, want any) bool {
	have, ok := record[field]
	return ok && reflect.DeepEqual(have, want)
}

// normalizeRecord round-trips a record through JSON so that its values compare equal
// to values decoded from storage.
func normalizeRecord(record core.Record) (core.Record, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	out := core.Record{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
