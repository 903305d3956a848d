package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/state"
)

// Repo is the durable sample store backed by history.db.
//
// Writes are serialized by writeMu so the sampler, on-demand tests, and
// operator actions can all write through the same Repo. Reads go straight to
// the database and see every committed write.
type Repo struct {
	db    *sql.DB
	clock clock.Clock

	writeMu sync.Mutex
}

// PruneResult reports how many rows a retention pass removed.
type PruneResult struct {
	Cutoff         time.Time `json:"cutoff"`
	ProbesDeleted  int64     `json:"probes_deleted"`
	LookupsDeleted int64     `json:"lookups_deleted"`
}

// NewRepo opens (or creates) history.db at path and applies migrations.
// A nil clk uses the wall clock.
func NewRepo(path string, clk clock.Clock) (*Repo, error) {
	db, err := state.OpenHistoryDB(path)
	if err != nil {
		return nil, storeErr("open", err)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Repo{db: db, clock: clk}, nil
}

// Close closes the database.
func (r *Repo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordProbe appends one probe sample. A zero timestamp is stamped with the
// repo clock.
func (r *Repo) RecordProbe(s Sample) error {
	if s.Endpoint.IsZero() {
		return storeErr("record probe", errors.New("empty endpoint key"))
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = r.clock.Now()
	}
	var latency sql.NullFloat64
	if s.LatencyMs != nil {
		latency = sql.NullFloat64{Float64: *s.LatencyMs, Valid: true}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO probe_samples (endpoint_key, ts_ns, latency_ms, doh_ok) VALUES (?, ?, ?, ?)`,
		string(s.Endpoint), s.Timestamp.UnixNano(), latency, boolToInt(s.DoHOK),
	)
	return storeErr("record probe", err)
}

// RecordLookup appends one lookup record. Missing ID and timestamp are filled in.
func (r *Repo) RecordLookup(rec LookupRecord) error {
	if rec.Domain == "" {
		return storeErr("record lookup", errors.New("empty domain"))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.clock.Now()
	}
	result := rec.Result
	if result == nil {
		result = []string{}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return storeErr("record lookup", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err = r.db.Exec(
		`INSERT INTO dns_lookups (id, domain, ts_ns, result_json, endpoint_key) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Domain, rec.Timestamp.UnixNano(), string(resultJSON), string(rec.Endpoint),
	)
	return storeErr("record lookup", err)
}

// RecentProbes returns up to limit samples for key, newest first.
func (r *Repo) RecentProbes(key endpoint.Key, limit int) ([]Sample, error) {
	if limit <= 0 {
		return []Sample{}, nil
	}
	rows, err := r.db.Query(
		`SELECT endpoint_key, ts_ns, latency_ms, doh_ok FROM probe_samples
		WHERE endpoint_key = ? ORDER BY ts_ns DESC, id DESC LIMIT ?`,
		string(key), limit,
	)
	if err != nil {
		return nil, storeErr("recent probes", err)
	}
	defer rows.Close()

	out := make([]Sample, 0, limit)
	for rows.Next() {
		var (
			ep      string
			tsNs    int64
			latency sql.NullFloat64
			ok      int
		)
		if err := rows.Scan(&ep, &tsNs, &latency, &ok); err != nil {
			return nil, storeErr("recent probes", err)
		}
		s := Sample{
			Endpoint:  endpoint.Key(ep),
			Timestamp: time.Unix(0, tsNs),
			DoHOK:     ok != 0,
		}
		if latency.Valid {
			s.LatencyMs = Float(latency.Float64)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("recent probes", err)
	}
	return out, nil
}

// RecentLookups returns up to limit lookup records, newest first.
func (r *Repo) RecentLookups(limit int) ([]LookupRecord, error) {
	if limit <= 0 {
		return []LookupRecord{}, nil
	}
	rows, err := r.db.Query(
		`SELECT id, domain, ts_ns, result_json, endpoint_key FROM dns_lookups
		ORDER BY ts_ns DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storeErr("recent lookups", err)
	}
	defer rows.Close()

	out := make([]LookupRecord, 0, limit)
	for rows.Next() {
		var (
			rec        LookupRecord
			tsNs       int64
			resultJSON string
			ep         string
		)
		if err := rows.Scan(&rec.ID, &rec.Domain, &tsNs, &resultJSON, &ep); err != nil {
			return nil, storeErr("recent lookups", err)
		}
		rec.Timestamp = time.Unix(0, tsNs)
		rec.Endpoint = endpoint.Key(ep)
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, storeErr("recent lookups", fmt.Errorf("decode result of %s: %w", rec.ID, err))
		}
		if rec.Result == nil {
			rec.Result = []string{}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("recent lookups", err)
	}
	return out, nil
}

// CountProbes returns the number of stored samples for key, or for all
// endpoints when key is empty.
func (r *Repo) CountProbes(key endpoint.Key) (int, error) {
	var (
		n   int
		err error
	)
	if key.IsZero() {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM probe_samples`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM probe_samples WHERE endpoint_key = ?`, string(key)).Scan(&n)
	}
	if err != nil {
		return 0, storeErr("count probes", err)
	}
	return n, nil
}

// Prune deletes every probe sample and lookup record older than olderThan.
// The cutoff is fixed when the call starts; records written after that
// instant are never touched.
func (r *Repo) Prune(olderThan time.Duration) (PruneResult, error) {
	cutoff := r.clock.Now().Add(-olderThan)
	res := PruneResult{Cutoff: cutoff}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return res, storeErr("prune", err)
	}
	defer tx.Rollback() //nolint:errcheck

	probes, err := tx.Exec(`DELETE FROM probe_samples WHERE ts_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return res, storeErr("prune", err)
	}
	lookups, err := tx.Exec(`DELETE FROM dns_lookups WHERE ts_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return res, storeErr("prune", err)
	}
	if err := tx.Commit(); err != nil {
		return res, storeErr("prune", err)
	}
	res.ProbesDeleted, _ = probes.RowsAffected()
	res.LookupsDeleted, _ = lookups.RowsAffected()
	return res, nil
}

// ClearProbes deletes the stored samples of key, or of every endpoint when
// key is empty. It returns the number of rows removed.
func (r *Repo) ClearProbes(key endpoint.Key) (int64, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var (
		res sql.Result
		err error
	)
	if key.IsZero() {
		res, err = r.db.Exec(`DELETE FROM probe_samples`)
	} else {
		res, err = r.db.Exec(`DELETE FROM probe_samples WHERE endpoint_key = ?`, string(key))
	}
	if err != nil {
		return 0, storeErr("clear probes", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearLookups deletes every lookup record.
func (r *Repo) ClearLookups() (int64, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	res, err := r.db.Exec(`DELETE FROM dns_lookups`)
	if err != nil {
		return 0, storeErr("clear lookups", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
