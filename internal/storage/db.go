package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"strainscan/internal"
)

var ErrScanNotFound = errors.New("scan not found")

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS strains (
  slug TEXT PRIMARY KEY,
  catalogId TEXT,
  name TEXT NOT NULL,
  type TEXT,
  description TEXT,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_strains_name ON strains(name);

CREATE TABLE IF NOT EXISTS scans (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  externalId TEXT NOT NULL,
  scanCreatedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(source, externalId)
);
CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);

CREATE TABLE IF NOT EXISTS normalized_scans (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  scanId INTEGER NOT NULL UNIQUE,
  strainName TEXT NOT NULL,
  strainSource TEXT NOT NULL,
  matchConfidence REAL NOT NULL,
  isPackagedProduct INTEGER NOT NULL,
  scanKind TEXT NOT NULL,
  resolutionStatus TEXT NOT NULL,
  matchedStrainSlug TEXT,
  topMatchName TEXT,
  topMatchSlug TEXT,
  topMatchConfidence REAL,
  candidate2Name TEXT,
  candidate2Confidence REAL,
  minedLabelName TEXT,
  normalizedJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(scanId) REFERENCES scans(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  scanId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(scanId) REFERENCES scans(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertStrains(strains []internal.StrainRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO strains (slug, catalogId, name, type, description, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(slug) DO UPDATE SET
  catalogId=excluded.catalogId,
  name=excluded.name,
  type=excluded.type,
  description=excluded.description,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range strains {
		if _, err := stmt.Exec(s.Slug, s.CatalogID, s.Name, s.Type, s.Description, s.UpdatedAt, s.RawJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListStrains() ([]internal.StrainRecord, error) {
	rows, err := d.conn.Query(`
SELECT slug, catalogId, name, type, description, updatedAt, raw_json
FROM strains ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StrainRecord
	for rows.Next() {
		var s internal.StrainRecord
		if err := rows.Scan(&s.Slug, &s.CatalogID, &s.Name, &s.Type, &s.Description, &s.UpdatedAt, &s.RawJSON); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// UpsertScan records a fetched scan. Re-fetching a known scan keeps its
// processing status unless the raw content changed, which queues it again.
func (d *DB) UpsertScan(source, externalID, createdAt, hash, rawRef string, status internal.ScanStatus) (internal.ScanRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO scans (source, externalId, scanCreatedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(source, externalId) DO UPDATE SET
  status=CASE WHEN scans.hash = excluded.hash THEN scans.status ELSE excluded.status END,
  scanCreatedAt=excluded.scanCreatedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, source, externalID, createdAt, hash, string(status), rawRef)
	if err != nil {
		return internal.ScanRow{}, err
	}

	return d.MustScanBySourceExternalID(source, externalID)
}

const scanColumns = `id, source, externalId, COALESCE(scanCreatedAt, ''), hash, status, rawRef`

func scanRow(scanner interface{ Scan(...any) error }) (internal.ScanRow, error) {
	var row internal.ScanRow
	var status string
	err := scanner.Scan(&row.ID, &row.Source, &row.ExternalID, &row.CreatedAt, &row.Hash, &status, &row.RawRef)
	row.Status = internal.ScanStatus(status)
	return row, err
}

func (d *DB) GetScanBySourceExternalID(source, externalID string) (*internal.ScanRow, error) {
	row, err := scanRow(d.conn.QueryRow(`SELECT `+scanColumns+` FROM scans WHERE source = ? AND externalId = ?`, source, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetScanByID(id int) (*internal.ScanRow, error) {
	row, err := scanRow(d.conn.QueryRow(`SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListScansByStatus(status internal.ScanStatus, limit int) ([]internal.ScanRow, error) {
	rows, err := d.conn.Query(`
SELECT `+scanColumns+`
FROM scans WHERE status = ? ORDER BY scanCreatedAt ASC, id ASC LIMIT ?
`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ScanRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListStaleExternalIDs returns external ids of a source's scans in status,
// least recently touched first, so repeated rechecks rotate through them.
func (d *DB) ListStaleExternalIDs(source string, status internal.ScanStatus, limit int) ([]string, error) {
	rows, err := d.conn.Query(`
SELECT externalId FROM scans
WHERE source = ? AND status = ?
ORDER BY updatedAt ASC, id ASC LIMIT ?
`, source, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *DB) UpdateScanStatus(scanID int, status internal.ScanStatus) error {
	res, err := d.conn.Exec(`UPDATE scans SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), scanID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrScanNotFound, scanID)
	}
	return nil
}

// SaveNormalized stores the read-model of a scan along with the flattened
// columns used for export. A scan has at most one normalized row.
func (d *DB) SaveNormalized(scanID int, rm *internal.NormalizedScanResult, scanKind string) error {
	if rm == nil {
		return errors.New("nil normalized scan")
	}
	blob, err := json.Marshal(rm)
	if err != nil {
		return err
	}

	var topName, topSlug, c2Name *string
	var topConf, c2Conf *float64
	if rm.TopMatch != nil {
		topName = &rm.TopMatch.Name
		topSlug = rm.TopMatch.Slug
		topConf = &rm.TopMatch.Confidence
	}
	if len(rm.OtherMatches) > 0 {
		c2Name = &rm.OtherMatches[0].Name
		c2Conf = &rm.OtherMatches[0].Confidence
	}

	_, err = d.conn.Exec(`
INSERT INTO normalized_scans (
  scanId, strainName, strainSource, matchConfidence, isPackagedProduct, scanKind, resolutionStatus,
  matchedStrainSlug, topMatchName, topMatchSlug, topMatchConfidence, candidate2Name, candidate2Confidence,
  minedLabelName, normalizedJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(scanId) DO UPDATE SET
  strainName=excluded.strainName,
  strainSource=excluded.strainSource,
  matchConfidence=excluded.matchConfidence,
  isPackagedProduct=excluded.isPackagedProduct,
  scanKind=excluded.scanKind,
  resolutionStatus=excluded.resolutionStatus,
  matchedStrainSlug=excluded.matchedStrainSlug,
  topMatchName=excluded.topMatchName,
  topMatchSlug=excluded.topMatchSlug,
  topMatchConfidence=excluded.topMatchConfidence,
  candidate2Name=excluded.candidate2Name,
  candidate2Confidence=excluded.candidate2Confidence,
  minedLabelName=excluded.minedLabelName,
  normalizedJson=excluded.normalizedJson,
  createdAt=CURRENT_TIMESTAMP
`, scanID, rm.StrainName, string(rm.StrainSource), rm.MatchConfidence, rm.IsPackagedProduct, scanKind, string(rm.ResolutionStatus),
		rm.MatchedStrainSlug, topName, topSlug, topConf, c2Name, c2Conf,
		rm.MinedLabelName, string(blob))
	return err
}

func (d *DB) GetNormalized(scanID int) (*internal.NormalizedScanResult, error) {
	var blob string
	err := d.conn.QueryRow(`SELECT normalizedJson FROM normalized_scans WHERE scanId = ?`, scanID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rm internal.NormalizedScanResult
	if err := json.Unmarshal([]byte(blob), &rm); err != nil {
		return nil, fmt.Errorf("decode normalized scan %d: %w", scanID, err)
	}
	return &rm, nil
}

func (d *DB) InsertRun(traceID string, scanID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	var scanRef any
	if scanID > 0 {
		scanRef = scanID
	}
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, scanId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, scanRef, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows lists normalized scans in scan order. An empty status
// selects every scan that has a normalized row.
func (d *DB) GetExportRows(status internal.ScanStatus) ([]internal.ScanExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  s.id,
  s.source,
  s.externalId,
  COALESCE(s.scanCreatedAt, ''),
  s.status,
  n.strainName,
  n.strainSource,
  n.matchConfidence,
  n.isPackagedProduct,
  n.scanKind,
  n.resolutionStatus,
  n.matchedStrainSlug,
  n.topMatchName,
  n.topMatchSlug,
  n.topMatchConfidence,
  n.candidate2Name,
  n.candidate2Confidence,
  n.minedLabelName
FROM scans s
JOIN normalized_scans n ON n.scanId = s.id
WHERE (? = '' OR s.status = ?)
ORDER BY
  CASE n.resolutionStatus WHEN 'known' THEN 1 ELSE 2 END,
  s.scanCreatedAt ASC,
  s.id ASC
`, string(status), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ScanExportRow
	for rows.Next() {
		var row internal.ScanExportRow
		if err := rows.Scan(
			&row.ScanID,
			&row.Source,
			&row.ExternalID,
			&row.CreatedAt,
			&row.Status,
			&row.StrainName,
			&row.StrainSource,
			&row.MatchConfidence,
			&row.IsPackagedProduct,
			&row.ScanKind,
			&row.ResolutionStatus,
			&row.MatchedStrainSlug,
			&row.TopMatchName,
			&row.TopMatchSlug,
			&row.TopMatchConfidence,
			&row.Candidate2Name,
			&row.Candidate2Confidence,
			&row.MinedLabelName,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (d *DB) MustScanBySourceExternalID(source, externalID string) (internal.ScanRow, error) {
	row, err := d.GetScanBySourceExternalID(source, externalID)
	if err != nil {
		return internal.ScanRow{}, err
	}
	if row == nil {
		return internal.ScanRow{}, fmt.Errorf("%w: source=%s externalId=%s", ErrScanNotFound, source, externalID)
	}
	return *row, nil
}
