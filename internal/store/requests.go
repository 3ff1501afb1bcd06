package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/manutencao/internal/model"
)

const requestColumns = `ID, REQUESTER_ID, REQUESTER_NAME, SECTOR, MACHINE, DESCRIPTION, STATUS, PRIORITY,
	SERVICE_TYPE, CREATED_AT, UPDATED_AT, NOTES, CREATED_VIA_SCAN, ASSIGNED_TECHNICIAN`

// timeFormat sorts lexicographically in the same order as the instants it encodes.
const timeFormat = "2006-01-02 15:04:05.999999999-07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// blob binds large text as a BLOB. An empty string is bound as text so it is
// stored as '' rather than NULL.
func blob(s string) any {
	if s == "" {
		return ""
	}
	return []byte(s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateRequest files a new request. The store assigns the id and creation
// time; status defaults to pending, priority and service type to their defaults.
func CreateRequest(ctx context.Context, db *sql.DB, d model.Draft) (*model.Request, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	status := d.Status
	if status == "" {
		status = model.StatusPending
	}
	viaScan := 0
	if d.CreatedViaScan {
		viaScan = 1
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO requests (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '', ?, ?)`,
		id, d.RequesterID, d.RequesterName, d.Sector, d.Machine, blob(d.Description),
		string(status), string(d.Priority.OrDefault()), string(d.ServiceType.OrDefault()),
		formatTime(time.Now()), viaScan, nullString(d.AssignedTechnician),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return GetRequest(ctx, db, id)
}

// GetRequestRow returns a request exactly as stored, or nil if it doesn't exist.
func GetRequestRow(ctx context.Context, db *sql.DB, id string) (model.Row, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE ID = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// GetRequest returns a request by ID, or nil if it doesn't exist.
func GetRequest(ctx context.Context, db *sql.DB, id string) (*model.Request, error) {
	row, err := GetRequestRow(ctx, db, id)
	if err != nil || row == nil {
		return nil, err
	}
	r := model.Normalize(row)
	return &r, nil
}

// ListRequestRows returns stored rows newest first, optionally only those
// filed by requesterID.
func ListRequestRows(ctx context.Context, db *sql.DB, requesterID string) ([]model.Row, error) {
	var rows *sql.Rows
	var err error

	if requesterID != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+requestColumns+` FROM requests
			 WHERE REQUESTER_ID = ? ORDER BY CREATED_AT DESC, ID`, requesterID,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+requestColumns+` FROM requests ORDER BY CREATED_AT DESC, ID`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return result, nil
}

// ListRequests is ListRequestRows normalized.
func ListRequests(ctx context.Context, db *sql.DB, requesterID string) ([]model.Request, error) {
	rows, err := ListRequestRows(ctx, db, requesterID)
	if err != nil {
		return nil, err
	}
	return model.NormalizeAll(rows), nil
}

// UpdateRequest applies a partial update. UPDATED_AT is stamped on every call.
func UpdateRequest(ctx context.Context, db *sql.DB, id string, p model.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var status any
	if p.Status != nil {
		status = string(*p.Status)
	}
	var notes any
	if p.Notes != nil {
		notes = blob(*p.Notes)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE requests
		 SET STATUS = COALESCE(?, STATUS),
		     NOTES = CASE WHEN ? THEN ? ELSE NOTES END,
		     UPDATED_AT = ?
		 WHERE ID = ?`,
		status, p.Notes != nil, notes, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	return requireAffected(result, "updating request")
}

// DeleteRequest removes a request and its photo.
func DeleteRequest(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM requests WHERE ID = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return requireAffected(result, "deleting request")
}

// SetRequestPhoto stores or replaces the photo attached to a request.
func SetRequestPhoto(ctx context.Context, db *sql.DB, id string, data []byte, mime string) error {
	row, err := GetRequestRow(ctx, db, id)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("setting request photo: %w", model.ErrNotFound)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO request_photos (REQUEST_ID, DATA, MIME, UPLOADED_AT) VALUES (?, ?, ?, ?)
		 ON CONFLICT (REQUEST_ID) DO UPDATE SET DATA = excluded.DATA, MIME = excluded.MIME,
		     UPLOADED_AT = excluded.UPLOADED_AT`,
		id, data, mime, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("setting request photo: %w", err)
	}
	return nil
}

// GetRequestPhoto returns a request's photo and MIME type, or nil data if it has none.
func GetRequestPhoto(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT DATA, MIME FROM request_photos WHERE REQUEST_ID = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting request photo: %w", err)
	}
	return data, mime, nil
}

// scanRows reads every row into a column-name keyed map, leaving values as the
// driver returned them.
func scanRows(rows *sql.Rows) ([]model.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []model.Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(model.Row, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}
