package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a device by key.
	// Returns ErrDeviceNotFound if the device does not exist.
	Get(ctx context.Context, key Key) (*Device, error)

	// List retrieves all devices ordered by integration and ID.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same key already exists.
	Create(ctx context.Context, device *Device) error

	// Update replaces every field of an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by key.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, key Key) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT integration_id, id, name, kind, state, scene_id, sensor_value
	FROM devices`

// Get retrieves a device by key.
func (r *SQLiteRepository) Get(ctx context.Context, key Key) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE integration_id = ? AND id = ?`,
		key.IntegrationID, key.DeviceID)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device %s: %w", key, err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		ORDER BY integration_id, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	cols, err := encodeColumns(device)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (
			integration_id, id, name, kind, state, scene_id, sensor_value,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.IntegrationID,
		device.ID,
		device.Name,
		string(device.Kind),
		cols.state,
		nullableString(device.SceneID),
		cols.sensorValue,
		now,
		now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update replaces an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	cols, err := encodeColumns(device)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, kind = ?, state = ?, scene_id = ?, sensor_value = ?,
			updated_at = ?
		WHERE integration_id = ? AND id = ?`,
		device.Name,
		string(device.Kind),
		cols.state,
		nullableString(device.SceneID),
		cols.sensorValue,
		time.Now().UTC().Format(time.RFC3339),
		device.IntegrationID,
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	return requireAffected(result)
}

// Delete removes a device by key.
func (r *SQLiteRepository) Delete(ctx context.Context, key Key) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM devices WHERE integration_id = ? AND id = ?",
		key.IntegrationID, key.DeviceID)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	return requireAffected(result)
}

// encodedColumns holds the JSON-encoded columns of a device row.
type encodedColumns struct {
	state       sql.NullString
	sensorValue sql.NullString
}

func encodeColumns(device *Device) (encodedColumns, error) {
	var cols encodedColumns

	if device.State != nil {
		b, err := json.Marshal(device.State)
		if err != nil {
			return cols, fmt.Errorf("marshalling state: %w", err)
		}
		cols.state = sql.NullString{String: string(b), Valid: true}
	}

	if device.SensorValue != nil {
		b, err := json.Marshal(device.SensorValue)
		if err != nil {
			return cols, fmt.Errorf("marshalling sensor_value: %w", err)
		}
		cols.sensorValue = sql.NullString{String: string(b), Valid: true}
	}

	return cols, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var kind string
	var stateJSON, sceneID, sensorJSON sql.NullString

	if err := scanner.Scan(
		&d.IntegrationID,
		&d.ID,
		&d.Name,
		&kind,
		&stateJSON,
		&sceneID,
		&sensorJSON,
	); err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	if sceneID.Valid {
		d.SceneID = &sceneID.String
	}

	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &d.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
	}
	if sensorJSON.Valid && sensorJSON.String != "" {
		if err := json.Unmarshal([]byte(sensorJSON.String), &d.SensorValue); err != nil {
			return nil, fmt.Errorf("unmarshalling sensor_value: %w", err)
		}
	}

	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
