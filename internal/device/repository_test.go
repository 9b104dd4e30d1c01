package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			integration_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			state TEXT,
			scene_id TEXT,
			sensor_value TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (integration_id, id)
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	scene := "evening"
	tests := []struct {
		name   string
		device *Device
	}{
		{
			name: "managed with scene",
			device: &Device{
				ID: "1", Name: "Lamp", IntegrationID: "hue", Kind: KindManaged,
				State:   State{"power": true, "brightness": 0.25},
				SceneID: &scene,
			},
		},
		{
			name: "sensor",
			device: &Device{
				ID: "temp", Name: "Hall Temperature", IntegrationID: "zigbee", Kind: KindSensor,
				SensorValue: map[string]any{"celsius": 21.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.device); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			got, err := repo.Get(ctx, tt.device.Key())
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Name != tt.device.Name || got.Kind != tt.device.Kind {
				t.Errorf("Get() = %+v, want %+v", got, tt.device)
			}
			if (got.SceneID == nil) != (tt.device.SceneID == nil) {
				t.Errorf("SceneID = %v, want %v", got.SceneID, tt.device.SceneID)
			}
		})
	}

	t.Run("state round trips", func(t *testing.T) {
		got, err := repo.Get(ctx, NewKey("hue", "1"))
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.State["brightness"] != 0.25 {
			t.Errorf("brightness = %v, want 0.25", got.State["brightness"])
		}
		if *got.SceneID != "evening" {
			t.Errorf("SceneID = %q, want evening", *got.SceneID)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		err := repo.Create(ctx, tests[0].device)
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
		}
	})
}

func TestSQLiteRepository_Get_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), NewKey("hue", "nope"))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{
		{ID: "b", Name: "B", IntegrationID: "ikea", Kind: KindManaged, State: State{"power": false}},
		{ID: "a", Name: "A", IntegrationID: "hue", Kind: KindManaged, State: State{"power": true}},
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("List() returned %d devices, want 2", len(devices))
	}
	if devices[0].IntegrationID != "hue" {
		t.Errorf("List()[0].IntegrationID = %q, want hue (ordered)", devices[0].IntegrationID)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := &Device{ID: "1", Name: "Lamp", IntegrationID: "hue", Kind: KindManaged, State: State{"power": false}}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.State = State{"power": true}
	d.Name = "Desk Lamp"
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(ctx, d.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Desk Lamp" || !got.IsPoweredOn() {
		t.Errorf("Get() after update = %+v", got)
	}

	missing := &Device{ID: "2", Name: "Ghost", IntegrationID: "hue", Kind: KindManaged}
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := &Device{ID: "1", Name: "Lamp", IntegrationID: "hue", Kind: KindManaged}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, d.Key()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, d.Key()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrDeviceNotFound", err)
	}
}
