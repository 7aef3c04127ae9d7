package database_test

import (
	"errors"
	"testing"
	"time"

	"applister/internal/applister"
	"applister/internal/database"
	"applister/internal/testutil"
)

func names(apps []applister.InventoryEntry) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = string(a.Source) + "/" + a.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSQLiteStore_WasScannedWithinHours(t *testing.T) {
	clock := testutil.FixedClock()
	store := testutil.NewTestStore(t, clock)

	fresh, err := store.WasScannedWithinHours(20)
	if err != nil {
		t.Fatalf("WasScannedWithinHours() error = %v", err)
	}
	if fresh {
		t.Error("WasScannedWithinHours(20) = true on a new store, want false")
	}

	if err := store.ReplaceInventory([]applister.InventoryEntry{testutil.Entry("firefox", applister.SourceSnap, "120.0")}); err != nil {
		t.Fatalf("ReplaceInventory() error = %v", err)
	}

	fresh, err = store.WasScannedWithinHours(20)
	if err != nil {
		t.Fatalf("WasScannedWithinHours() error = %v", err)
	}
	if !fresh {
		t.Error("WasScannedWithinHours(20) = false right after a scan, want true")
	}

	clock.Advance(19 * time.Hour)
	if fresh, _ := store.WasScannedWithinHours(20); !fresh {
		t.Error("WasScannedWithinHours(20) = false after 19h, want true")
	}

	clock.Advance(90 * time.Minute)
	if fresh, _ := store.WasScannedWithinHours(20); fresh {
		t.Error("WasScannedWithinHours(20) = true after 20.5h, want false")
	}
}

func TestSQLiteStore_ReplaceInventory(t *testing.T) {
	t.Run("evicts entries missing from the new scan", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		a := testutil.Entry("firefox", applister.SourceSnap, "120.0")
		b := testutil.Entry("vlc", applister.SourceApt, "3.0.18")

		if err := store.ReplaceInventory([]applister.InventoryEntry{a, b}); err != nil {
			t.Fatalf("ReplaceInventory([a b]) error = %v", err)
		}
		if err := store.ReplaceInventory([]applister.InventoryEntry{a}); err != nil {
			t.Fatalf("ReplaceInventory([a]) error = %v", err)
		}

		apps, err := store.AllApps()
		if err != nil {
			t.Fatalf("AllApps() error = %v", err)
		}
		if got := names(apps); !equalStrings(got, []string{"snap/firefox"}) {
			t.Errorf("AllApps() = %v, want [snap/firefox]", got)
		}
	})

	t.Run("is idempotent and advances last_scan_at", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := testutil.NewTestStore(t, clock)
		entries := []applister.InventoryEntry{
			testutil.Entry("firefox", applister.SourceSnap, "120.0"),
			testutil.Entry("gimp", applister.SourceFlatpak, "2.10"),
		}

		if err := store.ReplaceInventory(entries); err != nil {
			t.Fatalf("first ReplaceInventory() error = %v", err)
		}
		first, _ := store.AllApps()
		meta1, _ := store.ScanMetadata()

		clock.Advance(time.Minute)
		if err := store.ReplaceInventory(entries); err != nil {
			t.Fatalf("second ReplaceInventory() error = %v", err)
		}
		second, _ := store.AllApps()
		meta2, _ := store.ScanMetadata()

		if !equalStrings(names(first), names(second)) {
			t.Errorf("AllApps() changed between identical scans: %v vs %v", names(first), names(second))
		}
		if !meta2.LastScanAt.After(meta1.LastScanAt) {
			t.Errorf("last_scan_at did not advance: %v -> %v", meta1.LastScanAt, meta2.LastScanAt)
		}
	})

	t.Run("evicts within the same second", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		a := testutil.Entry("firefox", applister.SourceSnap, "")
		b := testutil.Entry("vlc", applister.SourceApt, "")

		if err := store.ReplaceInventory([]applister.InventoryEntry{a, b}); err != nil {
			t.Fatal(err)
		}
		if err := store.ReplaceInventory([]applister.InventoryEntry{b}); err != nil {
			t.Fatal(err)
		}

		apps, _ := store.AllApps()
		if got := names(apps); !equalStrings(got, []string{"apt/vlc"}) {
			t.Errorf("AllApps() = %v, want [apt/vlc]", got)
		}
	})

	t.Run("updates fields on conflict", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		old := applister.InventoryEntry{Name: "GIMP", Source: applister.SourceFlatpak, Identifier: "org.gimp.GIMP", Version: "2.10", Origin: "flathub"}
		updated := old
		updated.Version = "3.0"
		updated.Origin = ""

		if err := store.ReplaceInventory([]applister.InventoryEntry{old}); err != nil {
			t.Fatal(err)
		}
		if err := store.ReplaceInventory([]applister.InventoryEntry{updated}); err != nil {
			t.Fatal(err)
		}

		apps, _ := store.AllApps()
		if len(apps) != 1 {
			t.Fatalf("len(AllApps()) = %d, want 1", len(apps))
		}
		if apps[0] != updated {
			t.Errorf("AllApps()[0] = %+v, want %+v", apps[0], updated)
		}
	})

	t.Run("same name from two sources is kept twice", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		entries := []applister.InventoryEntry{
			testutil.Entry("firefox", applister.SourceSnap, ""),
			testutil.Entry("firefox", applister.SourceApt, ""),
			testutil.Entry("firefox", applister.SourceSnap, ""),
		}
		if err := store.ReplaceInventory(entries); err != nil {
			t.Fatal(err)
		}
		apps, _ := store.AllApps()
		if got := names(apps); !equalStrings(got, []string{"apt/firefox", "snap/firefox"}) {
			t.Errorf("AllApps() = %v", got)
		}
	})

	t.Run("stores every entry including blank names", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		entries := []applister.InventoryEntry{
			{Name: "", Source: applister.SourceFlatpak, Identifier: "org.example.Tool"},
			{Name: "A", Source: applister.SourceApt},
		}
		if err := store.ReplaceInventory(entries); err != nil {
			t.Fatal(err)
		}
		apps, _ := store.AllApps()
		if got := names(apps); !equalStrings(got, []string{"apt/A", "flatpak/"}) {
			t.Fatalf("AllApps() = %v, want [apt/A flatpak/]", got)
		}
		if apps[1].Identifier != "org.example.Tool" {
			t.Errorf("blank-named entry Identifier = %q", apps[1].Identifier)
		}
	})

	t.Run("empty scan clears the inventory", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		if err := store.ReplaceInventory([]applister.InventoryEntry{testutil.Entry("vlc", applister.SourceApt, "")}); err != nil {
			t.Fatal(err)
		}
		if err := store.ReplaceInventory(nil); err != nil {
			t.Fatal(err)
		}
		apps, _ := store.AllApps()
		if len(apps) != 0 {
			t.Errorf("AllApps() = %v, want empty", names(apps))
		}
		if fresh, _ := store.WasScannedWithinHours(1); !fresh {
			t.Error("empty scan should still record last_scan_at")
		}
	})

	t.Run("closed store wraps ErrStoreTransaction", func(t *testing.T) {
		store := testutil.NewTestStore(t, testutil.FixedClock())
		if err := store.ReplaceInventory([]applister.InventoryEntry{testutil.Entry("vlc", applister.SourceApt, "")}); err != nil {
			t.Fatal(err)
		}
		store.Close()

		err := store.ReplaceInventory([]applister.InventoryEntry{testutil.Entry("gimp", applister.SourceApt, "")})
		if !errors.Is(err, applister.ErrStoreTransaction) {
			t.Errorf("ReplaceInventory() on closed store error = %v, want ErrStoreTransaction", err)
		}
	})
}

func TestSQLiteStore_AllApps_Order(t *testing.T) {
	store := testutil.NewTestStore(t, testutil.FixedClock())
	entries := []applister.InventoryEntry{
		testutil.Entry("zoom", applister.SourceSnap, ""),
		testutil.Entry("vlc", applister.SourceApt, ""),
		testutil.Entry("code", applister.SourceSnap, ""),
		testutil.Entry("gimp", applister.SourceApt, ""),
	}
	if err := store.ReplaceInventory(entries); err != nil {
		t.Fatal(err)
	}

	apps, err := store.AllApps()
	if err != nil {
		t.Fatalf("AllApps() error = %v", err)
	}
	want := []string{"apt/gimp", "apt/vlc", "snap/code", "snap/zoom"}
	if got := names(apps); !equalStrings(got, want) {
		t.Errorf("AllApps() = %v, want %v", got, want)
	}
}

func TestSQLiteStore_ThreatCheckTimestamp(t *testing.T) {
	clock := testutil.FixedClock()
	store := testutil.NewTestStore(t, clock)

	checked, err := store.WasThreatCheckedWithinHours(5)
	if err != nil {
		t.Fatalf("WasThreatCheckedWithinHours() error = %v", err)
	}
	if checked {
		t.Error("WasThreatCheckedWithinHours(5) = true on a new store")
	}

	// A check before any scan creates the metadata row with both timestamps set.
	if err := store.UpdateThreatCheckTimestamp(); err != nil {
		t.Fatalf("UpdateThreatCheckTimestamp() error = %v", err)
	}
	if checked, _ := store.WasThreatCheckedWithinHours(5); !checked {
		t.Error("WasThreatCheckedWithinHours(5) = false right after a check")
	}
	first, err := store.ScanMetadata()
	if err != nil {
		t.Fatalf("ScanMetadata() error = %v", err)
	}
	if first == nil || !first.LastScanAt.Equal(clock.Now()) {
		t.Fatalf("LastScanAt after first check = %+v, want %v", first, clock.Now())
	}

	// A later check leaves the scan time alone.
	clock.Advance(time.Hour)
	if err := store.UpdateThreatCheckTimestamp(); err != nil {
		t.Fatal(err)
	}
	second, _ := store.ScanMetadata()
	if !second.LastScanAt.Equal(first.LastScanAt) {
		t.Errorf("LastScanAt moved on update: %v, want %v", second.LastScanAt, first.LastScanAt)
	}
	if !second.LastThreatCheckAt.Equal(clock.Now()) {
		t.Errorf("LastThreatCheckAt = %v, want %v", second.LastThreatCheckAt, clock.Now())
	}

	// A scan keeps the threat check time.
	if err := store.ReplaceInventory(nil); err != nil {
		t.Fatal(err)
	}
	meta, err := store.ScanMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if !meta.LastThreatCheckAt.Equal(clock.Now().Truncate(time.Second)) {
		t.Errorf("LastThreatCheckAt = %v, want %v", meta.LastThreatCheckAt, clock.Now())
	}

	clock.Advance(6 * time.Hour)
	if checked, _ := store.WasThreatCheckedWithinHours(5); checked {
		t.Error("WasThreatCheckedWithinHours(5) = true after 6h")
	}
}

func TestSQLiteStore_ScanMetadata_Empty(t *testing.T) {
	store := testutil.NewTestStore(t, testutil.FixedClock())

	meta, err := store.ScanMetadata()
	if err != nil {
		t.Fatalf("ScanMetadata() error = %v", err)
	}
	if meta != nil {
		t.Errorf("ScanMetadata() = %+v, want nil", meta)
	}
}

func TestSQLiteStore_ScanRuns(t *testing.T) {
	clock := testutil.FixedClock()
	store := testutil.NewTestStore(t, clock)

	first, err := store.CreateScanRun("run-1", applister.OperationScan)
	if err != nil {
		t.Fatalf("CreateScanRun() error = %v", err)
	}
	if first.Status != applister.RunStatusRunning {
		t.Errorf("Status = %q, want running", first.Status)
	}

	clock.Advance(time.Second)
	first.Status = applister.RunStatusPartial
	first.EntryCount = 12
	first.FailedSources = []applister.Source{applister.SourceApt, applister.SourceSnap}
	if err := store.FinishScanRun(first); err != nil {
		t.Fatalf("FinishScanRun() error = %v", err)
	}

	clock.Advance(time.Minute)
	second, err := store.CreateScanRun("run-2", applister.OperationThreatCheck)
	if err != nil {
		t.Fatalf("CreateScanRun() error = %v", err)
	}

	runs, err := store.ListScanRuns(10)
	if err != nil {
		t.Fatalf("ListScanRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(ListScanRuns()) = %d, want 2", len(runs))
	}
	if runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Errorf("ListScanRuns() order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("unfinished run has FinishedAt = %v", runs[0].FinishedAt)
	}

	got := runs[1]
	if got.Status != applister.RunStatusPartial || got.EntryCount != 12 {
		t.Errorf("finished run = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(clock.Now().Add(-time.Minute)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
	if len(got.FailedSources) != 2 || got.FailedSources[0] != applister.SourceApt {
		t.Errorf("FailedSources = %v", got.FailedSources)
	}

	limited, err := store.ListScanRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("len(ListScanRuns(1)) = %d, want 1", len(limited))
	}

	if err := store.FinishScanRun(&applister.ScanRun{ID: "missing", Status: applister.RunStatusError}); err == nil {
		t.Error("FinishScanRun() for unknown id should return error")
	}
}

func TestSQLiteStore_CheckMigrations(t *testing.T) {
	store, err := database.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() on a fresh database should fail")
	}
	if err := store.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if err := store.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() after MigrateUp error = %v", err)
	}
}
