package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/service"
	"github.com/collapsinghierarchy/rfidgate/store"
	"github.com/collapsinghierarchy/rfidgate/store/file"
)

// fakeStore implements the minimal store.Store interface for tests.
type fakeStore struct {
	records   []model.UidRecord
	lookupErr error
	insertErr error
	inserts   int
}

func (f *fakeStore) Lookup(ctx context.Context, uid string) (model.UidRecord, bool, error) {
	if f.lookupErr != nil {
		return model.UidRecord{}, false, f.lookupErr
	}
	for _, r := range f.records {
		if r.UID == model.NormalizeUID(uid) {
			return r, true, nil
		}
	}
	return model.UidRecord{}, false, nil
}

func (f *fakeStore) Insert(ctx context.Context, r model.UidRecord) error {
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeStore) Stream(ctx context.Context, fn func(*model.UidRecord) error) error {
	for i := range f.records {
		if err := fn(&f.records[i]); err != nil {
			return err
		}
	}
	return nil
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(fs *fakeStore) (*service.Service, *clock.Manual) {
	clk := clock.NewManual(t0)
	return service.New(fs, clk), clk
}

func TestRegister_Success(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newService(fs)

	rec, err := svc.Register(context.Background(), " aa:bb:cc:dd ", " Alice ", "a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := model.UidRecord{UID: "AA:BB:CC:DD", Name: "Alice", Role: model.RoleAdmin}
	if rec != want {
		t.Errorf("record: got %+v want %+v", rec, want)
	}
	if len(fs.records) != 1 || fs.records[0] != want {
		t.Errorf("stored: got %+v", fs.records)
	}
}

func TestRegister_MissingUID(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newService(fs)
	_, err := svc.Register(context.Background(), "   ", "Bob", "U")
	if !errors.Is(err, service.ErrMissingUID) {
		t.Fatalf("expected ErrMissingUID, got %v", err)
	}
	if fs.inserts != 0 {
		t.Error("Insert should not be called without a uid")
	}
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		uid, name, role string
		want            error
	}{
		{"AA:BB,CC", "x", "U", service.ErrInvalidUID},
		{"AA:BB", "x", "Z", service.ErrInvalidRole},
		{"AA:BB", "x\nAA:BB,root,A", "U", service.ErrInvalidName},
		{"AA:BB", strings.Repeat("x", service.MaxNameLen+1), "U", service.ErrInvalidName},
		{"AA:BB", strings.Repeat("x", 70000), "U", service.ErrInvalidName},
	}
	for _, c := range cases {
		fs := &fakeStore{}
		svc, _ := newService(fs)
		_, err := svc.Register(context.Background(), c.uid, c.name, c.role)
		if !errors.Is(err, c.want) {
			t.Errorf("Register(%q,%q,%q): want %v got %v", c.uid, c.name, c.role, c.want, err)
		}
		if fs.inserts != 0 {
			t.Errorf("Register(%q,%q,%q): Insert called", c.uid, c.name, c.role)
		}
	}
}

func TestRegister_LongNameKeepsStoreUsable(t *testing.T) {
	ctx := context.Background()
	st, err := file.Open(filepath.Join(t.TempDir(), "uids.txt"))
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(st, clock.NewManual(t0))

	if _, err := svc.Register(ctx, "AA:BB:CC:DD", "Alice", "A"); err != nil {
		t.Fatalf("register Alice: %v", err)
	}
	if _, err := svc.Register(ctx, "11:22:33:44", strings.Repeat("x", 70000), "U"); !errors.Is(err, service.ErrInvalidName) {
		t.Fatalf("long name: want ErrInvalidName, got %v", err)
	}
	if _, err := svc.Register(ctx, "55:66:77:88", strings.Repeat("c", service.MaxNameLen), "U"); err != nil {
		t.Fatalf("name at the limit: %v", err)
	}
	for _, uid := range []string{"AA:BB:CC:DD", "55:66:77:88"} {
		if _, ok, err := st.Lookup(ctx, uid); err != nil || !ok {
			t.Errorf("Lookup(%s): ok=%v err=%v", uid, ok, err)
		}
	}
	if _, ok, err := st.Lookup(ctx, "11:22:33:44"); err != nil || ok {
		t.Errorf("rejected uid: ok=%v err=%v", ok, err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	fs := &fakeStore{records: []model.UidRecord{{UID: "AA:BB:CC:DD", Name: "Bob", Role: model.RoleUser}}}
	svc, _ := newService(fs)
	_, err := svc.Register(context.Background(), "aa:bb:cc:dd", "Mallory", "A")
	if !errors.Is(err, service.ErrDuplicateUID) {
		t.Fatalf("expected ErrDuplicateUID, got %v", err)
	}
	if fs.inserts != 0 {
		t.Error("Insert should not be called for a duplicate")
	}
}

func TestRegister_LookupErrorDoesNotWrite(t *testing.T) {
	fs := &fakeStore{lookupErr: store.ErrReadFailed}
	svc, _ := newService(fs)
	_, err := svc.Register(context.Background(), "AA:BB", "x", "U")
	if !errors.Is(err, store.ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed, got %v", err)
	}
	if fs.inserts != 0 {
		t.Error("Insert should not be called after a failed duplicate check")
	}
}

func TestRegister_WriteFailed(t *testing.T) {
	fs := &fakeStore{insertErr: store.ErrWriteFailed}
	svc, _ := newService(fs)
	_, err := svc.Register(context.Background(), "AA:BB", "x", "U")
	if !errors.Is(err, store.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestLastScannedAndIdle(t *testing.T) {
	svc, clk := newService(&fakeStore{})
	if got := svc.LastScanned(); got != "" {
		t.Fatalf("LastScanned before any scan: %q", got)
	}

	clk.Advance(30 * time.Second)
	svc.ObserveScan("de:ad:be:ef")
	if got := svc.LastScanned(); got != "DE:AD:BE:EF" {
		t.Errorf("LastScanned: got %q", got)
	}
	if idle := svc.Idle(clk.Now()); idle != 0 {
		t.Errorf("Idle right after scan: %v", idle)
	}

	clk.Advance(time.Minute)
	if idle := svc.Idle(clk.Now()); idle != time.Minute {
		t.Errorf("Idle: got %v want 1m", idle)
	}
	svc.Touch()
	if idle := svc.Idle(clk.Now()); idle != 0 {
		t.Errorf("Idle after Touch: %v", idle)
	}

	svc.Reset()
	if got := svc.LastScanned(); got != "" {
		t.Errorf("LastScanned after Reset: %q", got)
	}
}
