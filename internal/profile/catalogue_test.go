package profile

import "testing"

func TestCatalogueKnownMessages(t *testing.T) {
	c := New()
	for _, g := range []uint16{GlobalFileID, GlobalSession, GlobalLap, GlobalRecord, GlobalEvent, GlobalHR, GlobalFieldDescription, GlobalDeveloperDataID} {
		if !c.Known(g) {
			t.Fatalf("expected global %d to be known", g)
		}
	}
	if c.Known(9999) {
		t.Fatal("expected global 9999 to be unknown")
	}
}

func TestRecordAltitudeScale(t *testing.T) {
	c := New()
	fd, ok := c.Field(GlobalRecord, 2)
	if !ok {
		t.Fatal("expected record.altitude field")
	}
	if got := fd.Apply(2500); got != 0 {
		t.Fatalf("altitude(2500) = %v, want 0", got)
	}
}

func TestDeveloperFieldRegistryRoundTrip(t *testing.T) {
	r := NewDeveloperFieldRegistry()
	r.Install(0, 7, DeveloperFieldDescriptor{
		Name:             "dev_power",
		HasNativeMesgNum: true,
		NativeMesgNum:    GlobalRecord,
		HasNativeField:   true,
		NativeFieldNum:   7,
	})

	d, ok := r.Lookup(0, 7)
	if !ok || d.Name != "dev_power" {
		t.Fatalf("lookup failed: %+v, %v", d, ok)
	}

	overrides := r.RecordOverrides()
	if len(overrides) != 1 || overrides[0].Descriptor.Name != "dev_power" {
		t.Fatalf("unexpected overrides: %+v", overrides)
	}
}
