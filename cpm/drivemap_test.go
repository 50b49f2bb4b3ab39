package cpm

import (
	"errors"
	"testing"
)

func TestDriveMapResolve(t *testing.T) {
	d := NewDriveMap()
	d.Set(0, "/mnt/a")
	d.Set(1, "/mnt/b")

	cases := []struct {
		name         string
		fcbDrive     uint8
		currentDrive uint8
		want         string
	}{
		{"zero means current", 0x00, 1, "/mnt/b"},
		{"0x3F means current", 0x3F, 0, "/mnt/a"},
		{"explicit drive A", 1, 1, "/mnt/a"},
		{"explicit drive B", 2, 0, "/mnt/b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Resolve(tc.fcbDrive, tc.currentDrive)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, wanted %q", got, tc.want)
			}
		})
	}
}

func TestDriveMapResolveMissingIsFatal(t *testing.T) {
	d := NewDriveMap()
	d.Set(0, "/mnt/a")

	_, err := d.Resolve(7, 0)
	if err == nil {
		t.Fatalf("expected an error for an unmapped drive")
	}

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected a *FatalError, got %T", err)
	}
}
