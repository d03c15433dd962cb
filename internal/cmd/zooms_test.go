package cmd

import (
	"reflect"
	"testing"
)

func TestParseZooms(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{"list", "0,1,2", []int{0, 1, 2}, false},
		{"list with spaces", "3, 5, 7", []int{3, 5, 7}, false},
		{"single", "4", []int{4}, false},
		{"range", "0-5", []int{0, 1, 2, 3, 4, 5}, false},
		{"tight range", "7-7", []int{7}, false},
		{"backwards range", "5-2", nil, true},
		{"empty", "", nil, true},
		{"garbage", "a,b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseZooms(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseZooms(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseZooms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseKVs(t *testing.T) {
	got, err := parseKVs([]string{"X-Api-Key=abc", "style=osm=bright"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"X-Api-Key": "abc", "style": "osm=bright"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseKVs = %v, want %v", got, want)
	}

	if m, err := parseKVs(nil); err != nil || m != nil {
		t.Errorf("parseKVs(nil) = %v, %v", m, err)
	}
	if _, err := parseKVs([]string{"no-separator"}); err == nil {
		t.Error("missing = should fail")
	}
	if _, err := parseKVs([]string{"=value"}); err == nil {
		t.Error("empty key should fail")
	}
}

func TestMinMax(t *testing.T) {
	lo, hi := minMax([]int{5, 1, 9, 3})
	if lo != 1 || hi != 9 {
		t.Errorf("minMax = %d, %d", lo, hi)
	}
}
