package server

import (
	"math"
	"strings"
	"testing"

	"beatbrowser/internal/catalog"
	"beatbrowser/internal/scrub"
)

func TestValidateRowID(t *testing.T) {
	tests := []struct {
		name      string
		rowID     string
		wantError bool
	}{
		{name: "valid slug", rowID: "midnight-drive", wantError: false},
		{name: "positional id", rowID: "track-4", wantError: false},
		{name: "empty", rowID: "", wantError: true},
		{name: "too long", rowID: strings.Repeat("x", 129), wantError: true},
		{name: "null byte", rowID: "a\x00b", wantError: true},
		{name: "slash", rowID: "a/b", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRowID(tt.rowID)
			if tt.wantError && err == nil {
				t.Errorf("validateRowID() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateRowID() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateFraction(t *testing.T) {
	tests := []struct {
		name      string
		fraction  float64
		wantError bool
	}{
		{name: "start", fraction: 0, wantError: false},
		{name: "middle", fraction: 0.5, wantError: false},
		{name: "end", fraction: 1, wantError: false},
		{name: "negative", fraction: -0.1, wantError: true},
		{name: "past end", fraction: 1.5, wantError: true},
		{name: "nan", fraction: math.NaN(), wantError: true},
		{name: "infinite", fraction: math.Inf(1), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFraction(tt.fraction)
			if tt.wantError && err == nil {
				t.Errorf("validateFraction() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateFraction() unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePointerRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        PointerRequest
		wantErrors int
	}{
		{
			name:       "valid down",
			req:        PointerRequest{Type: PointerDown, PointerID: 1, ClientX: 50, Region: scrub.Region{Left: 0, Width: 200}},
			wantErrors: 0,
		},
		{
			name:       "move ignores region",
			req:        PointerRequest{Type: PointerMove, PointerID: 1, ClientX: 60},
			wantErrors: 0,
		},
		{
			name:       "cancel",
			req:        PointerRequest{Type: PointerCancel},
			wantErrors: 0,
		},
		{
			name:       "unknown type",
			req:        PointerRequest{Type: "hover"},
			wantErrors: 1,
		},
		{
			name:       "down with negative width",
			req:        PointerRequest{Type: PointerDown, ClientX: 10, Region: scrub.Region{Width: -5}},
			wantErrors: 1,
		},
		{
			name:       "unknown type and bad coordinate",
			req:        PointerRequest{Type: "", ClientX: math.NaN()},
			wantErrors: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validatePointerRequest(tt.req)
			if len(errs) != tt.wantErrors {
				t.Errorf("validatePointerRequest() = %d errors %v, want %d", len(errs), errs, tt.wantErrors)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name       string
		filter     catalog.Filter
		wantErrors int
	}{
		{name: "empty", filter: catalog.Filter{}, wantErrors: 0},
		{name: "full", filter: catalog.Filter{Query: "night", Genre: "Trap", Mood: "Dark", Key: "A minor", BPMMin: 120, BPMMax: 150, Sort: catalog.SortBPMDesc}, wantErrors: 0},
		{name: "open upper bound", filter: catalog.Filter{BPMMin: 90}, wantErrors: 0},
		{name: "inverted range", filter: catalog.Filter{BPMMin: 150, BPMMax: 120}, wantErrors: 1},
		{name: "negative bpm", filter: catalog.Filter{BPMMin: -1}, wantErrors: 1},
		{name: "unknown sort", filter: catalog.Filter{Sort: "random"}, wantErrors: 1},
		{name: "long query", filter: catalog.Filter{Query: strings.Repeat("q", 201)}, wantErrors: 1},
		{name: "long genre", filter: catalog.Filter{Genre: strings.Repeat("g", 101)}, wantErrors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			errs := validateFilter(&filter)
			if len(errs) != tt.wantErrors {
				t.Errorf("validateFilter() = %d errors %v, want %d", len(errs), errs, tt.wantErrors)
			}
		})
	}
}

func TestValidateFilterSanitizes(t *testing.T) {
	filter := catalog.Filter{Query: "  night\x00 ", Genre: " Trap "}
	if errs := validateFilter(&filter); len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if filter.Query != "night" || filter.Genre != "Trap" {
		t.Errorf("Expected sanitized filter, got %+v", filter)
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name      string
		cmd       Command
		wantError bool
	}{
		{name: "toggle", cmd: Command{Type: "toggle", RowID: "a"}},
		{name: "visible", cmd: Command{Type: "visible", RowID: "a"}},
		{name: "seek", cmd: Command{Type: "seek", RowID: "a", Fraction: 0.25}},
		{name: "pointer", cmd: Command{Type: "pointer", RowID: "a", Pointer: &PointerRequest{Type: PointerUp}}},
		{name: "seek out of range", cmd: Command{Type: "seek", RowID: "a", Fraction: 2}, wantError: true},
		{name: "pointer missing", cmd: Command{Type: "pointer", RowID: "a"}, wantError: true},
		{name: "missing row", cmd: Command{Type: "toggle"}, wantError: true},
		{name: "unknown type", cmd: Command{Type: "skip", RowID: "a"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateCommand(tt.cmd)
			if tt.wantError && len(errs) == 0 {
				t.Errorf("validateCommand() expected error but got none")
			}
			if !tt.wantError && len(errs) > 0 {
				t.Errorf("validateCommand() unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidateWidth(t *testing.T) {
	for _, width := range []int{1, 64, 4096} {
		if err := validateWidth(width); err != nil {
			t.Errorf("validateWidth(%d) unexpected error: %v", width, err)
		}
	}
	for _, width := range []int{0, -3, 4097} {
		if err := validateWidth(width); err == nil {
			t.Errorf("validateWidth(%d) expected error but got none", width)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal input",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "input with null bytes",
			input:    "hello\x00world",
			expected: "helloworld",
		},
		{
			name:     "input with whitespace",
			input:    "  hello world  ",
			expected: "hello world",
		},
		{
			name:     "input with null bytes and whitespace",
			input:    "  hello\x00world  ",
			expected: "helloworld",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeInput(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeInput() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int
		expected string
	}{
		{0, "0B"},
		{512, "< 1KB"},
		{2048, "2KB"},
		{5 << 20, "5MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.bytes, got, tt.expected)
		}
	}
}
