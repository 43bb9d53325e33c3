package api

import "testing"

func TestShortenType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Demo.Point", "Point"},
		{"System.Int32", "Int32"},
		{"Demo.Point*", "Point*"},
		{"System.String[]", "String[]"},
		{"Object", "Object"},
		{"System.Collections.Generic.List`1[System.Int32]", "List`1[Int32]"},
		{"System.Collections.Generic.Dictionary`2[System.String, Demo.Box`1[Demo.Point]]", "Dictionary`2[String, Box`1[Point]]"},
		{"Demo.Box`1[Demo.Point", "Demo.Box`1[Demo.Point"},
		{"Demo.Broken]]", "Demo.Broken]]"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ShortenType(tt.input)
			if result != tt.expected {
				t.Errorf("ShortenType() got = %v, want %v", result, tt.expected)
			}
		})
	}
}
