package util

import "testing"

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expected    string
		expectError bool
	}{
		{
			name:     "valid bearer",
			header:   "Bearer abc.def.ghi",
			expected: "abc.def.ghi",
		},
		{
			name:     "surrounding whitespace trimmed",
			header:   "Bearer   abc.def.ghi ",
			expected: "abc.def.ghi",
		},
		{
			name:        "empty header",
			header:      "",
			expectError: true,
		},
		{
			name:        "not a bearer scheme",
			header:      "Basic dXNlcjpwYXNz",
			expectError: true,
		},
		{
			name:        "bearer with no token",
			header:      "Bearer ",
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tc.header)
			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
