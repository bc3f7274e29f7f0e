package errors

import (
	"fmt"
	"testing"
)

func TestGobnError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *GobnError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryUnpack, SeverityFatal, "archive missing"),
			expected: "unpack (fatal): archive missing: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestGobnError_WithContext(t *testing.T) {
	err := New(CategoryBuild, SeverityError, "make failed").
		WithContext("package", "scip").
		WithContext("dir", "/opt/scipoptsuite-3.1.1")

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}

	if err.Context["package"] != "scip" {
		t.Errorf("Context[package] = %v, want scip", err.Context["package"])
	}

	if err.Context["dir"] != "/opt/scipoptsuite-3.1.1" {
		t.Errorf("Context[dir] = %v, want /opt/scipoptsuite-3.1.1", err.Context["dir"])
	}
}

func TestGobnError_WithOutput(t *testing.T) {
	err := New(CategoryBuild, SeverityError, "make failed").WithOutput("gcc: fatal error")
	if got := CapturedOutput(err); got != "gcc: fatal error" {
		t.Errorf("CapturedOutput = %q, want %q", got, "gcc: fatal error")
	}
	if got := CapturedOutput(fmt.Errorf("plain")); got != "" {
		t.Errorf("CapturedOutput(plain) = %q, want empty", got)
	}
}

func TestIsCategory(t *testing.T) {
	unpackErr := New(CategoryUnpack, SeverityFatal, "unpack error")
	standardErr := fmt.Errorf("standard error")

	if !IsCategory(unpackErr, CategoryUnpack) {
		t.Error("IsCategory should match unpack error")
	}
	if IsCategory(unpackErr, CategoryBuild) {
		t.Error("IsCategory should not match different category")
	}
	if IsCategory(standardErr, CategoryInternal) {
		t.Error("IsCategory should not match non-GobnError")
	}
	if GetCategory(standardErr) != CategoryInternal {
		t.Error("GetCategory of plain error should be internal")
	}
}
