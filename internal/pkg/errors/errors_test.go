package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(CodeValidation, "row missing doc_id")
	want := "VALIDATION_ERROR: row missing doc_id"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(CodeClassification, "classify call failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause with errors.Is")
	}

	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, should contain cause", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"matching code", ConfigurationError("bad depth"), CodeConfiguration, true},
		{"different code", ValidationError("bad row"), CodeConfiguration, false},
		{"wrapped app error", stderrors.Join(stderrors.New("outer"), DataError("no cell")), CodeData, true},
		{"plain error", stderrors.New("plain"), CodeValidation, false},
		{"nil error", nil, CodeValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFatal(t *testing.T) {
	if !ConfigurationError("bad").Fatal() {
		t.Error("configuration errors should be fatal")
	}

	for _, err := range []*AppError{
		ValidationError("row"),
		ClassificationError("task", nil),
		DataError("cell"),
	} {
		if err.Fatal() {
			t.Errorf("%s should not be fatal", err.Code)
		}
	}
}

func TestWithDetail(t *testing.T) {
	err := DataError("no ranked results").
		WithDetail("method", "semantic").
		WithDetail("query", "heart disease")

	if err.Details["method"] != "semantic" {
		t.Errorf("Details[method] = %q, want semantic", err.Details["method"])
	}
	if err.Details["query"] != "heart disease" {
		t.Errorf("Details[query] = %q, want heart disease", err.Details["query"])
	}
}
