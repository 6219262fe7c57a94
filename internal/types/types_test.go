package types

import (
	"testing"
)

func TestFileValidate(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "simple relative path", path: "src/App.tsx"},
		{name: "root file", path: "package.json"},
		{name: "empty path", path: "   ", wantErr: true},
		{name: "absolute path", path: "/etc/passwd", wantErr: true},
		{name: "escapes root", path: "src/../../secret", wantErr: true},
		{name: "windows separators escaping", path: "src\\..\\..\\x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := File{Path: tt.path}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestErrorKindIsValid(t *testing.T) {
	for _, k := range []ErrorKind{ErrorKindType, ErrorKindBuild, ErrorKindRuntime} {
		if !k.IsValid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if ErrorKind("lint-error").IsValid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestBuildErrorString(t *testing.T) {
	tests := []struct {
		err  BuildError
		want string
	}{
		{
			err:  BuildError{Kind: ErrorKindBuild, Message: "Unexpected token"},
			want: "[build-error] Unexpected token",
		},
		{
			err:  BuildError{Kind: ErrorKindType, Message: "Cannot find name 'Foo'.", File: "src/App.tsx", Line: 10, Column: 5},
			want: "[type-error] src/App.tsx(10,5): Cannot find name 'Foo'.",
		},
		{
			err:  BuildError{Kind: ErrorKindRuntime, Message: "boom", File: "src/main.tsx"},
			want: "[runtime-error] src/main.tsx: boom",
		},
	}

	for _, tt := range tests {
		if got := tt.err.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
