package bootstrap

import (
	"errors"
	"testing"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
)

func TestParseBlob(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		want    InitBlob
		wantErr bool
	}{
		{name: "valid", blob: "/tmp/mod.bin;nativelib", want: InitBlob{ModulePath: "/tmp/mod.bin", Target: "nativelib"}},
		{name: "spaces kept", blob: " a b ; lib ", want: InitBlob{ModulePath: " a b ", Target: " lib "}},
		{name: "unicode", blob: "/tmp/модуль.wasm;libπ.so", want: InitBlob{ModulePath: "/tmp/модуль.wasm", Target: "libπ.so"}},
		{name: "no separator", blob: "onlyonefield", wantErr: true},
		{name: "extra field", blob: "a;b;c", wantErr: true},
		{name: "empty path", blob: ";lib", wantErr: true},
		{name: "empty target", blob: "/tmp/mod.bin;", wantErr: true},
		{name: "empty", blob: "", wantErr: true},
		{name: "invalid utf8", blob: "/tmp/\xff;lib", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBlob([]byte(tc.blob))
			if tc.wantErr {
				if !errors.Is(err, relinkerrors.ErrMalformedInitBlob) {
					t.Fatalf("expected malformed init blob, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBlob: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
			if got.String() != tc.blob {
				t.Errorf("String() = %q, want %q", got.String(), tc.blob)
			}
		})
	}
}

func TestCopyNative(t *testing.T) {
	if _, err := copyNative(nil, 4); !errors.Is(err, relinkerrors.ErrMalformedInitBlob) {
		t.Errorf("nil pointer with size: got %v", err)
	}
	if _, err := copyNative(nil, -1); !errors.Is(err, relinkerrors.ErrMalformedInitBlob) {
		t.Errorf("negative size: got %v", err)
	}
	b, err := copyNative(nil, 0)
	if err != nil || len(b) != 0 {
		t.Errorf("empty buffer: got %v, %v", b, err)
	}
}
