package bootstrap

import (
	"fmt"
	"strings"
	"unicode/utf8"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
)

// BlobSeparator splits the init blob into its two fields.
const BlobSeparator = ";"

// InitBlob is the decoded "<module path>;<target library>" payload a native
// host passes to Initialize.
type InitBlob struct {
	ModulePath string
	Target     string
}

// ParseBlob decodes blob. It must be valid UTF-8 and contain exactly one
// separator with a non-empty field on each side; anything else, including
// extra fields, is a MalformedInitBlob error.
func ParseBlob(blob []byte) (InitBlob, error) {
	if !utf8.Valid(blob) {
		return InitBlob{}, relinkerrors.MalformedInitBlob("init blob is not valid UTF-8", 0)
	}
	fields := strings.Split(string(blob), BlobSeparator)
	if len(fields) != 2 {
		return InitBlob{}, relinkerrors.MalformedInitBlob(
			fmt.Sprintf("expected <module path>%s<target library>, got %d field(s)", BlobSeparator, len(fields)),
			len(fields))
	}
	if fields[0] == "" {
		return InitBlob{}, relinkerrors.MalformedInitBlob("module path is empty", 2)
	}
	if fields[1] == "" {
		return InitBlob{}, relinkerrors.MalformedInitBlob("target library is empty", 2)
	}
	return InitBlob{ModulePath: fields[0], Target: fields[1]}, nil
}

func (b InitBlob) String() string {
	return b.ModulePath + BlobSeparator + b.Target
}
