package yaml

import (
	"io"

	"github.com/goccy/go-yaml"
)

// DefaultEncoderOptions are used by every encoder in the module, so that
// written and merged YAML share one style.
var DefaultEncoderOptions = []yaml.EncodeOption{
	yaml.Indent(2),
	yaml.IndentSequence(true),
}

type Encoder struct {
	e *yaml.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		e: yaml.NewEncoder(w, DefaultEncoderOptions...),
	}
}

func (e *Encoder) Encode(v any) error {
	return e.e.Encode(v) //nolint:wrapcheck // Return the original error.
}

func (e *Encoder) Close() error {
	return e.e.Close() //nolint:wrapcheck // Return the original error.
}
