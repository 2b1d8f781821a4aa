package transit

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a network document and validates it.
func DecodeYAML(r io.Reader) (*Network, error) {
	var n Network
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("decode network yaml: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// FileSource loads a network from a YAML file on every call.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open network file: %w", err)
	}
	defer f.Close()
	return DecodeYAML(f)
}

func (s FileSource) String() string { return "yaml:" + s.Path }
