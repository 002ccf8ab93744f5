package identity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rsethi/vitalrelay/internal/model"
)

// Errors returned by verifiers.
var (
	ErrUnknownToken = errors.New("unknown token")
	ErrEmptyToken   = errors.New("empty token")
)

// Identity is a verified description of who holds a connection token.
type Identity struct {
	SubjectID        string     `yaml:"subject_id"`
	Role             model.Role `yaml:"role"`
	DisplayName      string     `yaml:"display_name"`
	AssignedDoctorID string     `yaml:"assigned_doctor_id"`
}

// Verifier resolves a connection token to a verified identity.
// Production deployments back this with the account service; the relay
// only depends on the interface.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// FileVerifier is a static token table loaded from a YAML file.
// Suitable for development and tests.
type FileVerifier struct {
	tokens map[string]Identity
}

// tokenFile is the on-disk shape of the token table.
type tokenFile struct {
	Tokens map[string]Identity `yaml:"tokens"`
}

// LoadFileVerifier reads a token table from path.
func LoadFileVerifier(path string) (*FileVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tf tokenFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token yaml: %w", err)
	}

	for token, id := range tf.Tokens {
		if id.SubjectID == "" {
			return nil, fmt.Errorf("token %q: subject_id is required", token)
		}
		if !id.Role.Valid() {
			return nil, fmt.Errorf("token %q: invalid role %q", token, id.Role)
		}
	}

	return &FileVerifier{tokens: tf.Tokens}, nil
}

// NewFileVerifier builds a verifier from an in-memory token table.
func NewFileVerifier(tokens map[string]Identity) *FileVerifier {
	return &FileVerifier{tokens: tokens}
}

// Verify implements Verifier.
func (v *FileVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrEmptyToken
	}
	id, ok := v.tokens[token]
	if !ok {
		return Identity{}, ErrUnknownToken
	}
	return id, nil
}
