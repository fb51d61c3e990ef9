package runpipeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lucidframe/conrun/internal/volume"
)

// StateEnv is the environment variable name the run pipeline's two
// re-exec stages read their state from. It crosses the clone boundary
// as plain data, the same way a closure would otherwise have captured
// it, per the Design Notes' "pass only plain data" guidance.
const StateEnv = "CONRUN_STATE"

// State is everything a re-exec'd stage needs to finish the run, built
// once by the top-level pipeline and carried unchanged through both
// the __enter and __pivot-exec stages.
type State struct {
	BundleDir string
	RootFS    string
	UpperDir  string
	WorkDir   string

	LayerPaths []string
	Volumes    []volume.Volume
	Env        []string // rendered "k=v", ready for execve's envp
	Hostname   string
	CgroupName string

	// Argv is the resolved target command: Argv[0] is looked up on
	// Env's PATH if it isn't already a path containing a slash.
	Argv []string
}

// Encode renders s as a base64-encoded JSON blob suitable for the
// StateEnv environment variable.
func Encode(s State) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode pipeline state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a state blob produced by Encode.
func Decode(encoded string) (State, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, fmt.Errorf("decode pipeline state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode pipeline state: %w", err)
	}
	return s, nil
}
