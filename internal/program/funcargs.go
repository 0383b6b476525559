package program

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFunctionInfo reads externally supplied per-function argument metadata
// from a JSON file. The file holds a list of FunctionInfo objects; the result
// is keyed by function name for the merge done by the static parser.
func LoadFunctionInfo(path string) (map[string]FunctionInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading function metadata: %w", err)
	}

	var infos []FunctionInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, fmt.Errorf("parsing function metadata: %w", err)
	}

	byName := make(map[string]FunctionInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	return byName, nil
}
